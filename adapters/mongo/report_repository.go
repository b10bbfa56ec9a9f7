package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/satriahrh/rawatin/domain/entities"
	"github.com/satriahrh/rawatin/domain/repositories"
)

type ReportRepository struct {
	collection *mongo.Collection
}

// NewReportRepository creates a new MongoDB issue report repository
func NewReportRepository(db *mongo.Database) repositories.ReportRepository {
	return &ReportRepository{
		collection: db.Collection("issue_reports"),
	}
}

// Create implements repositories.ReportRepository
func (r *ReportRepository) Create(ctx context.Context, report *entities.IssueReport) error {
	if report == nil {
		return errors.New("report cannot be nil")
	}
	if err := report.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = now
	}

	doc := bson.M{
		"reporter_id": report.ReporterID,
		"title":       report.Title,
		"transcript":  report.Transcript,
		"voice_notes": report.VoiceNotes,
		"summary":     report.Summary,
		"status":      report.Status,
		"created_at":  report.CreatedAt,
		"updated_at":  report.UpdatedAt,
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		report.ID = oid.Hex()
	}

	return nil
}

// GetByID implements repositories.ReportRepository
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*entities.IssueReport, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// An ID that is not a valid ObjectID cannot match any stored
		// report; treat it the same as not found.
		return nil, nil
	}

	var report entities.IssueReport
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	report.ID = id

	return &report, nil
}

// ListByReporter implements repositories.ReportRepository
func (r *ReportRepository) ListByReporter(ctx context.Context, reporterID string) ([]*entities.IssueReport, error) {
	if reporterID == "" {
		return nil, errors.New("reporter ID cannot be empty")
	}

	filter := bson.M{"reporter_id": reporterID}
	opts := options.Find().SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports for %s: %w", reporterID, err)
	}
	defer cursor.Close(ctx)

	var reports []*entities.IssueReport
	for cursor.Next(ctx) {
		var report entities.IssueReport
		if err := cursor.Decode(&report); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		if oid, ok := cursor.Current.Lookup("_id").ObjectIDOK(); ok {
			report.ID = oid.Hex()
		}
		reports = append(reports, &report)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return reports, nil
}

// Update implements repositories.ReportRepository
func (r *ReportRepository) Update(ctx context.Context, report *entities.IssueReport) error {
	if report == nil {
		return errors.New("report cannot be nil")
	}
	if report.ID == "" {
		return errors.New("report ID cannot be empty")
	}

	objectID, err := primitive.ObjectIDFromHex(report.ID)
	if err != nil {
		return fmt.Errorf("invalid report ID format: %w", err)
	}

	report.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"title":       report.Title,
		"transcript":  report.Transcript,
		"voice_notes": report.VoiceNotes,
		"summary":     report.Summary,
		"status":      report.Status,
		"updated_at":  report.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", report.ID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("report %s not found", report.ID)
	}

	return nil
}
