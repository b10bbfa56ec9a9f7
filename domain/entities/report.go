package entities

import (
	"errors"
	"time"
)

// ReportStatus represents the handling status of an issue report
type ReportStatus string

const (
	ReportStatusOpen      ReportStatus = "open"
	ReportStatusScheduled ReportStatus = "scheduled"
	ReportStatusResolved  ReportStatus = "resolved"
)

// IssueReport is a persisted maintenance issue report, built from a finalized
// voice capture and an optional visual analysis
type IssueReport struct {
	ID         string       `json:"id" bson:"-"`
	ReporterID string       `json:"reporter_id" bson:"reporter_id"`
	Title      string       `json:"title" bson:"title"`
	Transcript string       `json:"transcript" bson:"transcript"`
	VoiceNotes string       `json:"voice_notes,omitempty" bson:"voice_notes,omitempty"`
	Summary    IssueSummary `json:"summary" bson:"summary"`
	Status     ReportStatus `json:"status" bson:"status"`
	CreatedAt  time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" bson:"updated_at"`
}

// NewIssueReport creates an open report for a reporter
func NewIssueReport(reporterID, title string, summary IssueSummary) *IssueReport {
	now := time.Now()
	return &IssueReport{
		ReporterID: reporterID,
		Title:      title,
		Summary:    summary,
		Status:     ReportStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Resolve marks the report as resolved
func (r *IssueReport) Resolve() {
	r.Status = ReportStatusResolved
	r.UpdatedAt = time.Now()
}

// Validate validates the report data
func (r *IssueReport) Validate() error {
	if r.ReporterID == "" {
		return errors.New("reporter_id is required")
	}
	if r.Title == "" {
		return errors.New("title is required")
	}
	switch r.Status {
	case ReportStatusOpen, ReportStatusScheduled, ReportStatusResolved:
	default:
		return errors.New("invalid report status")
	}
	return nil
}
