package repositories

import (
	"context"

	"github.com/satriahrh/rawatin/domain/entities"
)

// ReportRepository defines data access methods for issue reports
type ReportRepository interface {
	Create(ctx context.Context, report *entities.IssueReport) error
	GetByID(ctx context.Context, id string) (*entities.IssueReport, error)
	ListByReporter(ctx context.Context, reporterID string) ([]*entities.IssueReport, error)
	Update(ctx context.Context, report *entities.IssueReport) error
}
