// Package interfaces defines the storage contracts shared between the
// storage factory and its backend implementations.
package interfaces

import (
	"context"

	"github.com/datawatch/datawatch/pkg/models"
)

// ReportStore persists quality reports keyed by report id.
type ReportStore interface {
	// Connect establishes the backend connection. It is safe to call twice.
	Connect(ctx context.Context) error

	// Close releases the backend connection.
	Close() error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Save persists a report, replacing any existing report with the same id.
	Save(ctx context.Context, report *models.QualityReport) error

	// Get retrieves a report by id. A missing report yields a storage error
	// with code REPORT_NOT_FOUND.
	Get(ctx context.Context, reportID string) (*models.QualityReport, error)

	// List returns up to limit reports, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*models.QualityReport, error)

	// Delete removes a report by id. Deleting a missing report is an error.
	Delete(ctx context.Context, reportID string) error
}
