package repository

import (
	"context"

	"courier-dashboard/internal/domain"
)

// ComplianceSource is the read-only view of route and scan records the dashboard consumes.
type ComplianceSource interface {
	ListRoutes(ctx context.Context) ([]domain.RouteRecord, error)
	ListScans(ctx context.Context) ([]domain.ScanRecord, error)
}

// ComplianceRepository manages the stored route and scan datasets.
type ComplianceRepository interface {
	ComplianceSource
	Init(ctx context.Context) error
	InsertRoutes(ctx context.Context, records []domain.RouteRecord) error
	InsertScans(ctx context.Context, records []domain.ScanRecord) error
	CountRoutes(ctx context.Context) (int64, error)
	CountScans(ctx context.Context) (int64, error)
}
