package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/repository"
)

const createComplianceTables = `
CREATE TABLE IF NOT EXISTS route_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_date TEXT NOT NULL,
	courier_id TEXT NOT NULL,
	courier_name TEXT NOT NULL,
	route TEXT NOT NULL,
	stop INTEGER NOT NULL,
	address TEXT NOT NULL,
	status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_route_records_courier_id ON route_records(courier_id);

CREATE TABLE IF NOT EXISTS scan_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_date TEXT NOT NULL,
	courier_id TEXT NOT NULL,
	courier_name TEXT NOT NULL,
	route TEXT NOT NULL,
	stop INTEGER NOT NULL,
	address TEXT NOT NULL,
	tracking TEXT NOT NULL,
	scan_type TEXT NOT NULL,
	distance_feet INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_records_courier_id ON scan_records(courier_id);
`

type ComplianceRepository struct {
	db *sql.DB
}

func NewComplianceRepository(db *sql.DB) repository.ComplianceRepository {
	return &ComplianceRepository{db: db}
}

func (r *ComplianceRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createComplianceTables); err != nil {
		return fmt.Errorf("create compliance tables: %w", err)
	}
	return nil
}

func (r *ComplianceRepository) InsertRoutes(ctx context.Context, records []domain.RouteRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range records {
		rec := &records[i]
		res, err := tx.ExecContext(ctx, `
INSERT INTO route_records (record_date, courier_id, courier_name, route, stop, address, status)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Date,
			rec.CourierID,
			rec.CourierName,
			rec.Route,
			rec.Stop,
			rec.Address,
			string(rec.Status),
		)
		if err != nil {
			return fmt.Errorf("insert route record: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			rec.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit route records: %w", err)
	}
	return nil
}

func (r *ComplianceRepository) InsertScans(ctx context.Context, records []domain.ScanRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range records {
		rec := &records[i]
		res, err := tx.ExecContext(ctx, `
INSERT INTO scan_records (record_date, courier_id, courier_name, route, stop, address, tracking, scan_type, distance_feet, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Date,
			rec.CourierID,
			rec.CourierName,
			rec.Route,
			rec.Stop,
			rec.Address,
			rec.Tracking,
			string(rec.ScanType),
			rec.DistanceFeet,
			string(rec.Status),
		)
		if err != nil {
			return fmt.Errorf("insert scan record: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			rec.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scan records: %w", err)
	}
	return nil
}

// ListRoutes returns route records in insertion order.
func (r *ComplianceRepository) ListRoutes(ctx context.Context) ([]domain.RouteRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, record_date, courier_id, courier_name, route, stop, address, status
FROM route_records
ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query route records: %w", err)
	}
	defer rows.Close()

	records := []domain.RouteRecord{}
	for rows.Next() {
		var (
			rec    domain.RouteRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.CourierID, &rec.CourierName, &rec.Route, &rec.Stop, &rec.Address, &status); err != nil {
			return nil, fmt.Errorf("scan route record: %w", err)
		}
		rec.Status = domain.ComplianceStatus(status)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListScans returns scan records in insertion order.
func (r *ComplianceRepository) ListScans(ctx context.Context) ([]domain.ScanRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, record_date, courier_id, courier_name, route, stop, address, tracking, scan_type, distance_feet, status
FROM scan_records
ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query scan records: %w", err)
	}
	defer rows.Close()

	records := []domain.ScanRecord{}
	for rows.Next() {
		var (
			rec      domain.ScanRecord
			scanType string
			status   string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Date,
			&rec.CourierID,
			&rec.CourierName,
			&rec.Route,
			&rec.Stop,
			&rec.Address,
			&rec.Tracking,
			&scanType,
			&rec.DistanceFeet,
			&status,
		); err != nil {
			return nil, fmt.Errorf("scan scan record: %w", err)
		}
		rec.ScanType = domain.ScanType(scanType)
		rec.Status = domain.ComplianceStatus(status)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *ComplianceRepository) CountRoutes(ctx context.Context) (int64, error) {
	return r.count(ctx, "route_records")
}

func (r *ComplianceRepository) CountScans(ctx context.Context) (int64, error) {
	return r.count(ctx, "scan_records")
}

func (r *ComplianceRepository) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
