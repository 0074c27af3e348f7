// Package archive persists anomaly records to a local SQLite database so
// they survive process restarts and can be queried offline.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	coremetrics "github.com/fleetsense/fleettrack/core/metrics"
	"github.com/fleetsense/fleettrack/core/model"
)

// SQLiteArchive appends anomaly records to a SQLite database. It implements
// the anomaly side of the metrics sink, so it can be fanned into a MultiSink.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens or creates the database at path and ensures schema.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS anomaly_archive (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER,
        anomaly_type TEXT,
        severity TEXT,
        vehicle_id TEXT,
        record TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteArchive{db: db}, nil
}

// RecordAnomaly writes the anomaly to the archive.
func (s *SQLiteArchive) RecordAnomaly(ev coremetrics.AnomalyEvent) error {
	return s.Append(context.Background(), ev.Anomaly)
}

// RecordSample is a no-op; the archive keeps anomalies only.
func (s *SQLiteArchive) RecordSample(coremetrics.SampleEvent) error { return nil }

// RecordDetectionRun is a no-op; the archive keeps anomalies only.
func (s *SQLiteArchive) RecordDetectionRun(coremetrics.DetectionRunEvent) error { return nil }

// Append writes the anomaly to the database.
func (s *SQLiteArchive) Append(ctx context.Context, a model.Anomaly) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO anomaly_archive (ts, anomaly_type, severity, vehicle_id, record) VALUES (?, ?, ?, ?, ?)`,
		a.DetectedAt.Unix(), a.Type.String(), a.Severity.String(), a.VehicleID, string(b))
	return err
}

// Query is the filter for archived anomalies.
type Query struct {
	Start     time.Time
	End       time.Time
	VehicleID string
	Severity  *model.Severity
}

// List returns archived anomalies matching q in detection order.
func (s *SQLiteArchive) List(ctx context.Context, q Query) ([]model.Anomaly, error) {
	var args []any
	query := `SELECT record FROM anomaly_archive WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.Unix())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.Unix())
	}
	if q.VehicleID != "" {
		query += ` AND vehicle_id = ?`
		args = append(args, q.VehicleID)
	}
	if q.Severity != nil {
		query += ` AND severity = ?`
		args = append(args, q.Severity.String())
	}
	query += ` ORDER BY ts`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Anomaly
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a model.Anomaly
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteArchive) Close() error { return s.db.Close() }
