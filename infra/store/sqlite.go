// Package store provides the durable SQLite-backed schedule cache used by
// the agent so the last known ACTIVE schedule survives a process restart.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fleetvolt/battsched/core/model"
	corestore "github.com/fleetvolt/battsched/core/store"
)

// SQLiteStore persists schedules and execution records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS schedules (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        version TEXT NOT NULL,
        device_id TEXT NOT NULL,
        entries TEXT NOT NULL,
        source TEXT NOT NULL DEFAULT '',
        priority INTEGER NOT NULL DEFAULT 0,
        status TEXT NOT NULL DEFAULT 'active',
        received_at INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_schedules_device_status ON schedules(device_id, status);
    CREATE TABLE IF NOT EXISTS execution_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        device_id TEXT NOT NULL,
        entry_index INTEGER NOT NULL,
        executed_at INTEGER NOT NULL,
        status TEXT NOT NULL,
        actual_rate_kw REAL,
        error_message TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_execution_logs_device ON execution_logs(device_id, executed_at);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// PutActive deactivates any existing active schedule for the device and
// inserts the new one as active, in a single transaction.
func (s *SQLiteStore) PutActive(ctx context.Context, sched model.Schedule) error {
	entries, err := json.Marshal(sched.Entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE schedules SET status = ? WHERE device_id = ? AND status = ?`,
		model.StatusInactive, sched.DeviceID, model.StatusActive); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schedules (version, device_id, entries, source, priority, status, received_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sched.Version, sched.DeviceID, string(entries), sched.Source, sched.Priority,
		model.StatusActive, sched.ReceivedAt.Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetActive returns the active schedule for the device.
func (s *SQLiteStore) GetActive(ctx context.Context, deviceID string) (model.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, entries, source, priority, received_at FROM schedules
         WHERE device_id = ? AND status = ?
         ORDER BY received_at DESC, id DESC LIMIT 1`,
		deviceID, model.StatusActive)

	var (
		sched      model.Schedule
		entries    string
		receivedAt int64
	)
	err := row.Scan(&sched.Version, &entries, &sched.Source, &sched.Priority, &receivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.Schedule{}, err
	}
	if err := json.Unmarshal([]byte(entries), &sched.Entries); err != nil {
		return model.Schedule{}, fmt.Errorf("unmarshal entries: %w", err)
	}
	sched.DeviceID = deviceID
	sched.Status = model.StatusActive
	sched.ReceivedAt = unixUTC(receivedAt)
	return sched, nil
}

// RecordExecution appends the record to the execution log.
func (s *SQLiteStore) RecordExecution(ctx context.Context, deviceID string, rec model.ExecutionRecord) error {
	var actual sql.NullFloat64
	if rec.ActualRateKW != nil {
		actual = sql.NullFloat64{Float64: *rec.ActualRateKW, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_logs (device_id, entry_index, executed_at, status, actual_rate_kw, error_message)
         VALUES (?, ?, ?, ?, ?, ?)`,
		deviceID, rec.EntryIndex, rec.ExecutedAt.Unix(), rec.Status, actual, rec.Error)
	return err
}

// History returns execution records, most recent first.
func (s *SQLiteStore) History(ctx context.Context, deviceID string, limit int) ([]model.ExecutionRecord, error) {
	query := `SELECT entry_index, executed_at, status, actual_rate_kw, error_message
              FROM execution_logs WHERE device_id = ?
              ORDER BY executed_at DESC, id DESC`
	args := []any{deviceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []model.ExecutionRecord
	for rows.Next() {
		var (
			rec        model.ExecutionRecord
			executedAt int64
			actual     sql.NullFloat64
			errMsg     sql.NullString
		)
		if err := rows.Scan(&rec.EntryIndex, &executedAt, &rec.Status, &actual, &errMsg); err != nil {
			return nil, err
		}
		rec.ExecutedAt = unixUTC(executedAt)
		if actual.Valid {
			v := actual.Float64
			rec.ActualRateKW = &v
		}
		rec.Error = errMsg.String
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func unixUTC(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
