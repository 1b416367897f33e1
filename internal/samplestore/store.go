// Package samplestore is the device-local durable queue of captured
// samples. It backs every sync mode that must survive process restarts:
// a sample inserted here stays visible to Unsent until MarkSent confirms
// delivery, even across an abrupt kill.
package samplestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

type Sample struct {
	ID              int64   `json:"id"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	TimestampMillis int64   `json:"timestamp"`
	Sent            bool    `json:"sent"`
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	timestamp_ms INTEGER NOT NULL,
	sent INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends a sample with sent=false and returns its assigned id.
func (s *Store) Insert(ctx context.Context, lat, lon float64, tsMillis int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (latitude, longitude, timestamp_ms) VALUES (?, ?, ?)
	`, lat, lon, tsMillis)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Unsent returns up to limit unsent samples in capture order.
func (s *Store) Unsent(ctx context.Context, limit int) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, latitude, longitude, timestamp_ms, sent
		FROM samples WHERE sent = 0
		ORDER BY timestamp_ms, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.ID, &sm.Latitude, &sm.Longitude, &sm.TimestampMillis, &sm.Sent); err != nil {
			return nil, err
		}
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// MarkSent flips sent=true for the given ids. Idempotent: already-sent and
// unknown ids are no-ops.
func (s *Store) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`UPDATE samples SET sent = 1 WHERE id IN (%s)`, strings.Join(placeholders, ","))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// Clear deletes all samples. Only called after a confirmed-complete flush.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM samples`)
	return err
}

// UnsentCount reports how many samples still await delivery.
func (s *Store) UnsentCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples WHERE sent = 0`).Scan(&n)
	return n, err
}

// SetSetting stores a process-wide key/value flag, surviving restarts.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetSetting returns the stored value for key, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// DeleteSetting removes a flag; missing keys are a no-op.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}
