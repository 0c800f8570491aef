// Package reportstore persists settled analysis responses keyed by request
// id. The pipeline core never touches it; the server wires it in behind the
// Store interface.
package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/stattenfield/ideascope/internal/viability"
)

var ErrNotFound = errors.New("analysis not found")

// Record is one stored analysis. Envelope is nil while the analysis is still
// running or when it failed before producing a document.
type Record struct {
	RequestID   string                      `json:"request_id"`
	Idea        string                      `json:"idea"`
	State       viability.RequestState      `json:"state"`
	Envelope    *viability.ResponseEnvelope `json:"envelope,omitempty"`
	Error       string                      `json:"error,omitempty"`
	RequestedAt time.Time                   `json:"requested_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// NewRequestID mints the key for a new record.
func NewRequestID() string { return "va-" + uuid.NewString() }

type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, requestID string) (Record, error)
	Close() error
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	request_id   TEXT PRIMARY KEY,
	idea         TEXT NOT NULL,
	state        TEXT NOT NULL,
	envelope     TEXT,
	error        TEXT NOT NULL DEFAULT '',
	requested_at TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
`

// SQLiteStore is the reference Store: one row per analysis, write-through on
// every state change, schema created on open.
type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	var envelope any
	if rec.Envelope != nil {
		b, err := json.Marshal(rec.Envelope)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}
		envelope = string(b)
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO analyses
		(request_id, idea, state, envelope, error, requested_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID,
		rec.Idea,
		string(rec.State),
		envelope,
		rec.Error,
		rec.RequestedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, requestID string) (Record, error) {
	var row struct {
		RequestID   string  `db:"request_id"`
		Idea        string  `db:"idea"`
		State       string  `db:"state"`
		Envelope    *string `db:"envelope"`
		Error       string  `db:"error"`
		RequestedAt string  `db:"requested_at"`
		UpdatedAt   string  `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, "SELECT request_id, idea, state, envelope, error, requested_at, updated_at FROM analyses WHERE request_id = ?", requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		RequestID: row.RequestID,
		Idea:      row.Idea,
		State:     viability.RequestState(row.State),
		Error:     row.Error,
	}
	rec.RequestedAt, _ = time.Parse(time.RFC3339Nano, row.RequestedAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, row.UpdatedAt)
	if row.Envelope != nil && *row.Envelope != "" {
		var env viability.ResponseEnvelope
		if err := json.Unmarshal([]byte(*row.Envelope), &env); err != nil {
			return Record{}, fmt.Errorf("decode envelope: %w", err)
		}
		rec.Envelope = &env
	}
	return rec, nil
}

var _ Store = (*SQLiteStore)(nil)
