package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Schema creates the presence audit table. It is applied on every New and is
// safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS presence_events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	connection_id  TEXT NOT NULL,
	username       TEXT NOT NULL,
	has_public_key BOOLEAN NOT NULL DEFAULT 0,
	action         TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_presence_events_created ON presence_events(created_at DESC);
`

const defaultListLimit = 100

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema variations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordPresence appends a roster transition.
func (s *SQLiteStore) RecordPresence(ctx context.Context, event *store.PresenceEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.CreatedAt = event.CreatedAt.UTC()

	query := `
		INSERT INTO presence_events (connection_id, username, has_public_key, action, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		event.ConnectionID,
		event.Username,
		event.HasPublicKey,
		string(event.Action),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert presence event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	event.ID = id
	return nil
}

// ListPresence returns up to limit events, newest first.
func (s *SQLiteStore) ListPresence(ctx context.Context, limit int) ([]store.PresenceEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, connection_id, username, has_public_key, action, created_at
		FROM presence_events
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query presence events: %w", err)
	}
	defer rows.Close()

	var events []store.PresenceEvent
	for rows.Next() {
		var (
			event  store.PresenceEvent
			action string
		)
		if err := rows.Scan(
			&event.ID,
			&event.ConnectionID,
			&event.Username,
			&event.HasPublicKey,
			&action,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan presence event: %w", err)
		}
		event.Action = store.PresenceAction(action)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presence events: %w", err)
	}

	return events, nil
}
