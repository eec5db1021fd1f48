// Package buildlog persists build history as an append-only event log in
// SQLite and folds it into per-build records for the preview API.
package buildlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
)

// EventType names a build lifecycle event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
	EventCanceled  EventType = "canceled"
)

// Event is one stored row.
type Event struct {
	ID        int64
	BuildID   string
	Type      EventType
	Timestamp time.Time
	Payload   []byte
}

// Store is a SQLite-backed build event log.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// Open opens (and creates if needed) the store at path. An empty path or
// ":memory:" keeps the log in memory for the life of the process.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, "failed to open build history").
			WithContext("path", path).Build()
	}
	// A :memory: database lives per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryHistory, "failed to initialize build history schema").
			WithContext("path", path).Build()
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_build_id ON events(build_id);
	CREATE INDEX IF NOT EXISTS idx_event_type ON events(event_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records an event. payload is stored as JSON; nil stores no payload.
func (s *Store) Append(ctx context.Context, buildID string, typ EventType, payload any) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return errors.WrapError(err, errors.CategoryHistory, "failed to encode event payload").Build()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (build_id, event_type, timestamp, payload) VALUES (?, ?, ?, ?)",
		buildID, string(typ), s.now().UnixMilli(), data,
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryHistory, "failed to insert build event").
			WithContext("build_id", buildID).Build()
	}
	return nil
}

// Events returns every event recorded for buildID in insertion order.
func (s *Store) Events(ctx context.Context, buildID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, build_id, event_type, timestamp, payload FROM events WHERE build_id = ? ORDER BY id",
		buildID,
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, "failed to query build events").Build()
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Recent returns the n most recently started builds, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, build_id, event_type, timestamp, payload FROM events
		WHERE build_id IN (
			SELECT build_id FROM events WHERE event_type = ? ORDER BY id DESC LIMIT ?
		)
		ORDER BY id`,
		string(EventStarted), n,
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, "failed to query recent builds").Build()
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	return project(events), nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			e      Event
			typ    string
			millis int64
		)
		if err := rows.Scan(&e.ID, &e.BuildID, &typ, &millis, &e.Payload); err != nil {
			return nil, errors.WrapError(err, errors.CategoryHistory, "failed to scan build event").Build()
		}
		e.Type = EventType(typ)
		e.Timestamp = time.UnixMilli(millis).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, "failed to iterate build events").Build()
	}
	return events, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
