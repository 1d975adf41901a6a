// Package events - This file contains the SQLite log of fall events.
package events

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Outcome is how an event ended.
type Outcome string

const (
	// OutcomeOpen marks an event still in progress.
	OutcomeOpen Outcome = "open"
	// OutcomeRecovered marks a confirmed fall after which the subject moved again.
	OutcomeRecovered Outcome = "recovered"
	// OutcomeDismissed marks a candidate that was never confirmed.
	OutcomeDismissed Outcome = "dismissed"
)

// ErrUnknownEvent is returned when an id does not match a stored event.
var ErrUnknownEvent = errors.New("unknown fall event")

// Event is one stored fall episode.
type Event struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Outcome     Outcome    `json:"outcome"`
	Snapshot    string     `json:"snapshot,omitempty"`
}

// Confirmed reports whether the event reached the confirmed phase.
func (e Event) Confirmed() bool {
	return e.ConfirmedAt != nil
}

// Store persists events in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path. Use ":memory:" for a private
// in-memory database.
//
// Arguments:
//   - path: The SQLite database file.
//
// Returns:
//   - *Store: The store with its schema in place.
//   - error: An error if the database cannot be opened or migrated.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open event database %q", path)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS fall_events (
			event_id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			confirmed_at INTEGER,
			ended_at INTEGER,
			outcome TEXT NOT NULL,
			snapshot TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS fall_events_started ON fall_events (started_at);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create event schema")
	}

	return &Store{db: db}, nil
}

// Open records the start of a candidate fall and returns its id.
func (s *Store) Open(ctx context.Context, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO fall_events (event_id, started_at, outcome) VALUES (?, ?, ?)",
		id, startedAt.UnixNano(), OutcomeOpen)
	if err != nil {
		return "", errors.Wrap(err, "insert fall event")
	}
	return id, nil
}

// Confirm marks the event as a confirmed fall with an optional snapshot path.
func (s *Store) Confirm(ctx context.Context, id string, at time.Time, snapshot string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE fall_events SET confirmed_at = ?, snapshot = ? WHERE event_id = ?",
		at.UnixNano(), snapshot, id)
	if err != nil {
		return errors.Wrapf(err, "confirm fall event %s", id)
	}
	return expectOne(res, id)
}

// End closes the event with the given outcome.
func (s *Store) End(ctx context.Context, id string, at time.Time, outcome Outcome) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE fall_events SET ended_at = ?, outcome = ? WHERE event_id = ?",
		at.UnixNano(), outcome, id)
	if err != nil {
		return errors.Wrapf(err, "end fall event %s", id)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrUnknownEvent, "event %s", id)
	}
	return nil
}

// List returns up to limit events, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, started_at, confirmed_at, ended_at, outcome, snapshot
		FROM fall_events ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query fall events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                Event
			started          int64
			confirmed, ended sql.NullInt64
			outcome          string
		)
		if err := rows.Scan(&e.ID, &started, &confirmed, &ended, &outcome, &e.Snapshot); err != nil {
			return nil, errors.Wrap(err, "scan fall event")
		}
		e.StartedAt = time.Unix(0, started)
		e.ConfirmedAt = nullTime(confirmed)
		e.EndedAt = nullTime(ended)
		e.Outcome = Outcome(outcome)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate fall events")
	}

	return events, nil
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64)
	return &t
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
