// Package sqlite implements the library projection and the domain-event
// outbox over a local SQLite file.
//
// A single SQLite file backs both tables so library rows and the events
// announcing them share the same visibility boundary.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/p2pclaw/hive/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS library (
	submission_id TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	author        TEXT NOT NULL,
	investigation TEXT NOT NULL DEFAULT '',
	score         REAL NOT NULL DEFAULT 0,
	cid           TEXT NOT NULL DEFAULT '',
	archive_url   TEXT NOT NULL DEFAULT '',
	proof_status  TEXT NOT NULL DEFAULT 'none',
	verified_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox_events (
	id           TEXT PRIMARY KEY,
	event_name   TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	seq          INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS outbox_events_seq ON outbox_events(seq);
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements LibraryStore and EventStore over SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the library store and applies the bundled schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// UpsertLibraryEntry writes one verified-library row, replacing any
// previous row for the same submission.
func (s *Store) UpsertLibraryEntry(ctx context.Context, entry storage.LibraryEntry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(entry.SubmissionID) == "" {
		return fmt.Errorf("submission id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO library (submission_id, title, author, investigation, score, cid, archive_url, proof_status, verified_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(submission_id) DO UPDATE SET
	title = excluded.title,
	author = excluded.author,
	investigation = excluded.investigation,
	score = excluded.score,
	cid = excluded.cid,
	archive_url = excluded.archive_url,
	proof_status = excluded.proof_status,
	verified_at = excluded.verified_at
`,
		entry.SubmissionID,
		entry.Title,
		entry.Author,
		entry.Investigation,
		entry.Score,
		entry.CID,
		entry.ArchiveURL,
		entry.ProofStatus,
		toMillis(entry.VerifiedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert library entry: %w", err)
	}
	return nil
}

// DeleteLibraryEntry removes a retracted submission from the library.
func (s *Store) DeleteLibraryEntry(ctx context.Context, submissionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(submissionID) == "" {
		return fmt.Errorf("submission id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM library WHERE submission_id = ?`, submissionID); err != nil {
		return fmt.Errorf("delete library entry: %w", err)
	}
	return nil
}

// GetLibraryEntry returns one library row by submission ID.
func (s *Store) GetLibraryEntry(ctx context.Context, submissionID string) (storage.LibraryEntry, error) {
	if err := s.ready(ctx); err != nil {
		return storage.LibraryEntry{}, err
	}
	if strings.TrimSpace(submissionID) == "" {
		return storage.LibraryEntry{}, fmt.Errorf("submission id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT submission_id, title, author, investigation, score, cid, archive_url, proof_status, verified_at
FROM library
WHERE submission_id = ?
`, submissionID)
	entry, err := scanLibraryEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.LibraryEntry{}, storage.ErrNotFound
		}
		return storage.LibraryEntry{}, fmt.Errorf("get library entry: %w", err)
	}
	return entry, nil
}

// ListLibraryEntries returns the verified library ordered by promotion
// time, newest first.
func (s *Store) ListLibraryEntries(ctx context.Context) ([]storage.LibraryEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT submission_id, title, author, investigation, score, cid, archive_url, proof_status, verified_at
FROM library
ORDER BY verified_at DESC, submission_id
`)
	if err != nil {
		return nil, fmt.Errorf("list library entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.LibraryEntry
	for rows.Next() {
		entry, err := scanLibraryEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan library entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library entries: %w", err)
	}
	return entries, nil
}

// AppendEvent appends one domain event to the outbox.
func (s *Store) AppendEvent(ctx context.Context, event storage.Event) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(event.Name) == "" {
		return fmt.Errorf("event name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO outbox_events (id, event_name, payload_json, created_at, seq)
VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM outbox_events))
`,
		event.ID,
		event.Name,
		event.PayloadJSON,
		toMillis(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns events in append order, oldest first. A non-positive
// limit returns everything.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]storage.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, event_name, payload_json, created_at
FROM outbox_events
ORDER BY seq
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []storage.Event
	for rows.Next() {
		var event storage.Event
		var createdAt int64
		if err := rows.Scan(&event.ID, &event.Name, &event.PayloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func scanLibraryEntry(scan func(...any) error) (storage.LibraryEntry, error) {
	var entry storage.LibraryEntry
	var verifiedAt int64
	if err := scan(
		&entry.SubmissionID,
		&entry.Title,
		&entry.Author,
		&entry.Investigation,
		&entry.Score,
		&entry.CID,
		&entry.ArchiveURL,
		&entry.ProofStatus,
		&verifiedAt,
	); err != nil {
		return storage.LibraryEntry{}, err
	}
	entry.VerifiedAt = fromMillis(verifiedAt)
	return entry, nil
}
