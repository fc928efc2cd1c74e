// Package storage defines the persistence boundary of the admission engine.
//
// The engine runs against a replicated, eventually-consistent mesh, so no
// store offers transactional guarantees across records. Every mutation goes
// through an Update method that re-reads the latest observed record and
// applies a merge function inside one write transaction; callers express
// transitions as idempotent, monotonic merges rather than blind writes.
package storage

import (
	"context"
	"time"

	"github.com/p2pclaw/hive/internal/domain"
	apperrors "github.com/p2pclaw/hive/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// SubmissionStore persists submission records in the pending pool and the
// verified library.
type SubmissionStore interface {
	PutSubmission(ctx context.Context, sub domain.Submission) error
	GetSubmission(ctx context.Context, id string) (domain.Submission, error)
	// UpdateSubmission applies fn to the latest stored record inside a
	// single write transaction and persists the result. fn returning an
	// error aborts the update and surfaces that error unchanged.
	UpdateSubmission(ctx context.Context, id string, fn func(*domain.Submission) error) (domain.Submission, error)
	// ListSubmissions returns all known submissions, pending and terminal.
	ListSubmissions(ctx context.Context) ([]domain.Submission, error)
}

// AgentStore persists participant records.
type AgentStore interface {
	// EnsureAgent creates the record on first contact and reports whether
	// it was created by this call. Existing records are returned untouched.
	EnsureAgent(ctx context.Context, agent domain.Agent) (domain.Agent, bool, error)
	GetAgent(ctx context.Context, id string) (domain.Agent, error)
	UpdateAgent(ctx context.Context, id string, fn func(*domain.Agent) error) (domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)
}

// OffenderStore persists per-agent moderation strike records.
type OffenderStore interface {
	GetOffender(ctx context.Context, agentID string) (domain.OffenderRecord, error)
	// UpdateOffender creates the record lazily when absent, then applies fn.
	UpdateOffender(ctx context.Context, agentID string, fn func(*domain.OffenderRecord) error) (domain.OffenderRecord, error)
}

// LibraryEntry is one row of the canonical verified library projection.
type LibraryEntry struct {
	SubmissionID  string
	Title         string
	Author        string
	Investigation string
	Score         float64
	CID           string
	ArchiveURL    string
	ProofStatus   string
	VerifiedAt    time.Time
}

// LibraryStore owns the verified-library projection read by presentation
// layers.
type LibraryStore interface {
	UpsertLibraryEntry(ctx context.Context, entry LibraryEntry) error
	DeleteLibraryEntry(ctx context.Context, submissionID string) error
	ListLibraryEntries(ctx context.Context) ([]LibraryEntry, error)
}

// Event is one domain event awaiting consumption by presentation and
// notification layers.
type Event struct {
	ID          string
	Name        string
	PayloadJSON string
	CreatedAt   time.Time
}

// EventStore appends domain events to a durable outbox.
type EventStore interface {
	AppendEvent(ctx context.Context, event Event) error
	// ListEvents returns events in append order, oldest first.
	ListEvents(ctx context.Context, limit int) ([]Event, error)
}
