// Package domain holds the core records of the paper admission pipeline.
package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/p2pclaw/hive/internal/platform/errors"
	"github.com/p2pclaw/hive/internal/platform/id"
)

// Status describes where a submission sits in its lifecycle.
//
// PENDING is the only non-terminal state. Transitions form a lattice
// (PENDING < VERIFIED, PENDING < REJECTED, VERIFIED < REJECTED via flag
// retraction) so replayed updates can never move a record backwards.
type Status string

const (
	// StatusPending marks a submission awaiting validator verdicts.
	StatusPending Status = "PENDING"
	// StatusVerified marks a promoted submission in the canonical library.
	StatusVerified Status = "VERIFIED"
	// StatusRejected marks a terminal rejection or retraction.
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether the status admits no further verdicts.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// ProofStatus describes the external formal-proof binding of a submission.
type ProofStatus string

const (
	// ProofNone means no proof verification was attempted.
	ProofNone ProofStatus = "none"
	// ProofVerified means the verifier approved and the hash binding checked out.
	ProofVerified ProofStatus = "verified"
	// ProofUnverified means the verifier declined, was unreachable, or the
	// returned hash did not bind to the content.
	ProofUnverified ProofStatus = "unverified"
)

// Verdict is one validator's immutable ruling on a submission.
type Verdict struct {
	ValidatorID  string    `json:"validator_id"`
	SubmissionID string    `json:"submission_id"`
	Approve      bool      `json:"approve"`
	At           time.Time `json:"at"`
}

// ScoreBreakdown carries the per-dimension points behind a submission score.
type ScoreBreakdown struct {
	Structure  float64 `json:"structure"`
	Length     float64 `json:"length"`
	References float64 `json:"references"`
	Coherence  float64 `json:"coherence"`
}

// Submission represents one document under review.
type Submission struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Content       string             `json:"content"`
	Author        string             `json:"author"`
	Investigation string             `json:"investigation,omitempty"`
	Score         float64            `json:"score"`
	Breakdown     ScoreBreakdown     `json:"breakdown"`
	Status        Status             `json:"status"`
	RejectReason  string             `json:"reject_reason,omitempty"`
	Verdicts      map[string]Verdict `json:"verdicts,omitempty"`
	Flags         map[string]string  `json:"flags,omitempty"`
	CID           string             `json:"cid,omitempty"`
	ArchiveURL    string             `json:"archive_url,omitempty"`
	ProofStatus   ProofStatus        `json:"proof_status,omitempty"`
	ProofHash     string             `json:"proof_hash,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	VerifiedAt    *time.Time         `json:"verified_at,omitempty"`
}

// Approvals counts distinct recorded APPROVE verdicts.
func (s *Submission) Approvals() int {
	count := 0
	for _, v := range s.Verdicts {
		if v.Approve {
			count++
		}
	}
	return count
}

// IntakeInput describes a candidate document entering the pipeline.
type IntakeInput struct {
	Title         string
	Content       string
	Author        string
	AgentID       string
	Investigation string
}

// NormalizeIntakeInput trims and validates intake metadata.
func NormalizeIntakeInput(input IntakeInput) (IntakeInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	input.AgentID = strings.TrimSpace(input.AgentID)
	input.Investigation = strings.TrimSpace(input.Investigation)
	if input.Title == "" {
		return IntakeInput{}, apperrors.New(apperrors.CodeTitleEmpty, "submission title is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		return IntakeInput{}, apperrors.New(apperrors.CodeContentEmpty, "submission content is required")
	}
	if input.AgentID == "" {
		return IntakeInput{}, apperrors.New(apperrors.CodeAgentEmpty, "agent id is required")
	}
	if input.Author == "" {
		input.Author = input.AgentID
	}
	return input, nil
}

// NewSubmission creates a pending submission with a generated ID.
func NewSubmission(input IntakeInput, now func() time.Time, idGenerator func() (string, error)) (Submission, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeIntakeInput(input)
	if err != nil {
		return Submission{}, err
	}

	submissionID, err := idGenerator()
	if err != nil {
		return Submission{}, fmt.Errorf("generate submission id: %w", err)
	}

	return Submission{
		ID:            submissionID,
		Title:         normalized.Title,
		Content:       normalized.Content,
		Author:        normalized.Author,
		Investigation: normalized.Investigation,
		Status:        StatusPending,
		ProofStatus:   ProofNone,
		CreatedAt:     now().UTC(),
	}, nil
}
