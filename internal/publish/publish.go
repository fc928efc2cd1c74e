// Package publish binds verified content to external durable storage and,
// optionally, to an external formal-proof verifier. Both collaborators are
// best effort; exhausted retries or verifier failures never roll back a
// verified submission.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	apperrors "github.com/p2pclaw/hive/internal/platform/errors"
)

// Artifact is the durable-storage handle for one published document.
type Artifact struct {
	CID string
	URL string
}

// StorageClient uploads a document to durable storage and returns its
// content identifier.
type StorageClient interface {
	Upload(ctx context.Context, title, content, author string) (Artifact, error)
}

// ProofResult is the verifier's verdict on one document.
type ProofResult struct {
	Verified   bool
	ProofHash  string
	LeanProof  string
	OccamScore float64
	Violations []string
}

// ProofVerifier submits content and declared claims to the external proof
// engine.
type ProofVerifier interface {
	Verify(ctx context.Context, title, content string, claims []string, agentID string) (ProofResult, error)
}

// Coordinator drives best-effort publication with bounded retries.
type Coordinator struct {
	storage  StorageClient
	verifier ProofVerifier

	maxAttempts int
	baseDelay   time.Duration

	// sleep is injected so tests run without waiting out the backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option adjusts coordinator behavior.
type Option func(*Coordinator)

// WithRetry overrides the attempt count and linear backoff base.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Coordinator) {
		c.maxAttempts = attempts
		c.baseDelay = base
	}
}

// WithSleeper replaces the backoff sleeper.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) {
		c.sleep = sleep
	}
}

// NewCoordinator builds a coordinator over a storage client and an optional
// proof verifier. A nil verifier disables the proof step.
func NewCoordinator(storage StorageClient, verifier ProofVerifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		storage:     storage,
		verifier:    verifier,
		maxAttempts: 3,
		baseDelay:   3 * time.Second,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish uploads the document with bounded retries and linear backoff
// (base, 2*base, ...). On exhausted attempts it returns a zero artifact and
// a storage-unavailable error; the document stays in the mesh regardless.
func (c *Coordinator) Publish(ctx context.Context, title, content, author string) (Artifact, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		artifact, err := c.storage.Upload(ctx, title, content, author)
		if err == nil && artifact.CID != "" {
			log.Printf("publish: stored %q on attempt %d, cid %s", title, attempt, artifact.CID)
			return artifact, nil
		}
		if err == nil {
			err = apperrors.New(apperrors.CodeStorageUnavailable, "storage returned empty content id")
		}
		lastErr = err
		if attempt < c.maxAttempts {
			delay := time.Duration(attempt) * c.baseDelay
			log.Printf("publish: attempt %d/%d for %q failed: %v, retrying in %s", attempt, c.maxAttempts, title, err, delay)
			if err := c.sleep(ctx, delay); err != nil {
				return Artifact{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "publish canceled", err)
			}
		}
	}
	log.Printf("publish: all %d attempts failed for %q, document stays in mesh only", c.maxAttempts, title)
	return Artifact{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "durable storage unavailable", lastErr)
}

// Proof is the outcome of the optional formal-proof step.
type Proof struct {
	Verified  bool
	Hash      string
	LeanProof string
}

// Prove submits the document to the proof verifier and binds the returned
// proof to the content by recomputing its hash. Verifier unavailability and
// hash mismatches degrade to an unverified proof; the error reports the
// cause for logging but never fails the publish.
func (c *Coordinator) Prove(ctx context.Context, title, content string, claims []string, agentID string) (Proof, error) {
	if c.verifier == nil {
		return Proof{}, nil
	}
	result, err := c.verifier.Verify(ctx, title, content, claims, agentID)
	if err != nil {
		return Proof{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "proof verifier unavailable", err)
	}
	if !result.Verified {
		return Proof{}, nil
	}
	if !VerifyProofHash(result.LeanProof, content, result.ProofHash) {
		return Proof{}, apperrors.WithMetadata(
			apperrors.CodeProofHashMismatch, "proof hash does not bind to content",
			map[string]string{"claimed_hash": result.ProofHash},
		)
	}
	return Proof{Verified: true, Hash: result.ProofHash, LeanProof: result.LeanProof}, nil
}

// VerifyProofHash recomputes sha256(leanProof + content) and compares it to
// the claimed hash. Validators use it to re-check proofs independently.
func VerifyProofHash(leanProof, content, claimedHash string) bool {
	if claimedHash == "" {
		return false
	}
	sum := sha256.Sum256([]byte(leanProof + content))
	return hex.EncodeToString(sum[:]) == claimedHash
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
