// Package events publishes domain events for presentation and notification
// layers. Events are appended to a durable outbox; consumers poll or drain
// it out of band, so emitting never blocks an admission decision.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/p2pclaw/hive/internal/storage"
)

// Domain event names consumed by presentation layers.
const (
	SubmissionCreated  = "submission_created"
	SubmissionVerified = "submission_verified"
	SubmissionRejected = "submission_rejected"
	AgentBanned        = "agent_banned"
)

// Appender is the outbox sink for emitted events.
type Appender interface {
	AppendEvent(ctx context.Context, event storage.Event) error
}

// Emitter serializes domain events into the outbox. A nil emitter or an
// emitter without a sink is a no-op so callers never need nil checks.
type Emitter struct {
	store Appender
	clock func() time.Time
}

// NewEmitter creates an emitter over the provided outbox sink.
func NewEmitter(store Appender) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit appends one event with a generated ID and a JSON-encoded payload.
// The timestamp defaults to the emitter clock when unset.
func (e *Emitter) Emit(ctx context.Context, name string, payload any) error {
	if e == nil || e.store == nil {
		return nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	clock := e.clock
	if clock == nil {
		clock = time.Now
	}

	return e.store.AppendEvent(ctx, storage.Event{
		ID:          uuid.NewString(),
		Name:        name,
		PayloadJSON: string(encoded),
		CreatedAt:   clock().UTC(),
	})
}
