// Package warden moderates agent-authored free text. It matches banned
// phrases and words, tracks per-agent strikes, and escalates repeat
// offenders to a permanent ban. It is the only component permitted to set
// the ban flag on an agent record.
package warden

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/p2pclaw/hive/internal/domain"
	"github.com/p2pclaw/hive/internal/events"
	apperrors "github.com/p2pclaw/hive/internal/platform/errors"
	"github.com/p2pclaw/hive/internal/storage"
)

// Report is the outcome of one inspection.
type Report struct {
	Allowed   bool
	Banned    bool
	Strikes   int
	Violation string
	Message   string
}

// Warden inspects text against a policy and persists strike and ban state.
type Warden struct {
	policy    Policy
	phrases   []string
	words     []*regexp.Regexp
	offenders storage.OffenderStore
	agents    storage.AgentStore
	emitter   *events.Emitter

	now func() time.Time
}

// New builds a warden over the given stores. A nil emitter disables event
// emission.
func New(policy Policy, offenders storage.OffenderStore, agents storage.AgentStore, emitter *events.Emitter) *Warden {
	words := make([]*regexp.Regexp, 0, len(policy.BannedWords))
	for _, word := range policy.BannedWords {
		words = append(words, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`))
	}
	return &Warden{
		policy:    policy,
		phrases:   policy.normalizedPhrases(),
		words:     words,
		offenders: offenders,
		agents:    agents,
		emitter:   emitter,
		now:       time.Now,
	}
}

// Inspect checks text authored by agentID. Clean text and whitelisted
// agents pass without side effects; a violation records a strike and may
// escalate to a ban. The violation outcome is reported through the Report,
// not the error value; the error is reserved for storage failures.
func (w *Warden) Inspect(ctx context.Context, agentID, text string) (Report, error) {
	if w.policy.whitelisted(agentID) {
		return Report{Allowed: true}, nil
	}

	if agent, err := w.agents.GetAgent(ctx, agentID); err == nil && agent.Banned {
		record, _ := w.offenders.GetOffender(ctx, agentID)
		return Report{
			Allowed: false,
			Banned:  true,
			Strikes: record.Strikes,
			Message: "agent is banned, appeal via warden appeal",
		}, nil
	}

	lower := strings.ToLower(text)
	for _, phrase := range w.phrases {
		if strings.Contains(lower, phrase) {
			return w.applyStrike(ctx, agentID, phrase)
		}
	}
	for i, pattern := range w.words {
		if pattern.MatchString(text) {
			return w.applyStrike(ctx, agentID, w.policy.BannedWords[i])
		}
	}
	return Report{Allowed: true}, nil
}

func (w *Warden) applyStrike(ctx context.Context, agentID, violation string) (Report, error) {
	record, err := w.offenders.UpdateOffender(ctx, agentID, func(rec *domain.OffenderRecord) error {
		rec.Strikes++
		rec.LastViolation = w.now().UTC()
		return nil
	})
	if err != nil {
		return Report{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "record strike", err)
	}

	log.Printf("warden: agent %s violated with %q, strike %d/%d", agentID, violation, record.Strikes, w.policy.StrikeLimit)

	if record.Strikes >= w.policy.StrikeLimit {
		return w.ban(ctx, agentID, violation, record.Strikes)
	}
	return Report{
		Allowed:   false,
		Strikes:   record.Strikes,
		Violation: violation,
		Message:   fmt.Sprintf("strike %d/%d for %q, appeal via warden appeal", record.Strikes, w.policy.StrikeLimit, violation),
	}, nil
}

// ban marks the agent banned and offline. The transition is monotonic; an
// already banned agent stays banned and no second ban event is emitted.
func (w *Warden) ban(ctx context.Context, agentID, violation string, strikes int) (Report, error) {
	alreadyBanned := false
	_, _, err := w.agents.EnsureAgent(ctx, domain.Agent{ID: agentID, CreatedAt: w.now().UTC()})
	if err != nil {
		return Report{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "ensure agent", err)
	}
	_, err = w.agents.UpdateAgent(ctx, agentID, func(agent *domain.Agent) error {
		alreadyBanned = agent.Banned
		agent.Banned = true
		agent.Online = false
		return nil
	})
	if err != nil {
		return Report{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "ban agent", err)
	}

	if !alreadyBanned {
		if err := w.emitter.Emit(ctx, events.AgentBanned, map[string]any{
			"agent_id":  agentID,
			"violation": violation,
			"strikes":   strikes,
		}); err != nil {
			log.Printf("warden: emit agent_banned for %s: %v", agentID, err)
		}
	}

	return Report{
		Allowed:   false,
		Banned:    true,
		Strikes:   strikes,
		Violation: violation,
		Message:   fmt.Sprintf("expelled after %d strikes, appeal via warden appeal", w.policy.StrikeLimit),
	}, nil
}
