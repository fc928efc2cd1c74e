// Package consensus owns the submission lifecycle from intake to terminal
// state. It chains the moderation gate, the scorer, and the dedup wheel at
// intake, counts validator verdicts while pending, and drives promotion,
// flag-based rejection, and the best-effort durable publish.
package consensus

import (
	"context"
	"log"
	"time"

	"github.com/p2pclaw/hive/internal/domain"
	"github.com/p2pclaw/hive/internal/events"
	"github.com/p2pclaw/hive/internal/platform/id"
	"github.com/p2pclaw/hive/internal/publish"
	"github.com/p2pclaw/hive/internal/rank"
	"github.com/p2pclaw/hive/internal/score"
	"github.com/p2pclaw/hive/internal/storage"
	"github.com/p2pclaw/hive/internal/warden"
	"github.com/p2pclaw/hive/internal/wheel"

	apperrors "github.com/p2pclaw/hive/internal/platform/errors"
)

const (
	defaultApprovalThreshold = 2
	defaultFlagThreshold     = 3
)

// Deps wires the engine's collaborators.
type Deps struct {
	Submissions storage.SubmissionStore
	Agents      storage.AgentStore
	Library     storage.LibraryStore
	Warden      *warden.Warden
	Publisher   *publish.Coordinator
	Emitter     *events.Emitter
}

// Engine is the consensus state machine over shared submission and agent
// records. Every mutation is expressed as an idempotent merge applied to
// the latest observed record, so concurrent verdict or flag arrivals can
// never double-promote or corrupt state.
type Engine struct {
	submissions storage.SubmissionStore
	agents      storage.AgentStore
	library     storage.LibraryStore
	warden      *warden.Warden
	publisher   *publish.Coordinator
	emitter     *events.Emitter

	approvalThreshold  int
	flagThreshold      int
	duplicateThreshold float64

	now         func() time.Time
	idGenerator func() (string, error)
	// async runs the post-promotion publish side effect. Injected so tests
	// run it inline.
	async func(fn func())
}

// Option adjusts engine behavior.
type Option func(*Engine)

// WithThresholds overrides the approval and flag thresholds.
func WithThresholds(approvals, flags int) Option {
	return func(e *Engine) {
		e.approvalThreshold = approvals
		e.flagThreshold = flags
	}
}

// WithDuplicateThreshold overrides the wheel similarity cutoff.
func WithDuplicateThreshold(threshold float64) Option {
	return func(e *Engine) {
		e.duplicateThreshold = threshold
	}
}

// WithClock injects a deterministic clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator injects a deterministic submission id source.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(e *Engine) {
		e.idGenerator = gen
	}
}

// WithAsync replaces the goroutine launcher for publish side effects.
func WithAsync(async func(fn func())) Option {
	return func(e *Engine) {
		e.async = async
	}
}

// New builds a consensus engine.
func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		submissions:        deps.Submissions,
		agents:             deps.Agents,
		library:            deps.Library,
		warden:             deps.Warden,
		publisher:          deps.Publisher,
		emitter:            deps.Emitter,
		approvalThreshold:  defaultApprovalThreshold,
		flagThreshold:      defaultFlagThreshold,
		duplicateThreshold: wheel.DefaultThreshold,
		now:                time.Now,
		idGenerator:        id.NewID,
		async:              func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Contact records first or repeat contact from an agent: the record is
// created on first sight, presence is refreshed, and the referrer's counter
// increments exactly once per distinct referred agent.
func (e *Engine) Contact(ctx context.Context, agentID string, agentType domain.AgentType, referredBy string) (domain.Agent, error) {
	if agentType == "" {
		agentType = domain.AgentTypeAI
	}
	now := e.now().UTC()
	agent, created, err := e.agents.EnsureAgent(ctx, domain.Agent{
		ID:         agentID,
		Type:       agentType,
		Online:     true,
		LastSeen:   now,
		ReferredBy: referredBy,
		CreatedAt:  now,
	})
	if err != nil {
		return domain.Agent{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "ensure agent", err)
	}

	if created && referredBy != "" && referredBy != agentID {
		if err := e.creditReferrer(ctx, referredBy); err != nil {
			log.Printf("consensus: credit referrer %s for %s: %v", referredBy, agentID, err)
		}
	}

	if !created {
		agent, err = e.agents.UpdateAgent(ctx, agentID, func(a *domain.Agent) error {
			a.LastSeen = now
			if !a.Banned {
				a.Online = true
			}
			return nil
		})
		if err != nil {
			return domain.Agent{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "refresh agent presence", err)
		}
	}
	return agent, nil
}

func (e *Engine) creditReferrer(ctx context.Context, referrerID string) error {
	now := e.now().UTC()
	if _, _, err := e.agents.EnsureAgent(ctx, domain.Agent{ID: referrerID, Type: domain.AgentTypeAI, CreatedAt: now}); err != nil {
		return err
	}
	_, err := e.agents.UpdateAgent(ctx, referrerID, func(a *domain.Agent) error {
		a.ReferralCount++
		return nil
	})
	return err
}

// IntakeResult reports the outcome of one submission attempt. Rejections by
// the scorer or the wheel are results, not errors; the submission is stored
// terminally with its reject reason.
type IntakeResult struct {
	SubmissionID string
	Status       domain.Status
	Score        float64
	Breakdown    domain.ScoreBreakdown
	RejectReason string
	Duplicate    *wheel.Match
}

// Intake runs the admission pipeline: agent upsert, moderation gate,
// scorer, dedup wheel, then a PENDING submission. Moderation violations are
// agent-level errors and store no submission; scorer and wheel failures
// store a terminal REJECTED submission with the typed reason.
func (e *Engine) Intake(ctx context.Context, input domain.IntakeInput) (IntakeResult, error) {
	normalized, err := domain.NormalizeIntakeInput(input)
	if err != nil {
		return IntakeResult{}, err
	}

	agent, err := e.Contact(ctx, normalized.AgentID, domain.AgentTypeAI, "")
	if err != nil {
		return IntakeResult{}, err
	}
	if agent.Banned {
		return IntakeResult{}, apperrors.New(apperrors.CodeBanned, "agent is banned")
	}

	report, err := e.warden.Inspect(ctx, normalized.AgentID, normalized.Title+"\n\n"+normalized.Content)
	if err != nil {
		return IntakeResult{}, err
	}
	if !report.Allowed {
		if report.Banned {
			return IntakeResult{}, apperrors.WithMetadata(apperrors.CodeBanned, report.Message, map[string]string{
				"violation": report.Violation,
			})
		}
		return IntakeResult{}, apperrors.WithMetadata(apperrors.CodeModerationViolation, report.Message, map[string]string{
			"violation": report.Violation,
		})
	}

	evaluated := score.Evaluate(normalized.Content)

	sub, err := domain.NewSubmission(normalized, e.now, e.idGenerator)
	if err != nil {
		return IntakeResult{}, err
	}
	sub.Score = evaluated.Score
	sub.Breakdown = evaluated.Breakdown

	if !evaluated.Valid {
		return e.rejectAtIntake(ctx, sub, apperrors.CodeValidationFailed, nil)
	}

	corpus, err := e.dedupCorpus(ctx)
	if err != nil {
		return IntakeResult{}, err
	}
	match := wheel.Detect(sub.Title, corpus, e.duplicateThreshold)
	if match.Exists {
		return e.rejectAtIntake(ctx, sub, apperrors.CodeDuplicateDetected, &match)
	}

	if err := e.submissions.PutSubmission(ctx, sub); err != nil {
		return IntakeResult{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "store submission", err)
	}
	e.emit(ctx, events.SubmissionCreated, map[string]any{
		"submission_id": sub.ID,
		"title":         sub.Title,
		"author":        sub.Author,
		"score":         sub.Score,
	})
	return IntakeResult{
		SubmissionID: sub.ID,
		Status:       sub.Status,
		Score:        sub.Score,
		Breakdown:    sub.Breakdown,
	}, nil
}

func (e *Engine) rejectAtIntake(ctx context.Context, sub domain.Submission, reason apperrors.Code, match *wheel.Match) (IntakeResult, error) {
	sub.Status = domain.StatusRejected
	sub.RejectReason = string(reason)
	if err := e.submissions.PutSubmission(ctx, sub); err != nil {
		return IntakeResult{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "store rejected submission", err)
	}
	payload := map[string]any{
		"submission_id": sub.ID,
		"title":         sub.Title,
		"author":        sub.Author,
		"reason":        sub.RejectReason,
	}
	if match != nil {
		payload["duplicate_of"] = match.ID
		payload["similarity"] = match.Similarity
	}
	e.emit(ctx, events.SubmissionRejected, payload)
	return IntakeResult{
		SubmissionID: sub.ID,
		Status:       sub.Status,
		Score:        sub.Score,
		Breakdown:    sub.Breakdown,
		RejectReason: sub.RejectReason,
		Duplicate:    match,
	}, nil
}

// dedupCorpus collects pending and verified titles. Rejected submissions do
// not block resubmission of a revised duplicate.
func (e *Engine) dedupCorpus(ctx context.Context) ([]wheel.Entry, error) {
	subs, err := e.submissions.ListSubmissions(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageUnavailable, "list submissions", err)
	}
	corpus := make([]wheel.Entry, 0, len(subs))
	for _, sub := range subs {
		if sub.Status == domain.StatusRejected {
			continue
		}
		corpus = append(corpus, wheel.Entry{ID: sub.ID, Title: sub.Title})
	}
	return corpus, nil
}

// VerdictResult reports the state after a validator ruling.
type VerdictResult struct {
	Accepted  bool
	Approvals int
	Status    domain.Status
}

// CastVerdict records one validator's ruling on a pending submission. A
// validator's re-submission overwrites their prior verdict rather than
// double-counting. When distinct approvals reach the threshold the
// submission transitions to VERIFIED exactly once and the durable publish
// runs as an asynchronous side effect.
func (e *Engine) CastVerdict(ctx context.Context, submissionID, validatorID string, approve bool) (VerdictResult, error) {
	validator, err := e.agents.GetAgent(ctx, validatorID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return VerdictResult{}, apperrors.New(apperrors.CodeIneligibleValidator, "unknown validator has no rank")
		}
		return VerdictResult{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "load validator", err)
	}
	if validator.Banned {
		return VerdictResult{}, apperrors.New(apperrors.CodeBanned, "validator is banned")
	}
	if r := rank.Calculate(validator.Contributions); !r.Tier.CanValidate() {
		return VerdictResult{}, apperrors.WithMetadata(apperrors.CodeIneligibleValidator, "rank too low to validate", map[string]string{
			"tier": string(r.Tier),
		})
	}

	promoted := false
	now := e.now().UTC()
	sub, err := e.submissions.UpdateSubmission(ctx, submissionID, func(s *domain.Submission) error {
		if s.Author == validatorID {
			return apperrors.New(apperrors.CodeIneligibleValidator, "authors may not validate their own submission")
		}
		if s.Status.Terminal() {
			return apperrors.New(apperrors.CodeSubmissionTerminal, "submission already reached a terminal state")
		}
		if s.Verdicts == nil {
			s.Verdicts = make(map[string]domain.Verdict)
		}
		s.Verdicts[validatorID] = domain.Verdict{
			ValidatorID:  validatorID,
			SubmissionID: s.ID,
			Approve:      approve,
			At:           now,
		}
		if s.Approvals() >= e.approvalThreshold {
			s.Status = domain.StatusVerified
			verifiedAt := now
			s.VerifiedAt = &verifiedAt
			promoted = true
		}
		return nil
	})
	if err != nil {
		return VerdictResult{}, err
	}

	if promoted {
		e.promote(ctx, sub)
	}
	return VerdictResult{Accepted: true, Approvals: sub.Approvals(), Status: sub.Status}, nil
}

// promote runs the post-transition side effects. The VERIFIED state is
// already durably recorded; everything here is best effort.
func (e *Engine) promote(ctx context.Context, sub domain.Submission) {
	if _, err := e.agents.UpdateAgent(ctx, sub.Author, func(a *domain.Agent) error {
		a.Contributions++
		return nil
	}); err != nil {
		log.Printf("consensus: credit author %s for %s: %v", sub.Author, sub.ID, err)
	}

	e.emit(ctx, events.SubmissionVerified, map[string]any{
		"submission_id": sub.ID,
		"title":         sub.Title,
		"author":        sub.Author,
		"score":         sub.Score,
	})

	if e.library != nil {
		entry := storage.LibraryEntry{
			SubmissionID:  sub.ID,
			Title:         sub.Title,
			Author:        sub.Author,
			Investigation: sub.Investigation,
			Score:         sub.Score,
			ProofStatus:   string(sub.ProofStatus),
		}
		if sub.VerifiedAt != nil {
			entry.VerifiedAt = *sub.VerifiedAt
		}
		if err := e.library.UpsertLibraryEntry(ctx, entry); err != nil {
			log.Printf("consensus: write library row for %s: %v", sub.ID, err)
		}
	}

	if e.publisher != nil {
		e.async(func() { e.publishVerified(sub) })
	}
}

// publishVerified binds the verified content to durable storage and the
// optional proof verifier, then merges the results onto the submission.
// Runs detached from the request context so caller cancellation cannot
// abandon a half-finished binding.
func (e *Engine) publishVerified(sub domain.Submission) {
	ctx := context.Background()

	artifact, err := e.publisher.Publish(ctx, sub.Title, sub.Content, sub.Author)
	if err != nil {
		log.Printf("consensus: durable publish for %s: %v", sub.ID, err)
	}

	proofStatus := domain.ProofNone
	var proofHash string
	proof, proofErr := e.publisher.Prove(ctx, sub.Title, sub.Content, nil, sub.Author)
	switch {
	case proof.Verified:
		proofStatus = domain.ProofVerified
		proofHash = proof.Hash
	case proofErr != nil:
		log.Printf("consensus: proof verification for %s: %v", sub.ID, proofErr)
		proofStatus = domain.ProofUnverified
	}

	updated, err := e.submissions.UpdateSubmission(ctx, sub.ID, func(s *domain.Submission) error {
		if artifact.CID != "" {
			s.CID = artifact.CID
			s.ArchiveURL = artifact.URL
		}
		if proofStatus != domain.ProofNone {
			s.ProofStatus = proofStatus
			s.ProofHash = proofHash
		}
		return nil
	})
	if err != nil {
		log.Printf("consensus: bind publish results for %s: %v", sub.ID, err)
		return
	}

	if e.library != nil && artifact.CID != "" {
		entry := storage.LibraryEntry{
			SubmissionID:  updated.ID,
			Title:         updated.Title,
			Author:        updated.Author,
			Investigation: updated.Investigation,
			Score:         updated.Score,
			CID:           updated.CID,
			ArchiveURL:    updated.ArchiveURL,
			ProofStatus:   string(updated.ProofStatus),
		}
		if updated.VerifiedAt != nil {
			entry.VerifiedAt = *updated.VerifiedAt
		}
		if err := e.library.UpsertLibraryEntry(ctx, entry); err != nil {
			log.Printf("consensus: refresh library row for %s: %v", updated.ID, err)
		}
	}
}

// FlagResult reports the state after a quality flag.
type FlagResult struct {
	Accepted bool
	Flags    int
	Status   domain.Status
}

// Flag raises a quality flag against a pending or verified submission.
// Flags form a distinct-agent set; at the threshold the submission
// transitions (or reverts, when previously verified) to REJECTED.
func (e *Engine) Flag(ctx context.Context, submissionID, agentID, reason string) (FlagResult, error) {
	demoted := false
	wasVerified := false
	sub, err := e.submissions.UpdateSubmission(ctx, submissionID, func(s *domain.Submission) error {
		if s.Status == domain.StatusRejected {
			return apperrors.New(apperrors.CodeSubmissionTerminal, "submission already rejected")
		}
		if s.Flags == nil {
			s.Flags = make(map[string]string)
		}
		s.Flags[agentID] = reason
		if len(s.Flags) >= e.flagThreshold {
			wasVerified = s.Status == domain.StatusVerified
			s.Status = domain.StatusRejected
			s.RejectReason = "flag_threshold_reached"
			demoted = true
		}
		return nil
	})
	if err != nil {
		return FlagResult{}, err
	}

	if demoted {
		e.emit(ctx, events.SubmissionRejected, map[string]any{
			"submission_id": sub.ID,
			"title":         sub.Title,
			"author":        sub.Author,
			"reason":        sub.RejectReason,
			"flags":         len(sub.Flags),
		})
		if wasVerified && e.library != nil {
			if err := e.library.DeleteLibraryEntry(ctx, sub.ID); err != nil {
				log.Printf("consensus: retract library row for %s: %v", sub.ID, err)
			}
		}
	}
	return FlagResult{Accepted: true, Flags: len(sub.Flags), Status: sub.Status}, nil
}

// RankInfo is the rank query result for one agent.
type RankInfo struct {
	Tier          rank.Tier
	Weight        int
	Contributions int
}

// AgentRank reports an agent's current rank. Unknown agents rank as
// newcomers.
func (e *Engine) AgentRank(ctx context.Context, agentID string) (RankInfo, error) {
	agent, err := e.agents.GetAgent(ctx, agentID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			r := rank.Calculate(0)
			return RankInfo{Tier: r.Tier, Weight: r.Weight}, nil
		}
		return RankInfo{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "load agent", err)
	}
	r := rank.Calculate(agent.Contributions)
	return RankInfo{Tier: r.Tier, Weight: r.Weight, Contributions: agent.Contributions}, nil
}

// SwarmStatus summarizes the mesh for status queries.
type SwarmStatus struct {
	Pending      int
	Verified     int
	Rejected     int
	OnlineAgents int
	TotalAgents  int
}

// Swarm reports submission and agent counts.
func (e *Engine) Swarm(ctx context.Context) (SwarmStatus, error) {
	subs, err := e.submissions.ListSubmissions(ctx)
	if err != nil {
		return SwarmStatus{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "list submissions", err)
	}
	agents, err := e.agents.ListAgents(ctx)
	if err != nil {
		return SwarmStatus{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "list agents", err)
	}

	status := SwarmStatus{TotalAgents: len(agents)}
	for _, sub := range subs {
		switch sub.Status {
		case domain.StatusPending:
			status.Pending++
		case domain.StatusVerified:
			status.Verified++
		case domain.StatusRejected:
			status.Rejected++
		}
	}
	for _, agent := range agents {
		if agent.Online {
			status.OnlineAgents++
		}
	}
	return status, nil
}

func (e *Engine) emit(ctx context.Context, name string, payload map[string]any) {
	if err := e.emitter.Emit(ctx, name, payload); err != nil {
		log.Printf("consensus: emit %s: %v", name, err)
	}
}
