package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/p2pclaw/hive/internal/consensus"
	"github.com/p2pclaw/hive/internal/domain"
	"github.com/p2pclaw/hive/internal/storage"
	"github.com/p2pclaw/hive/internal/warden"
)

type memSubmissionStore struct {
	subs map[string]domain.Submission
}

func (s *memSubmissionStore) PutSubmission(_ context.Context, sub domain.Submission) error {
	s.subs[sub.ID] = sub
	return nil
}

func (s *memSubmissionStore) GetSubmission(_ context.Context, id string) (domain.Submission, error) {
	sub, ok := s.subs[id]
	if !ok {
		return domain.Submission{}, storage.ErrNotFound
	}
	return sub, nil
}

func (s *memSubmissionStore) UpdateSubmission(_ context.Context, id string, fn func(*domain.Submission) error) (domain.Submission, error) {
	sub, ok := s.subs[id]
	if !ok {
		return domain.Submission{}, storage.ErrNotFound
	}
	if err := fn(&sub); err != nil {
		return domain.Submission{}, err
	}
	s.subs[id] = sub
	return sub, nil
}

func (s *memSubmissionStore) ListSubmissions(_ context.Context) ([]domain.Submission, error) {
	out := make([]domain.Submission, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out, nil
}

type memAgentStore struct {
	agents map[string]domain.Agent
}

func (s *memAgentStore) EnsureAgent(_ context.Context, agent domain.Agent) (domain.Agent, bool, error) {
	if existing, ok := s.agents[agent.ID]; ok {
		return existing, false, nil
	}
	s.agents[agent.ID] = agent
	return agent, true, nil
}

func (s *memAgentStore) GetAgent(_ context.Context, id string) (domain.Agent, error) {
	agent, ok := s.agents[id]
	if !ok {
		return domain.Agent{}, storage.ErrNotFound
	}
	return agent, nil
}

func (s *memAgentStore) UpdateAgent(_ context.Context, id string, fn func(*domain.Agent) error) (domain.Agent, error) {
	agent, ok := s.agents[id]
	if !ok {
		return domain.Agent{}, storage.ErrNotFound
	}
	if err := fn(&agent); err != nil {
		return domain.Agent{}, err
	}
	s.agents[id] = agent
	return agent, nil
}

func (s *memAgentStore) ListAgents(_ context.Context) ([]domain.Agent, error) {
	out := make([]domain.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		out = append(out, agent)
	}
	return out, nil
}

type memOffenderStore struct {
	records map[string]domain.OffenderRecord
}

func (s *memOffenderStore) GetOffender(_ context.Context, agentID string) (domain.OffenderRecord, error) {
	rec, ok := s.records[agentID]
	if !ok {
		return domain.OffenderRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *memOffenderStore) UpdateOffender(_ context.Context, agentID string, fn func(*domain.OffenderRecord) error) (domain.OffenderRecord, error) {
	rec, ok := s.records[agentID]
	if !ok {
		rec = domain.OffenderRecord{AgentID: agentID}
	}
	if err := fn(&rec); err != nil {
		return domain.OffenderRecord{}, err
	}
	s.records[agentID] = rec
	return rec, nil
}

func newTestApp(t *testing.T) (*fiber.App, *memAgentStore) {
	t.Helper()
	submissions := &memSubmissionStore{subs: make(map[string]domain.Submission)}
	agents := &memAgentStore{agents: make(map[string]domain.Agent)}
	offenders := &memOffenderStore{records: make(map[string]domain.OffenderRecord)}

	gate := warden.New(warden.DefaultPolicy(), offenders, agents, nil)
	seq := 0
	engine := consensus.New(consensus.Deps{
		Submissions: submissions,
		Agents:      agents,
		Warden:      gate,
	},
		consensus.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
		consensus.WithIDGenerator(func() (string, error) {
			seq++
			return fmt.Sprintf("sub-%d", seq), nil
		}),
		consensus.WithAsync(func(fn func()) { fn() }),
	)
	return NewHandler(engine, gate).App(), agents
}

func validPaper() string {
	var b strings.Builder
	filler := strings.Repeat("distributed consensus latency measurement analysis ", 20)
	b.WriteString("## Abstract\nMeasuring consensus latency across distributed validator meshes.\n")
	b.WriteString("## Introduction\n" + filler + "\n")
	b.WriteString("## Methodology\n" + filler + "\n")
	b.WriteString("## Results\nLatency results [1] and [2] with replication detail [3].\n")
	b.WriteString("## Discussion\n" + filler + "\n")
	b.WriteString("## Conclusion\nMeasuring consensus latency across distributed validator meshes holds.\n")
	b.WriteString("## References\n[1] a. [2] b. [3] c.\n")
	return b.String()
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func getJSON(t *testing.T, app *fiber.App, path string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestSubmitPaperCreated(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := postJSON(t, app, "/papers", map[string]any{
		"title":    "Consensus Latency in Validator Meshes",
		"content":  validPaper(),
		"agent_id": "agent-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", resp.StatusCode, body)
	}
	if body["status"] != string(domain.StatusPending) {
		t.Fatalf("expected PENDING, got %v", body["status"])
	}
	if body["submission_id"] == "" {
		t.Fatal("expected submission id")
	}
}

func TestSubmitPaperValidationRejected(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := postJSON(t, app, "/papers", map[string]any{
		"title":    "Short Note",
		"content":  "not nearly enough",
		"agent_id": "agent-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != string(domain.StatusRejected) {
		t.Fatalf("expected REJECTED, got %v", body["status"])
	}
	if body["reject_reason"] != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", body["reject_reason"])
	}
}

func TestSubmitPaperModerationViolation(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := postJSON(t, app, "/papers", map[string]any{
		"title":    "How to get rich with research",
		"content":  validPaper(),
		"agent_id": "agent-1",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%v)", resp.StatusCode, body)
	}
	if body["error"] != "MODERATION_VIOLATION" {
		t.Fatalf("expected MODERATION_VIOLATION, got %v", body["error"])
	}
}

func TestSubmitPaperMissingTitle(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := postJSON(t, app, "/papers", map[string]any{
		"content":  validPaper(),
		"agent_id": "agent-1",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%v)", resp.StatusCode, body)
	}
}

func TestVerdictFlowPromotes(t *testing.T) {
	app, agents := newTestApp(t)
	_, body := postJSON(t, app, "/papers", map[string]any{
		"title":    "Consensus Latency in Validator Meshes",
		"content":  validPaper(),
		"agent_id": "author",
	})
	subID, _ := body["submission_id"].(string)
	if subID == "" {
		t.Fatalf("expected submission id, got %v", body)
	}
	agents.agents["validator-1"] = domain.Agent{ID: "validator-1", Contributions: 2}
	agents.agents["validator-2"] = domain.Agent{ID: "validator-2", Contributions: 2}

	resp, verdict := postJSON(t, app, "/papers/"+subID+"/verdicts", map[string]any{
		"validator_id": "validator-1",
		"approve":      true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, verdict)
	}
	if verdict["approvals"] != float64(1) {
		t.Fatalf("expected 1 approval, got %v", verdict["approvals"])
	}

	_, verdict = postJSON(t, app, "/papers/"+subID+"/verdicts", map[string]any{
		"validator_id": "validator-2",
		"approve":      true,
	})
	if verdict["status"] != string(domain.StatusVerified) {
		t.Fatalf("expected VERIFIED, got %v", verdict["status"])
	}
}

func TestVerdictFromNewcomerForbidden(t *testing.T) {
	app, _ := newTestApp(t)
	_, body := postJSON(t, app, "/papers", map[string]any{
		"title":    "Consensus Latency in Validator Meshes",
		"content":  validPaper(),
		"agent_id": "author",
	})
	subID := body["submission_id"].(string)

	resp, verdict := postJSON(t, app, "/papers/"+subID+"/verdicts", map[string]any{
		"validator_id": "author",
		"approve":      true,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%v)", resp.StatusCode, verdict)
	}
	if verdict["error"] != "INELIGIBLE_VALIDATOR" {
		t.Fatalf("expected INELIGIBLE_VALIDATOR, got %v", verdict["error"])
	}
}

func TestVerdictUnknownSubmission(t *testing.T) {
	app, agents := newTestApp(t)
	agents.agents["validator-1"] = domain.Agent{ID: "validator-1", Contributions: 2}

	resp, _ := postJSON(t, app, "/papers/missing/verdicts", map[string]any{
		"validator_id": "validator-1",
		"approve":      true,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWardenInspectEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := postJSON(t, app, "/warden/inspect", map[string]any{
		"agent_id": "agent-1",
		"text":     "pump it to the moon",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["allowed"] != false {
		t.Fatalf("expected blocked, got %v", body)
	}
	if body["strikes"] != float64(1) {
		t.Fatalf("expected 1 strike, got %v", body["strikes"])
	}
}

func TestAgentRankEndpoint(t *testing.T) {
	app, agents := newTestApp(t)
	agents.agents["senior"] = domain.Agent{ID: "senior", Contributions: 7}

	resp, body := getJSON(t, app, "/agents/senior/rank")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["rank"] != "SENIOR" {
		t.Fatalf("expected SENIOR, got %v", body["rank"])
	}
	if body["weight"] != float64(2) {
		t.Fatalf("expected weight 2, got %v", body["weight"])
	}

	_, body = getJSON(t, app, "/agents/stranger/rank")
	if body["rank"] != "NEWCOMER" {
		t.Fatalf("expected NEWCOMER, got %v", body["rank"])
	}
}

func TestSwarmStatusEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	postJSON(t, app, "/papers", map[string]any{
		"title":    "Consensus Latency in Validator Meshes",
		"content":  validPaper(),
		"agent_id": "agent-1",
	})

	resp, body := getJSON(t, app, "/swarm-status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["pending"] != float64(1) {
		t.Fatalf("expected 1 pending, got %v", body["pending"])
	}
	if body["total_agents"] != float64(1) {
		t.Fatalf("expected 1 agent, got %v", body["total_agents"])
	}
}

func TestSandboxMissionsEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := getJSON(t, app, "/sandbox/missions")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	missions, ok := body["missions"].([]any)
	if !ok || len(missions) != len(SampleMissions) {
		t.Fatalf("expected %d missions, got %v", len(SampleMissions), body["missions"])
	}
}

func TestAgentTypeFromUA(t *testing.T) {
	tests := []struct {
		ua   string
		want domain.AgentType
	}{
		{"Mozilla/5.0 (Macintosh) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", domain.AgentTypeHuman},
		{"curl/8.4.0", domain.AgentTypeAI},
		{"python-requests/2.31", domain.AgentTypeAI},
		{"Mozilla/5.0 compatible Googlebot Chrome/120", domain.AgentTypeAI},
		{"", domain.AgentTypeAI},
	}
	for _, tc := range tests {
		if got := agentTypeFromUA(tc.ua); got != tc.want {
			t.Fatalf("ua %q: expected %s, got %s", tc.ua, tc.want, got)
		}
	}
}
