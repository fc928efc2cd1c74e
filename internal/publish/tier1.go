package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// tier1Timeout bounds one round trip to the proof engine.
const tier1Timeout = 60 * time.Second

// Tier1Client talks to the Lean proof engine over HTTP.
type Tier1Client struct {
	baseURL string
	client  *http.Client
}

// NewTier1Client builds a client for the verifier at baseURL.
func NewTier1Client(baseURL string) *Tier1Client {
	return &Tier1Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: tier1Timeout},
	}
}

type tier1Request struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Claims  []string `json:"claims"`
	AgentID string   `json:"agent_id"`
}

type tier1Response struct {
	Verified   bool     `json:"verified"`
	ProofHash  string   `json:"proof_hash"`
	LeanProof  string   `json:"lean_proof"`
	OccamScore float64  `json:"occam_score"`
	Violations []string `json:"violations"`
}

// Verify posts the document and its declared claims to the proof engine.
func (c *Tier1Client) Verify(ctx context.Context, title, content string, claims []string, agentID string) (ProofResult, error) {
	body, err := json.Marshal(tier1Request{
		Title:   title,
		Content: content,
		Claims:  claims,
		AgentID: agentID,
	})
	if err != nil {
		return ProofResult{}, fmt.Errorf("encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return ProofResult{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ProofResult{}, fmt.Errorf("call proof verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProofResult{}, fmt.Errorf("proof verifier returned status %d", resp.StatusCode)
	}

	var decoded tier1Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ProofResult{}, fmt.Errorf("decode verify response: %w", err)
	}
	return ProofResult{
		Verified:   decoded.Verified,
		ProofHash:  decoded.ProofHash,
		LeanProof:  decoded.LeanProof,
		OccamScore: decoded.OccamScore,
		Violations: decoded.Violations,
	}, nil
}
