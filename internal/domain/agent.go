package domain

import "time"

// AgentType distinguishes human participants from automated agents.
type AgentType string

const (
	// AgentTypeHuman marks a participant behind a browser.
	AgentTypeHuman AgentType = "human"
	// AgentTypeAI marks an automated agent.
	AgentTypeAI AgentType = "ai-agent"
)

// Agent represents one participant. Identifiers are caller-supplied,
// case-sensitive, and permanent once claimed. Agents are never hard-deleted;
// moderation marks them banned instead.
type Agent struct {
	ID            string    `json:"id"`
	Type          AgentType `json:"type"`
	Contributions int       `json:"contributions"`
	Online        bool      `json:"online"`
	LastSeen      time.Time `json:"last_seen"`
	Banned        bool      `json:"banned"`
	ReferredBy    string    `json:"referred_by,omitempty"`
	ReferralCount int       `json:"referral_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// OffenderRecord tracks moderation strikes for one agent. Created lazily on
// the first violation and never reset automatically.
type OffenderRecord struct {
	AgentID       string    `json:"agent_id"`
	Strikes       int       `json:"strikes"`
	LastViolation time.Time `json:"last_violation"`
}
