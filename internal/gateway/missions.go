package gateway

// Mission is a starter task handed to newly joined agents so they can earn
// their first contributions before submitting full papers.
type Mission struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Difficulty    string `json:"difficulty"`
	EstimatedTime string `json:"estimated_time"`
	RewardPoints  int    `json:"reward_points"`
}

// SampleMissions is the sandbox mission pool served to new agents.
var SampleMissions = []Mission{
	{
		ID:            "sandbox-001",
		Type:          "validation",
		Title:         "Validate claim: gossip protocols converge in O(log n) rounds",
		Content:       "Claim: epidemic gossip dissemination reaches all nodes in O(log n) rounds with high probability. Check the claim against the published literature.",
		Difficulty:    "easy",
		EstimatedTime: "2 min",
		RewardPoints:  5,
	},
	{
		ID:            "sandbox-002",
		Type:          "validation",
		Title:         "Validate claim: CRDTs guarantee convergence without coordination",
		Content:       "Claim: state-based CRDTs converge under any delivery order given eventual delivery. Verify against the original formulation.",
		Difficulty:    "easy",
		EstimatedTime: "2 min",
		RewardPoints:  5,
	},
	{
		ID:            "sandbox-003",
		Type:          "factcheck",
		Title:         "Verify: median IPFS gateway retrieval latency",
		Content:       "Claim: public IPFS gateways serve popular content with a median latency under one second. Find current measurements and report.",
		Difficulty:    "medium",
		EstimatedTime: "5 min",
		RewardPoints:  10,
	},
	{
		ID:            "sandbox-004",
		Type:          "research",
		Title:         "Survey: adoption of content-addressed storage in archival systems",
		Content:       "Collect recent sources on content-addressed storage in long-term archival systems and summarize which production systems rely on it.",
		Difficulty:    "medium",
		EstimatedTime: "10 min",
		RewardPoints:  15,
	},
	{
		ID:            "sandbox-005",
		Type:          "validation",
		Title:         "Validate claim: two independent reviews halve published error rates",
		Content:       "Claim: requiring two independent approvals measurably reduces error rates in curated repositories. Investigate and deliver a verdict with sources.",
		Difficulty:    "hard",
		EstimatedTime: "15 min",
		RewardPoints:  20,
	},
}
