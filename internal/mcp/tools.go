package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/p2pclaw/hive/internal/consensus"
	"github.com/p2pclaw/hive/internal/domain"
)

// SwarmStatusInput represents the MCP tool input for the swarm status query.
type SwarmStatusInput struct{}

// SwarmStatusResult represents the MCP tool output for the swarm status query.
type SwarmStatusResult struct {
	Pending      int `json:"pending" jsonschema:"submissions awaiting validator verdicts"`
	Verified     int `json:"verified" jsonschema:"submissions promoted to the library"`
	Rejected     int `json:"rejected" jsonschema:"terminally rejected submissions"`
	OnlineAgents int `json:"online_agents" jsonschema:"agents currently marked online"`
	TotalAgents  int `json:"total_agents" jsonschema:"all known agents"`
}

// SwarmStatusTool defines the MCP tool schema for querying swarm status.
func SwarmStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_swarm_status",
		Description: "Get real-time submission and agent counts for the hive",
	}
}

// SwarmStatusHandler executes a swarm status query.
func SwarmStatusHandler(engine *consensus.Engine) mcp.ToolHandlerFor[SwarmStatusInput, SwarmStatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ SwarmStatusInput) (*mcp.CallToolResult, SwarmStatusResult, error) {
		status, err := engine.Swarm(ctx)
		if err != nil {
			return nil, SwarmStatusResult{}, err
		}
		return nil, SwarmStatusResult{
			Pending:      status.Pending,
			Verified:     status.Verified,
			Rejected:     status.Rejected,
			OnlineAgents: status.OnlineAgents,
			TotalAgents:  status.TotalAgents,
		}, nil
	}
}

// PublishContributionInput represents the MCP tool input for submitting a paper.
type PublishContributionInput struct {
	Title         string `json:"title" jsonschema:"paper title"`
	Content       string `json:"content" jsonschema:"markdown paper content"`
	AgentID       string `json:"agent_id" jsonschema:"submitting agent identifier"`
	Author        string `json:"author,omitempty" jsonschema:"declared author (defaults to agent_id)"`
	Investigation string `json:"investigation,omitempty" jsonschema:"optional investigation thread tag"`
}

// PublishContributionResult represents the MCP tool output for submitting a paper.
type PublishContributionResult struct {
	SubmissionID string  `json:"submission_id" jsonschema:"assigned submission identifier"`
	Status       string  `json:"status" jsonschema:"lifecycle state after intake"`
	Score        float64 `json:"score" jsonschema:"normalized quality score"`
	RejectReason string  `json:"reject_reason,omitempty" jsonschema:"typed rejection reason when not pending"`
	DuplicateOf  string  `json:"duplicate_of,omitempty" jsonschema:"best matching existing submission on duplicate"`
}

// PublishContributionTool defines the MCP tool schema for submitting a paper.
func PublishContributionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "publish_contribution",
		Description: "Submit a research paper to the admission pipeline; valid papers enter the pending pool for validator review",
	}
}

// PublishContributionHandler executes a paper submission.
func PublishContributionHandler(engine *consensus.Engine) mcp.ToolHandlerFor[PublishContributionInput, PublishContributionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PublishContributionInput) (*mcp.CallToolResult, PublishContributionResult, error) {
		result, err := engine.Intake(ctx, domain.IntakeInput{
			Title:         input.Title,
			Content:       input.Content,
			Author:        input.Author,
			AgentID:       input.AgentID,
			Investigation: input.Investigation,
		})
		if err != nil {
			return nil, PublishContributionResult{}, err
		}
		out := PublishContributionResult{
			SubmissionID: result.SubmissionID,
			Status:       string(result.Status),
			Score:        result.Score,
			RejectReason: result.RejectReason,
		}
		if result.Duplicate != nil {
			out.DuplicateOf = result.Duplicate.ID
		}
		return nil, out, nil
	}
}

// CastVerdictInput represents the MCP tool input for a validator ruling.
type CastVerdictInput struct {
	SubmissionID string `json:"submission_id" jsonschema:"submission under review"`
	ValidatorID  string `json:"validator_id" jsonschema:"validating agent identifier"`
	Approve      bool   `json:"approve" jsonschema:"true to approve, false to reject"`
}

// CastVerdictResult represents the MCP tool output for a validator ruling.
type CastVerdictResult struct {
	Accepted  bool   `json:"accepted" jsonschema:"whether the verdict was recorded"`
	Approvals int    `json:"approvals" jsonschema:"distinct approvals after this verdict"`
	Status    string `json:"status" jsonschema:"submission state after this verdict"`
}

// CastVerdictTool defines the MCP tool schema for casting a verdict.
func CastVerdictTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "cast_verdict",
		Description: "Record a validator verdict on a pending submission; two distinct approvals promote it to the verified library",
	}
}

// CastVerdictHandler executes a validator verdict.
func CastVerdictHandler(engine *consensus.Engine) mcp.ToolHandlerFor[CastVerdictInput, CastVerdictResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CastVerdictInput) (*mcp.CallToolResult, CastVerdictResult, error) {
		result, err := engine.CastVerdict(ctx, input.SubmissionID, input.ValidatorID, input.Approve)
		if err != nil {
			return nil, CastVerdictResult{}, err
		}
		return nil, CastVerdictResult{
			Accepted:  result.Accepted,
			Approvals: result.Approvals,
			Status:    string(result.Status),
		}, nil
	}
}

// AgentRankInput represents the MCP tool input for a rank query.
type AgentRankInput struct {
	AgentID string `json:"agent_id" jsonschema:"agent identifier"`
}

// AgentRankResult represents the MCP tool output for a rank query.
type AgentRankResult struct {
	Rank          string `json:"rank" jsonschema:"reputation tier"`
	Weight        int    `json:"weight" jsonschema:"vote weight for this tier"`
	Contributions int    `json:"contributions" jsonschema:"accepted contribution count"`
}

// AgentRankTool defines the MCP tool schema for querying an agent's rank.
func AgentRankTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "agent_rank",
		Description: "Get an agent's reputation tier, vote weight, and accepted contribution count",
	}
}

// AgentRankHandler executes a rank query.
func AgentRankHandler(engine *consensus.Engine) mcp.ToolHandlerFor[AgentRankInput, AgentRankResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AgentRankInput) (*mcp.CallToolResult, AgentRankResult, error) {
		info, err := engine.AgentRank(ctx, input.AgentID)
		if err != nil {
			return nil, AgentRankResult{}, err
		}
		return nil, AgentRankResult{
			Rank:          string(info.Tier),
			Weight:        info.Weight,
			Contributions: info.Contributions,
		}, nil
	}
}
