// Package mcp exposes the admission engine as MCP tools so automated agents
// can join the hive over the Model Context Protocol.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/p2pclaw/hive/internal/consensus"
)

const (
	serverName    = "hive-mcp-server"
	serverVersion = "1.0.0"
)

// Server wraps the MCP server with its tool bindings.
type Server struct {
	mcpServer *mcp.Server
}

// NewServer creates the MCP tool bindings over the consensus engine.
func NewServer(engine *consensus.Engine) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(mcpServer, SwarmStatusTool(), SwarmStatusHandler(engine))
	mcp.AddTool(mcpServer, PublishContributionTool(), PublishContributionHandler(engine))
	mcp.AddTool(mcpServer, CastVerdictTool(), CastVerdictHandler(engine))
	mcp.AddTool(mcpServer, AgentRankTool(), AgentRankHandler(engine))

	return &Server{mcpServer: mcpServer}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
