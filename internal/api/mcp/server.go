// Package mcp exposes the campaign engine as MCP tools so AI clients can
// create campaigns, run sessions and play turns over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loreforge/loreforge/internal/session"
)

const (
	serverName    = "Loreforge Campaign Engine"
	serverVersion = "0.1.0"
)

// Server hosts the MCP tool surface over a session manager.
type Server struct {
	mcpServer *mcp.Server
	manager   *session.Manager
}

// New creates a configured MCP server backed by the session manager.
func New(manager *session.Manager) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	s := &Server{mcpServer: mcpServer, manager: manager}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "create_campaign",
		Description: "Creates a campaign and returns its one-time join code",
	}, s.createCampaign)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "join_campaign",
		Description: "Joins a campaign with a join code, creating the player's character",
	}, s.joinCampaign)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "load_session",
		Description: "Loads a campaign into a live session; at most one live session per campaign",
	}, s.loadSession)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "exit_session",
		Description: "Flushes the live session to storage and releases it; idempotent",
	}, s.exitSession)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "campaign_state",
		Description: "Returns a read-only snapshot of the live session state",
	}, s.campaignState)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "submit_player_action",
		Description: "Submits a free-text player action for narration; empty text requests an opening scene",
	}, s.submitPlayerAction)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "start_combat",
		Description: "Starts a combat encounter against the given monsters and rolls initiative",
	}, s.startCombat)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "submit_combat_action",
		Description: "Submits a combat action (attack, move or disengage) for the current unit",
	}, s.submitCombatAction)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "end_turn",
		Description: "Ends the current turn; monster turns play out automatically",
	}, s.endTurn)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "force_reset_narration",
		Description: "Cancels an in-flight narration and returns the session to idle",
	}, s.forceResetNarration)
}

// Serve runs the MCP server on stdio until the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}
