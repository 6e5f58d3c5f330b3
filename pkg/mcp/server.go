// Package mcp adapts archgraph-d to the Model Context Protocol so
// external agents can read the graph and submit messages like any
// other client.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/archgraph/archgraph/pkg/client"
)

// Server adapts archgraph-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"archgraph",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// archgraph://graph
	s.mcpServer.AddResource(mcp.NewResource(
		"archgraph://graph",
		"Archgraph Model",
		mcp.WithResourceDescription("The current system-engineering graph in Format-E"),
		mcp.WithMIMEType("text/plain"),
	), s.handleReadGraph)

	// archgraph://reviews
	s.mcpServer.AddResource(mcp.NewResource(
		"archgraph://reviews",
		"Pending Reviews",
		mcp.WithResourceDescription("Unresolved validation questions awaiting a decision"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadReviews)
}

// --- Tools ---

func (s *Server) registerTools() {
	// submit_message
	s.mcpServer.AddTool(mcp.NewTool(
		"submit_message",
		mcp.WithDescription("Send a free-text message through the modeling pipeline. May mutate the graph."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The message to process")),
	), s.handleSubmitMessage)

	// graph_stats
	s.mcpServer.AddTool(mcp.NewTool(
		"graph_stats",
		mcp.WithDescription("Report graph size, version, connected clients and persona rewards."),
	), s.handleGraphStats)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"archgraph-aware",
		mcp.WithPromptDescription("Provides context about Archgraph concepts (nodes, edges, semantic IDs, diffs)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := s.apiClient.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}

func (s *Server) handleReadReviews(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	reviews, err := s.apiClient.Reviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviews: %w", err)
	}

	data, err := json.MarshalIndent(reviews, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reviews: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSubmitMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := mcp.ParseString(request, "text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	result, err := s.apiClient.Chat(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	msg := fmt.Sprintf("Persona: %s\n%s", result.Persona, result.Text)
	if result.Applied {
		msg += fmt.Sprintf("\nGraph updated to v%d.", result.Version)
	}
	if result.Error != "" {
		msg += fmt.Sprintf("\nNot applied: %s", result.Error)
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleGraphStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.apiClient.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "archgraph-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with Archgraph, a shared versioned model of a
system-engineering artifact set.

Concepts:
- Node: an artifact (SYS, FUNC, REQ, DA, UC, MOD, SCHEMA) with a semantic ID
  like 'Pay.FN.001' encoding name, type code, and sequence.
- Edge: a typed relation (rel, cp, al, sat, fl) between two nodes.
- Format-E: the line protocol the graph serializes to ('## Nodes' / '## Edges').
- Version: every applied change advances the graph version by one; changes
  pinned to a stale version are rejected, recompute and retry.

Read the 'archgraph://graph' resource to see the current model. Use the
'submit_message' tool to propose changes in natural language; the daemon's
pipeline validates and applies them.
`

	return mcp.NewGetPromptResult(
		"archgraph-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
