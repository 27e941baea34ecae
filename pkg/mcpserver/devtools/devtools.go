// Package devtools provides a small stdio MCP server exposing a couple of
// read-only diagnostic tools, used as a real external MCP server in
// mcpregistry's integration tests and as a reference server operators can
// point an mcp_server_configs row at.
package devtools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server exposing the devtools toolset.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"devtools",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(mcp.NewTool("current_time",
		mcp.WithDescription("Returns the current UTC time in RFC3339 format"),
	), currentTimeHandler)

	s.AddTool(mcp.NewTool("echo",
		mcp.WithDescription("Echoes the given text back, useful for verifying MCP wiring end to end"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to echo")),
	), echoHandler)

	s.AddTool(mcp.NewTool("word_count",
		mcp.WithDescription("Counts words in the given text"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to count words in")),
	), wordCountHandler)

	return s
}

func currentTimeHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(time.Now().UTC().Format(time.RFC3339)), nil
}

func echoHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := request.GetArguments()["text"].(string)
	if !ok {
		return mcp.NewToolResultError("text argument is required"), nil
	}
	return mcp.NewToolResultText(text), nil
}

func wordCountHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := request.GetArguments()["text"].(string)
	if !ok {
		return mcp.NewToolResultError("text argument is required"), nil
	}
	count := len(strings.Fields(text))
	return mcp.NewToolResultText(fmt.Sprintf("%d", count)), nil
}
