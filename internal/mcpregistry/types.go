// Package mcpregistry caches active MCP server configuration and constructs
// per-turn MCP tool clients from it.
package mcpregistry

import (
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opencode-ai/agentserver/pkg/types"
)

// Tool is an MCP tool wrapped for JSON marshaling and downstream merge with
// built-in tool definitions.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func fromSDKTool(t *sdkmcp.Tool) Tool {
	var schema json.RawMessage
	if t.InputSchema != nil {
		schema, _ = json.Marshal(t.InputSchema)
	}
	return Tool{Name: t.Name, Description: t.Description, InputSchema: schema}
}

// ConfigSnapshot is the immutable, content-hashed view of active MCP server
// configuration. Registry readers hold a pointer to one of these; a refresh
// swaps the pointer rather than mutating it in place.
type ConfigSnapshot struct {
	Hash    string
	Configs map[string]types.MCPServerConfig
}

// sanitizeToolName replaces non-alphanumeric characters with underscore, so
// a server name can be safely used as a tool-name prefix.
func sanitizeToolName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
