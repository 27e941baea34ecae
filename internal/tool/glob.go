package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
)

const globDescription = `Fast file pattern matching inside the sandbox workspace.

Usage:
- Supports glob patterns like "**/*.js" or "src/**/*.ts"
- Returns matching file paths
- Use this tool when you need to find files by name patterns`

// GlobTool matches file paths inside the conversation's sandbox.
type GlobTool struct{}

// GlobInput is the input for the glob tool.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// NewGlobTool creates a new glob tool.
func NewGlobTool() *GlobTool { return &GlobTool{} }

func (t *GlobTool) ID() string          { return "glob" }
func (t *GlobTool) Description() string { return globDescription }

func (t *GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The glob pattern to match files against"
			},
			"path": {
				"type": "string",
				"description": "Directory to search in, relative to /workspace (default: /workspace)"
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GlobInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox available for this conversation")
	}

	matches, err := toolCtx.Sandbox.Glob(ctx, params.Pattern, params.Path)
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d files", len(matches)),
		Output: strings.Join(matches, "\n"),
		Metadata: map[string]any{
			"pattern": params.Pattern,
			"count":   len(matches),
		},
	}, nil
}

func (t *GlobTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
