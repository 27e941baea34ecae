package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/agentserver/internal/sandbox"
)

const grepDescription = `Searches file contents inside the sandbox workspace using regular expressions.

Usage:
- Supports full regex syntax (e.g., "log.*Error", "function\\s+\\w+")
- Filter files with the glob parameter (e.g., "*.js", "**/*.tsx")
- output_mode "content" (default) returns matching lines; "files_with_matches"
  returns only file paths; "count" returns per-file match counts`

// GrepTool searches file contents inside the conversation's sandbox.
type GrepTool struct{}

// GrepInput is the input for the grep tool.
type GrepInput struct {
	Pattern    string `json:"pattern"`
	Path       string `json:"path,omitempty"`
	Glob       string `json:"glob,omitempty"`
	OutputMode string `json:"output_mode,omitempty"`
}

// NewGrepTool creates a new grep tool.
func NewGrepTool() *GrepTool { return &GrepTool{} }

func (t *GrepTool) ID() string          { return "grep" }
func (t *GrepTool) Description() string { return grepDescription }

func (t *GrepTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The regex pattern to search for in file contents"
			},
			"path": {
				"type": "string",
				"description": "The directory or file to search in, relative to /workspace"
			},
			"glob": {
				"type": "string",
				"description": "File pattern to include in the search (e.g. \"*.js\", \"*.{ts,tsx}\")"
			},
			"output_mode": {
				"type": "string",
				"description": "\"content\" (default), \"files_with_matches\", or \"count\""
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *GrepTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GrepInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox available for this conversation")
	}

	mode := sandbox.GrepOutputMode(params.OutputMode)
	switch mode {
	case sandbox.GrepOutputFilesOnly, sandbox.GrepOutputCount:
	default:
		mode = sandbox.GrepOutputContent
	}

	output, err := toolCtx.Sandbox.Grep(ctx, params.Pattern, params.Path, params.Glob, mode)
	if err != nil {
		return nil, err
	}
	if output == "" {
		output = "No matches found"
	}

	return &Result{
		Title:  "Search results",
		Output: output,
		Metadata: map[string]any{
			"pattern":     params.Pattern,
			"output_mode": string(mode),
		},
	}, nil
}

func (t *GrepTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
