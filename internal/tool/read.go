package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	einotool "github.com/cloudwego/eino/components/tool"
)

const readDescription = `Reads a file from the sandbox workspace.

Usage:
- path is relative to /workspace unless given as an absolute path
- By default, reads up to 2000 lines from the beginning
- You can optionally specify offset and limit for pagination
- Returns file contents as numbered lines`

const defaultReadLimit = 2000

// ReadTool reads a file inside the conversation's sandbox.
type ReadTool struct{}

// ReadInput is the input for the read_file tool.
type ReadInput struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// NewReadTool creates a new read_file tool.
func NewReadTool() *ReadTool { return &ReadTool{} }

func (t *ReadTool) ID() string          { return "read_file" }
func (t *ReadTool) Description() string { return readDescription }

func (t *ReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path to the file to read, relative to /workspace"
			},
			"offset": {
				"type": "integer",
				"description": "Line number to start reading from (0-based)"
			},
			"limit": {
				"type": "integer",
				"description": "Number of lines to read (default: 2000)"
			}
		},
		"required": ["path"]
	}`)
}

func (t *ReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ReadInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox available for this conversation")
	}
	if params.Limit <= 0 {
		params.Limit = defaultReadLimit
	}

	out, err := toolCtx.Sandbox.Read(ctx, params.Path, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("Read %s", path.Base(params.Path)),
		Output: out,
		Metadata: map[string]any{
			"file": params.Path,
		},
	}, nil
}

func (t *ReadTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
