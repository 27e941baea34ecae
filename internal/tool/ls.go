package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
)

const lsDescription = `Lists entries of a directory inside the sandbox workspace.`

// LsTool lists a directory inside the conversation's sandbox.
type LsTool struct{}

// LsInput is the input for the ls tool.
type LsInput struct {
	Path string `json:"path,omitempty"`
}

// NewLsTool creates a new ls tool.
func NewLsTool() *LsTool { return &LsTool{} }

func (t *LsTool) ID() string          { return "ls" }
func (t *LsTool) Description() string { return lsDescription }

func (t *LsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Directory to list, relative to /workspace (default: /workspace)"
			}
		}
	}`)
}

func (t *LsTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params LsInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox available for this conversation")
	}

	entries, err := toolCtx.Sandbox.Ls(ctx, params.Path)
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("Listed %d entries", len(entries)),
		Output: strings.Join(entries, "\n"),
		Metadata: map[string]any{
			"path":  params.Path,
			"count": len(entries),
		},
	}, nil
}

func (t *LsTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
