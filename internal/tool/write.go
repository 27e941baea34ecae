package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/agentserver/internal/event"
)

const writeDescription = `Writes content to a file in the sandbox workspace.

Usage:
- path is relative to /workspace unless given as an absolute path
- This tool overwrites existing files
- ALWAYS prefer editing existing files over creating new ones`

// WriteTool writes a file inside the conversation's sandbox.
type WriteTool struct{}

// WriteInput is the input for the write_file tool.
type WriteInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewWriteTool creates a new write_file tool.
func NewWriteTool() *WriteTool { return &WriteTool{} }

func (t *WriteTool) ID() string          { return "write_file" }
func (t *WriteTool) Description() string { return writeDescription }

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path to the file to write, relative to /workspace"
			},
			"content": {
				"type": "string",
				"description": "The content to write to the file"
			}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WriteInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox available for this conversation")
	}

	previous, _ := toolCtx.Sandbox.ReadRaw(ctx, params.Path)

	result, err := toolCtx.Sandbox.Write(ctx, params.Path, params.Content)
	if err != nil {
		return nil, err
	}

	diff, additions, deletions := buildDiffMetadata(params.Path, previous, params.Content, "")

	if toolCtx.ConversationID != "" {
		event.Publish(event.Event{
			Type: event.FileEdited,
			Data: event.FileEditedData{ConversationID: toolCtx.ConversationID, File: params.Path},
		})
	}

	return &Result{
		Title:  fmt.Sprintf("Wrote %s", path.Base(params.Path)),
		Output: fmt.Sprintf("Wrote %d bytes to %s", result.BytesWritten, params.Path),
		Metadata: map[string]any{
			"file":      params.Path,
			"bytes":     result.BytesWritten,
			"created":   result.Created,
			"diff":      diff,
			"additions": additions,
			"deletions": deletions,
		},
	}, nil
}

func (t *WriteTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
