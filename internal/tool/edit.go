package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/agentserver/internal/event"
)

const editDescription = `Performs exact string replacements in a file inside the sandbox workspace.

Usage:
- path is relative to /workspace unless given as an absolute path
- old must exist in the file (exact match required)
- new replaces old
- Use replaceAll to replace all occurrences
- The edit FAILS if old is not unique, unless replaceAll is set`

// EditTool edits a file inside the conversation's sandbox.
type EditTool struct{}

// EditInput is the input for the edit_file tool.
type EditInput struct {
	Path       string `json:"path"`
	Old        string `json:"old"`
	New        string `json:"new"`
	ReplaceAll bool   `json:"replaceAll,omitempty"`
}

// NewEditTool creates a new edit_file tool.
func NewEditTool() *EditTool { return &EditTool{} }

func (t *EditTool) ID() string          { return "edit_file" }
func (t *EditTool) Description() string { return editDescription }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path to the file to edit, relative to /workspace"
			},
			"old": {
				"type": "string",
				"description": "The exact text to replace"
			},
			"new": {
				"type": "string",
				"description": "The text to replace it with"
			},
			"replaceAll": {
				"type": "boolean",
				"description": "Replace all occurrences (default: false)"
			}
		},
		"required": ["path", "old", "new"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params EditInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Old == params.New {
		return nil, fmt.Errorf("old and new must be different")
	}
	if toolCtx == nil || toolCtx.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox available for this conversation")
	}

	before, _ := toolCtx.Sandbox.ReadRaw(ctx, params.Path)

	result, err := toolCtx.Sandbox.Edit(ctx, params.Path, params.Old, params.New, params.ReplaceAll)
	if err != nil {
		return nil, err
	}

	after, _ := toolCtx.Sandbox.ReadRaw(ctx, params.Path)
	_, additions, deletions := buildDiffMetadata(params.Path, before, after, "")

	if toolCtx.ConversationID != "" {
		event.Publish(event.Event{
			Type: event.FileEdited,
			Data: event.FileEditedData{ConversationID: toolCtx.ConversationID, File: params.Path},
		})
	}

	return &Result{
		Title:  fmt.Sprintf("Edited %s", path.Base(params.Path)),
		Output: fmt.Sprintf("Replaced %d occurrence(s)\n\n%s", result.Replacements, result.Diff),
		Metadata: map[string]any{
			"file":         params.Path,
			"replacements": result.Replacements,
			"additions":    additions,
			"deletions":    deletions,
		},
	}, nil
}

func (t *EditTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
