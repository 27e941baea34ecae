package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/agentserver/pkg/types"
)

const writeTodosDescription = `Replaces the current turn's todo list with a structured task breakdown.

Use this tool proactively for complex, multi-step work so progress is
visible: mark a task in_progress before starting it, completed immediately
after finishing it, and keep at most one task in_progress at a time.
Skip it for single-step or purely conversational requests.`

// WriteTodosTool replaces the in-turn todo list.
type WriteTodosTool struct{}

// WriteTodosInput is the input for the write_todos tool.
type WriteTodosInput struct {
	Todos []types.Todo `json:"todos"`
}

// NewWriteTodosTool creates a new write_todos tool.
func NewWriteTodosTool() *WriteTodosTool { return &WriteTodosTool{} }

func (t *WriteTodosTool) ID() string          { return "write_todos" }
func (t *WriteTodosTool) Description() string { return writeTodosDescription }

func (t *WriteTodosTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"todos": {
				"type": "array",
				"description": "The updated todo list",
				"items": {
					"type": "object",
					"properties": {
						"content": {
							"type": "string",
							"description": "Brief description of the task"
						},
						"status": {
							"type": "string",
							"description": "pending, in_progress, or completed",
							"enum": ["pending", "in_progress", "completed"]
						},
						"activeForm": {
							"type": "string",
							"description": "Present-continuous form shown while in_progress"
						}
					},
					"required": ["content", "status", "activeForm"]
				}
			}
		},
		"required": ["todos"]
	}`)
}

func (t *WriteTodosTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WriteTodosInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Todos == nil {
		return nil, fmt.Errorf("no todo list available for this turn")
	}

	if err := toolCtx.Todos.SetTodos(params.Todos); err != nil {
		return nil, err
	}

	nonCompleted := 0
	for _, td := range params.Todos {
		if td.Status != types.TodoCompleted {
			nonCompleted++
		}
	}

	output, _ := json.MarshalIndent(params.Todos, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d todos", nonCompleted),
		Output: string(output),
		Metadata: map[string]any{
			"todos": params.Todos,
		},
	}, nil
}

func (t *WriteTodosTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
