package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
)

const readTodosDescription = `Reads the current turn's todo list.`

// ReadTodosTool returns the in-turn todo list.
type ReadTodosTool struct{}

// NewReadTodosTool creates a new read_todos tool.
func NewReadTodosTool() *ReadTodosTool { return &ReadTodosTool{} }

func (t *ReadTodosTool) ID() string          { return "read_todos" }
func (t *ReadTodosTool) Description() string { return readTodosDescription }

func (t *ReadTodosTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ReadTodosTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	if toolCtx == nil || toolCtx.Todos == nil {
		return nil, fmt.Errorf("no todo list available for this turn")
	}

	todos := toolCtx.Todos.GetTodos()

	nonCompleted := 0
	for _, td := range todos {
		if td.Status != "completed" {
			nonCompleted++
		}
	}

	output, _ := json.MarshalIndent(todos, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d todos", nonCompleted),
		Output: string(output),
		Metadata: map[string]any{
			"todos": todos,
		},
	}, nil
}

func (t *ReadTodosTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
