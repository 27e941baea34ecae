package tool

import (
	"context"
	"encoding/json"
	"testing"
)

func TestWriteTodosTool_ReplacesList(t *testing.T) {
	toolCtx := testContext()
	accessor := &fakeTodoAccessor{}
	toolCtx.Todos = accessor

	input := json.RawMessage(`{"todos": [
		{"content": "step one", "status": "in_progress", "activeForm": "Doing step one"},
		{"content": "step two", "status": "pending", "activeForm": "Doing step two"}
	]}`)
	tool := NewWriteTodosTool()
	result, err := tool.Execute(context.Background(), input, toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(accessor.GetTodos()) != 2 {
		t.Errorf("Expected 2 todos stored, got %d", len(accessor.GetTodos()))
	}
	if result.Title != "2 todos" {
		t.Errorf("Expected title '2 todos', got %q", result.Title)
	}
}

func TestWriteTodosTool_RejectsMultipleInProgress(t *testing.T) {
	toolCtx := testContext()
	toolCtx.Todos = &fakeTodoAccessor{}

	input := json.RawMessage(`{"todos": [
		{"content": "a", "status": "in_progress", "activeForm": "Doing a"},
		{"content": "b", "status": "in_progress", "activeForm": "Doing b"}
	]}`)
	tool := NewWriteTodosTool()
	_, err := tool.Execute(context.Background(), input, toolCtx)
	if err == nil {
		t.Error("Expected error for multiple in_progress todos")
	}
}

func TestWriteTodosTool_NoAccessor(t *testing.T) {
	tool := NewWriteTodosTool()
	toolCtx := &Context{}

	input := json.RawMessage(`{"todos": []}`)
	_, err := tool.Execute(context.Background(), input, toolCtx)
	if err == nil {
		t.Error("Expected error when no todo accessor is available")
	}
}

func TestWriteTodosTool_InvalidInput(t *testing.T) {
	tool := NewWriteTodosTool()
	toolCtx := testContext()
	toolCtx.Todos = &fakeTodoAccessor{}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{invalid}`), toolCtx)
	if err == nil {
		t.Error("Expected error for invalid JSON input")
	}
}

func TestWriteTodosTool_Properties(t *testing.T) {
	tool := NewWriteTodosTool()
	if tool.ID() != "write_todos" {
		t.Errorf("Expected ID 'write_todos', got %q", tool.ID())
	}
}
