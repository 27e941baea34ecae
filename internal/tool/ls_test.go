package tool

import (
	"context"
	"encoding/json"
	"testing"
)

func TestLsTool_ListsEntries(t *testing.T) {
	toolCtx := testContext()
	toolCtx.Sandbox.Write(context.Background(), "/workspace/dir/one.txt", "1")
	toolCtx.Sandbox.Write(context.Background(), "/workspace/dir/two.txt", "2")

	tool := NewLsTool()
	input := json.RawMessage(`{"path": "/workspace/dir"}`)
	result, err := tool.Execute(context.Background(), input, toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Metadata["count"].(int) != 2 {
		t.Errorf("Expected 2 entries, got %v", result.Metadata["count"])
	}
}

func TestLsTool_DefaultsToWorkspaceRoot(t *testing.T) {
	toolCtx := testContext()
	toolCtx.Sandbox.Write(context.Background(), "/workspace/root.txt", "x")

	tool := NewLsTool()
	input := json.RawMessage(`{}`)
	_, err := tool.Execute(context.Background(), input, toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
}

func TestLsTool_NoSandbox(t *testing.T) {
	tool := NewLsTool()
	toolCtx := &Context{}

	input := json.RawMessage(`{}`)
	_, err := tool.Execute(context.Background(), input, toolCtx)
	if err == nil {
		t.Error("Expected error when no sandbox is available")
	}
}

func TestLsTool_Properties(t *testing.T) {
	tool := NewLsTool()
	if tool.ID() != "ls" {
		t.Errorf("Expected ID 'ls', got %q", tool.ID())
	}
}
