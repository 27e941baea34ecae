package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteTool_CreatesFile(t *testing.T) {
	toolCtx := testContext()
	tool := NewWriteTool()

	input := json.RawMessage(`{"path": "/workspace/new.txt", "content": "hello world"}`)
	result, err := tool.Execute(context.Background(), input, toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if meta, ok := result.Metadata["created"].(bool); !ok || !meta {
		t.Errorf("Expected created=true, got %v", result.Metadata["created"])
	}

	read, err := toolCtx.Sandbox.ReadRaw(context.Background(), "/workspace/new.txt")
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if read != "hello world" {
		t.Errorf("Expected file content 'hello world', got %q", read)
	}
}

func TestWriteTool_OverwritesExistingFile(t *testing.T) {
	toolCtx := testContext()
	toolCtx.Sandbox.Write(context.Background(), "/workspace/existing.txt", "old content")

	tool := NewWriteTool()
	input := json.RawMessage(`{"path": "/workspace/existing.txt", "content": "new content"}`)
	result, err := tool.Execute(context.Background(), input, toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if meta, ok := result.Metadata["created"].(bool); !ok || meta {
		t.Errorf("Expected created=false for overwrite, got %v", result.Metadata["created"])
	}
}

func TestWriteTool_NoSandbox(t *testing.T) {
	tool := NewWriteTool()
	toolCtx := &Context{}

	input := json.RawMessage(`{"path": "/workspace/test.txt", "content": "x"}`)
	_, err := tool.Execute(context.Background(), input, toolCtx)
	if err == nil {
		t.Error("Expected error when no sandbox is available")
	}
}

func TestWriteTool_InvalidInput(t *testing.T) {
	tool := NewWriteTool()
	toolCtx := testContext()

	input := json.RawMessage(`{invalid}`)
	_, err := tool.Execute(context.Background(), input, toolCtx)
	if err == nil {
		t.Error("Expected error for invalid JSON input")
	}
}

func TestWriteTool_Properties(t *testing.T) {
	tool := NewWriteTool()
	if tool.ID() != "write_file" {
		t.Errorf("Expected ID 'write_file', got %q", tool.ID())
	}
	if !strings.Contains(tool.Description(), "sandbox") {
		t.Error("Description should mention the sandbox")
	}
}
