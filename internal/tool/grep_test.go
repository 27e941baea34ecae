package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestGrepTool_FindsMatches(t *testing.T) {
	toolCtx := testContext()
	toolCtx.Sandbox.Write(context.Background(), "/workspace/main.go", "package main\n\nfunc main() {\n\tlog.Error(\"boom\")\n}\n")

	tool := NewGrepTool()
	input := json.RawMessage(`{"pattern": "log.Error"}`)
	result, err := tool.Execute(context.Background(), input, toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, "main.go") {
		t.Errorf("Expected output to reference main.go, got %q", result.Output)
	}
}

func TestGrepTool_NoMatches(t *testing.T) {
	toolCtx := testContext()
	toolCtx.Sandbox.Write(context.Background(), "/workspace/main.go", "package main\n")

	tool := NewGrepTool()
	input := json.RawMessage(`{"pattern": "nonexistentpattern"}`)
	result, err := tool.Execute(context.Background(), input, toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "No matches found" {
		t.Errorf("Expected 'No matches found', got %q", result.Output)
	}
}

func TestGrepTool_NoSandbox(t *testing.T) {
	tool := NewGrepTool()
	toolCtx := &Context{}

	input := json.RawMessage(`{"pattern": "x"}`)
	_, err := tool.Execute(context.Background(), input, toolCtx)
	if err == nil {
		t.Error("Expected error when no sandbox is available")
	}
}

func TestGrepTool_FilesWithMatchesMode(t *testing.T) {
	toolCtx := testContext()
	toolCtx.Sandbox.Write(context.Background(), "/workspace/main.go", "log.Error(\"boom\")\n")
	toolCtx.Sandbox.Write(context.Background(), "/workspace/other.go", "package other\n")

	tool := NewGrepTool()
	input := json.RawMessage(`{"pattern": "log.Error", "output_mode": "files_with_matches"}`)
	result, err := tool.Execute(context.Background(), input, toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, "main.go") || strings.Contains(result.Output, "other.go") {
		t.Errorf("Expected only main.go listed, got %q", result.Output)
	}
	if strings.Contains(result.Output, ":") {
		t.Errorf("Expected bare file paths with no line annotations, got %q", result.Output)
	}
}

func TestGrepTool_CountMode(t *testing.T) {
	toolCtx := testContext()
	toolCtx.Sandbox.Write(context.Background(), "/workspace/main.go", "log.Error(\"a\")\nlog.Error(\"b\")\n")

	tool := NewGrepTool()
	input := json.RawMessage(`{"pattern": "log.Error", "output_mode": "count"}`)
	result, err := tool.Execute(context.Background(), input, toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, "main.go:2") {
		t.Errorf("Expected main.go:2, got %q", result.Output)
	}
	if result.Metadata["output_mode"] != "count" {
		t.Errorf("Expected output_mode metadata 'count', got %v", result.Metadata["output_mode"])
	}
}

func TestGrepTool_Properties(t *testing.T) {
	tool := NewGrepTool()
	if tool.ID() != "grep" {
		t.Errorf("Expected ID 'grep', got %q", tool.ID())
	}
}
