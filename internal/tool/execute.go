package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/agentserver/internal/permission"
	"github.com/opencode-ai/agentserver/internal/sandbox"
)

const (
	defaultExecuteTimeout = 120 * time.Second
	maxExecuteTimeout     = 10 * time.Minute
)

const executeDescription = `Executes a command inside the conversation's sandbox container.

Usage:
- command is required
- Optional timeout in milliseconds (max 600000)
- Output is captured from stdout and stderr, combined`

// ExecuteTool runs a command inside the conversation's sandbox.
type ExecuteTool struct {
	permChecker *permission.Checker
	permissions map[string]permission.PermissionAction
	externalDir permission.PermissionAction
}

// ExecuteInput is the input for the execute tool.
type ExecuteInput struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"` // milliseconds
}

// ExecuteToolOption configures the execute tool.
type ExecuteToolOption func(*ExecuteTool)

// WithPermissionChecker sets the permission checker used to escalate risky
// commands to the user.
func WithPermissionChecker(checker *permission.Checker) ExecuteToolOption {
	return func(t *ExecuteTool) { t.permChecker = checker }
}

// WithBashPermissions sets the bash command permission patterns.
func WithBashPermissions(perms map[string]permission.PermissionAction) ExecuteToolOption {
	return func(t *ExecuteTool) { t.permissions = perms }
}

// WithExternalDirAction sets the action for commands referencing paths
// outside the sandbox workspace.
func WithExternalDirAction(action permission.PermissionAction) ExecuteToolOption {
	return func(t *ExecuteTool) { t.externalDir = action }
}

// NewExecuteTool creates a new execute tool.
func NewExecuteTool(opts ...ExecuteToolOption) *ExecuteTool {
	t := &ExecuteTool{
		permissions: make(map[string]permission.PermissionAction),
		externalDir: permission.ActionAsk,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ExecuteTool) ID() string          { return "execute" }
func (t *ExecuteTool) Description() string { return executeDescription }

func (t *ExecuteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The command to execute"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in milliseconds (max 600000)"
			}
		},
		"required": ["command"]
	}`)
}

func (t *ExecuteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ExecuteInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox available for this conversation")
	}

	if t.permChecker != nil {
		if err := t.checkPermissions(ctx, params.Command, toolCtx); err != nil {
			return nil, err
		}
	}

	timeout := defaultExecuteTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Millisecond
		if timeout > maxExecuteTimeout {
			timeout = maxExecuteTimeout
		}
	}

	toolCtx.SetMetadata(params.Command, map[string]any{"output": ""})

	result, err := toolCtx.Sandbox.Execute(ctx, params.Command, timeout)
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:  params.Command,
		Output: result.Output,
		Metadata: map[string]any{
			"exit":      result.ExitCode,
			"timedOut":  result.TimedOut,
			"truncated": result.Truncated,
		},
	}, nil
}

func (t *ExecuteTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// resolveContainerPath lexically resolves p against the sandbox workspace
// root. It never touches a filesystem: p names a location inside the
// conversation's container, which does not exist on the host running this
// process, so realpath-style resolution would be meaningless here.
func resolveContainerPath(p string) string {
	if strings.HasPrefix(p, "~") {
		return p
	}
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Clean(path.Join(sandbox.WorkspaceRoot, p))
}

// checkPermissions validates command permissions, escalating to the user
// through permChecker when a pattern is configured to Ask.
func (t *ExecuteTool) checkPermissions(ctx context.Context, command string, toolCtx *Context) error {
	commands, err := permission.ParseBashCommand(command)
	if err != nil {
		return t.permChecker.Ask(ctx, permission.Request{
			Type:      permission.PermBash,
			Pattern:   []string{command},
			SessionID: toolCtx.ConversationID,
			CallID:    toolCtx.CallID,
			Title:     command,
			Metadata:  map[string]any{"command": command, "parse_failed": true},
		})
	}

	var askPatterns []string
	for _, cmd := range commands {
		if permission.IsDangerousCommand(cmd.Name) {
			for _, p := range permission.ExtractPaths(cmd) {
				resolved := resolveContainerPath(p)
				if !strings.HasPrefix(resolved, sandbox.WorkspaceRoot) {
					switch t.externalDir {
					case permission.ActionDeny:
						return &permission.RejectedError{
							SessionID: toolCtx.ConversationID,
							Type:      permission.PermExternalDir,
							CallID:    toolCtx.CallID,
							Message:   fmt.Sprintf("Command references paths outside of %s", sandbox.WorkspaceRoot),
							Metadata:  map[string]any{"command": command, "path": resolved},
						}
					case permission.ActionAsk:
						if err := t.permChecker.Ask(ctx, permission.Request{
							Type:      permission.PermExternalDir,
							Pattern:   []string{path.Dir(resolved), path.Join(path.Dir(resolved), "*")},
							SessionID: toolCtx.ConversationID,
							CallID:    toolCtx.CallID,
							Title:     fmt.Sprintf("Command references paths outside of %s", sandbox.WorkspaceRoot),
							Metadata:  map[string]any{"command": command, "path": resolved},
						}); err != nil {
							return err
						}
					}
				}
			}
		}

		if cmd.Name == "cd" {
			continue
		}

		switch permission.MatchBashPermission(cmd, t.permissions) {
		case permission.ActionDeny:
			return &permission.RejectedError{
				SessionID: toolCtx.ConversationID,
				Type:      permission.PermBash,
				CallID:    toolCtx.CallID,
				Message:   fmt.Sprintf("Command not allowed: %s", cmd.Name),
				Metadata:  map[string]any{"command": command},
			}
		case permission.ActionAsk:
			askPatterns = append(askPatterns, permission.BuildPattern(cmd))
		}
	}

	if len(askPatterns) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(askPatterns))
	unique := make([]string, 0, len(askPatterns))
	for _, p := range askPatterns {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}

	return t.permChecker.Ask(ctx, permission.Request{
		Type:      permission.PermBash,
		Pattern:   unique,
		SessionID: toolCtx.ConversationID,
		CallID:    toolCtx.CallID,
		Title:     command,
		Metadata:  map[string]any{"command": command, "patterns": unique},
	})
}
