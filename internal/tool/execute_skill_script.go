package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/agentserver/internal/sandbox"
)

const executeSkillScriptDescription = `Runs a script bundled with a skill, inside the sandbox.

script is a path relative to the skill's own directory. working_dir, if
set, is relative to the skill's directory and becomes the script's cwd;
otherwise the script's own directory is used.`

// ExecuteSkillScriptTool runs a skill-bundled script inside the sandbox.
type ExecuteSkillScriptTool struct{}

// ExecuteSkillScriptInput is the input for the execute_skill_script tool.
type ExecuteSkillScriptInput struct {
	Skill      string   `json:"skill"`
	Script     string   `json:"script"`
	Args       []string `json:"args,omitempty"`
	WorkingDir string   `json:"working_dir,omitempty"`
}

// NewExecuteSkillScriptTool creates a new execute_skill_script tool.
func NewExecuteSkillScriptTool() *ExecuteSkillScriptTool { return &ExecuteSkillScriptTool{} }

func (t *ExecuteSkillScriptTool) ID() string          { return "execute_skill_script" }
func (t *ExecuteSkillScriptTool) Description() string { return executeSkillScriptDescription }

func (t *ExecuteSkillScriptTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"skill": {
				"type": "string",
				"description": "Name of the skill that owns the script"
			},
			"script": {
				"type": "string",
				"description": "Script path, relative to the skill's directory"
			},
			"args": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Optional arguments passed to the script"
			},
			"working_dir": {
				"type": "string",
				"description": "Optional cwd, relative to the skill's directory"
			}
		},
		"required": ["skill", "script"]
	}`)
}

func (t *ExecuteSkillScriptTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ExecuteSkillScriptInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox available for this conversation")
	}
	if toolCtx.Skills != nil {
		if _, err := toolCtx.Skills.Get(ctx, params.Skill); err != nil {
			return nil, fmt.Errorf("skill not permitted: %s", params.Skill)
		}
	}

	skillDir := path.Join(sandbox.WorkspaceRoot, "skills", params.Skill)
	scriptPath := path.Join(skillDir, params.Script)
	workDir := skillDir
	if params.WorkingDir != "" {
		workDir = path.Join(skillDir, params.WorkingDir)
	}

	command := buildScriptCommand(scriptPath, params.Args, workDir)

	result, err := toolCtx.Sandbox.Execute(ctx, command, sandbox.DefaultExecTimeout)
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("%s/%s", params.Skill, params.Script),
		Output: result.Output,
		Metadata: map[string]any{
			"skill":  params.Skill,
			"script": params.Script,
			"exit":   result.ExitCode,
		},
	}, nil
}

func (t *ExecuteSkillScriptTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// buildScriptCommand composes a shell command running scriptPath with args
// from inside workDir.
func buildScriptCommand(scriptPath string, args []string, workDir string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuoteArg(scriptPath))
	for _, a := range args {
		parts = append(parts, shellQuoteArg(a))
	}
	return fmt.Sprintf("cd -- %s && %s", shellQuoteArg(workDir), strings.Join(parts, " "))
}

// shellQuoteArg single-quotes s for safe inclusion in a shell command,
// escaping embedded single quotes POSIX-style.
func shellQuoteArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
