package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/agentserver/internal/sandbox"
)

const readSkillResourceDescription = `Reads a resource file bundled with a skill, from inside the sandbox.`

// ReadSkillResourceTool reads a skill's resource file from the sandbox.
type ReadSkillResourceTool struct{}

// ReadSkillResourceInput is the input for the read_skill_resource tool.
type ReadSkillResourceInput struct {
	Skill string `json:"skill"`
	File  string `json:"file"`
}

// NewReadSkillResourceTool creates a new read_skill_resource tool.
func NewReadSkillResourceTool() *ReadSkillResourceTool { return &ReadSkillResourceTool{} }

func (t *ReadSkillResourceTool) ID() string          { return "read_skill_resource" }
func (t *ReadSkillResourceTool) Description() string { return readSkillResourceDescription }

func (t *ReadSkillResourceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"skill": {
				"type": "string",
				"description": "Name of the skill that owns the resource"
			},
			"file": {
				"type": "string",
				"description": "Resource file path, relative to the skill's directory"
			}
		},
		"required": ["skill", "file"]
	}`)
}

func (t *ReadSkillResourceTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ReadSkillResourceInput
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

	resourcePath := path.Join(sandbox.WorkspaceRoot, "skills", params.Skill, params.File)
	content, err := toolCtx.Sandbox.ReadRaw(ctx, resourcePath)
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("%s/%s", params.Skill, params.File),
		Output: content,
		Metadata: map[string]any{
			"skill": params.Skill,
			"file":  params.File,
		},
	}, nil
}

func (t *ReadSkillResourceTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
