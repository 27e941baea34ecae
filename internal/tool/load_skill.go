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

const loadSkillDescription = `Loads a skill's full instructions.

Reads SKILL.md inside the sandbox for the named skill and returns the
markdown body (frontmatter stripped). Use list_skills first to see which
skills are available.`

// LoadSkillTool reads a skill's SKILL.md body from inside the sandbox.
type LoadSkillTool struct{}

// LoadSkillInput is the input for the load_skill tool.
type LoadSkillInput struct {
	Name string `json:"name"`
}

// NewLoadSkillTool creates a new load_skill tool.
func NewLoadSkillTool() *LoadSkillTool { return &LoadSkillTool{} }

func (t *LoadSkillTool) ID() string          { return "load_skill" }
func (t *LoadSkillTool) Description() string { return loadSkillDescription }

func (t *LoadSkillTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {
				"type": "string",
				"description": "Name of the skill to load"
			}
		},
		"required": ["name"]
	}`)
}

func (t *LoadSkillTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params LoadSkillInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox available for this conversation")
	}
	if toolCtx.Skills != nil {
		if _, err := toolCtx.Skills.Get(ctx, params.Name); err != nil {
			return nil, fmt.Errorf("skill not permitted: %s", params.Name)
		}
	}

	skillPath := path.Join(sandbox.WorkspaceRoot, "skills", params.Name, "SKILL.md")
	content, err := toolCtx.Sandbox.ReadRaw(ctx, skillPath)
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("Loaded skill %s", params.Name),
		Output: stripFrontmatter(content),
		Metadata: map[string]any{
			"skill": params.Name,
		},
	}, nil
}

func (t *LoadSkillTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// stripFrontmatter removes a leading "---\n...\n---\n" YAML block, if
// present, returning only the markdown body.
func stripFrontmatter(content string) string {
	const delim = "---"
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return content
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			return strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
		}
	}
	return content
}
