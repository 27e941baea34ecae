package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
)

const listSkillsDescription = `Lists the skills available to this conversation.

Returns each skill's name, description, version, and tags from its
frontmatter only — call load_skill to read a skill's full instructions.`

// ListSkillsTool surfaces skill catalog metadata for the turn's permitted
// skill set.
type ListSkillsTool struct{}

// NewListSkillsTool creates a new list_skills tool.
func NewListSkillsTool() *ListSkillsTool { return &ListSkillsTool{} }

func (t *ListSkillsTool) ID() string          { return "list_skills" }
func (t *ListSkillsTool) Description() string { return listSkillsDescription }

func (t *ListSkillsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ListSkillsTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	if toolCtx == nil || toolCtx.Skills == nil {
		return &Result{Title: "0 skills", Output: "[]"}, nil
	}

	skills, err := toolCtx.Skills.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}

	output, _ := json.MarshalIndent(skills, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d skills", len(skills)),
		Output: string(output),
		Metadata: map[string]any{
			"count": len(skills),
		},
	}, nil
}

func (t *ListSkillsTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
