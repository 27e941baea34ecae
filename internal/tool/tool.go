// Package tool implements the built-in tool set exposed to every turn:
// todos, filesystem operations against a Sandbox, skill discovery, and
// subagent dispatch.
package tool

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/internal/sandbox"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// SkillCatalog resolves skill metadata for the turn's permitted skill set.
// Skill bodies, resources, and scripts are never read through this
// interface: per spec.md's progressive-disclosure design the sandbox
// boundary is the security boundary, so everything past the frontmatter
// goes through Context.Sandbox against /workspace/skills/<name>/...
type SkillCatalog interface {
	// List returns metadata for every skill mounted in this turn's sandbox.
	List(ctx context.Context) ([]types.Skill, error)
	// Get resolves one skill by name, erroring if it isn't permitted/mounted.
	Get(ctx context.Context, name string) (types.Skill, error)
}

// TodoAccessor reads and replaces the current turn's todo list. Persistence
// to the conversation's state blob happens at end-of-turn (SaveState), not
// on every write_todos call; this interface only covers in-turn state,
// implemented by *types.TurnContext.
type TodoAccessor interface {
	GetTodos() []types.Todo
	SetTodos(todos []types.Todo) error
}

// Tool defines the interface for all tools.
type Tool interface {
	// ID returns the tool identifier.
	ID() string

	// Description returns the tool description.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() json.RawMessage

	// Execute executes the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)

	// EinoTool returns an Eino-compatible tool implementation.
	EinoTool() einotool.InvokableTool
}

// Context provides execution context to tools.
type Context struct {
	ConversationID string
	CallID         string

	// Sandbox is nil when the turn has no active sandbox; ToolRouter omits
	// the execute tool from the toolset in that case.
	Sandbox *sandbox.Sandbox
	Repo    repository.Repository
	Skills  SkillCatalog
	Todos   TodoAccessor

	TaskExecutor TaskExecutor

	AbortCh <-chan struct{}

	// Metadata callback for real-time updates
	OnMetadata func(title string, meta map[string]any)
}

// SetMetadata updates tool execution metadata.
func (c *Context) SetMetadata(title string, meta map[string]any) {
	if c.OnMetadata != nil {
		c.OnMetadata(title, meta)
	}
}

// IsAborted checks if the tool execution has been aborted.
func (c *Context) IsAborted() bool {
	if c.AbortCh == nil {
		return false
	}
	select {
	case <-c.AbortCh:
		return true
	default:
		return false
	}
}

// Result represents the output of a tool execution.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BaseTool provides a base implementation for tools.
type BaseTool struct {
	id          string
	description string
	parameters  json.RawMessage
	execute     func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool creates a new base tool.
func NewBaseTool(id, description string, params json.RawMessage, execute func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{
		id:          id,
		description: description,
		parameters:  params,
		execute:     execute,
	}
}

func (t *BaseTool) ID() string                   { return t.id }
func (t *BaseTool) Description() string          { return t.description }
func (t *BaseTool) Parameters() json.RawMessage  { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.execute(ctx, input, toolCtx)
}

// EinoTool returns an Eino-compatible tool implementation.
func (t *BaseTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// einoToolWrapper wraps a Tool to implement Eino's InvokableTool interface.
type einoToolWrapper struct {
	tool Tool
}

// Info returns the tool information.
func (w *einoToolWrapper) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := parseJSONSchemaToParams(w.tool.Parameters())
	return &schema.ToolInfo{
		Name:        w.tool.ID(),
		Desc:        w.tool.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun executes the tool. The real per-turn Context (sandbox,
// repository, permitted skills) is injected by ToolRouter before a turn
// reaches the model; this bare wrapper path only exists to satisfy eino's
// InvokableTool interface for tools that don't need that context (none of
// the built-ins currently qualify, so this is exercised only by tests that
// construct a Tool directly without going through ToolRouter).
func (w *einoToolWrapper) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	toolCtx := &Context{}

	result, err := w.tool.Execute(ctx, json.RawMessage(argsJSON), toolCtx)
	if err != nil {
		return "", err
	}

	return result.Output, nil
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}
