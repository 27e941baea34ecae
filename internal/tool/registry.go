package tool

import (
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentserver/internal/agent"
)

// Registry manages tool registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new, empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.ID()] = tool
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// IDs returns all tool IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	return ids
}

// EinoTools returns Eino-compatible tools.
func (r *Registry) EinoTools() []einotool.BaseTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]einotool.BaseTool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t.EinoTool())
	}
	return tools
}

// ToolInfos returns Eino tool infos for all tools.
func (r *Registry) ToolInfos() ([]*schema.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		params := parseJSONSchemaToParams(t.Parameters())
		infos = append(infos, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos, nil
}

// DefaultRegistry builds a registry with every sandbox/skill/todo built-in
// tool spec.md §4.5 lists unconditionally (the execute and task tools are
// still registered even when a turn has no sandbox or subagents enabled;
// ToolRouter omits them from the per-turn definition list in that case,
// since the decision depends on per-turn state the registry itself doesn't
// carry).
func DefaultRegistry(execOpts []ExecuteToolOption, agentRegistry *agent.Registry) *Registry {
	r := NewRegistry()

	r.Register(NewReadTool())
	r.Register(NewWriteTool())
	r.Register(NewEditTool())
	r.Register(NewGlobTool())
	r.Register(NewGrepTool())
	r.Register(NewLsTool())
	r.Register(NewExecuteTool(execOpts...))

	r.Register(NewReadTodosTool())
	r.Register(NewWriteTodosTool())

	r.Register(NewListSkillsTool())
	r.Register(NewLoadSkillTool())
	r.Register(NewReadSkillResourceTool())
	r.Register(NewExecuteSkillScriptTool())

	r.Register(NewTaskTool(agentRegistry))

	return r
}

// SetTaskExecutor wires the subagent executor into the registry's task
// tool, if one is registered.
func (r *Registry) SetTaskExecutor(executor TaskExecutor) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tool, ok := r.tools["task"]; ok {
		if taskTool, ok := tool.(*TaskTool); ok {
			taskTool.SetExecutor(executor)
		}
	}
}
