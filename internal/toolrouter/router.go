// Package toolrouter assembles the per-turn toolset exposed to the model:
// the always-present built-in tools plus whatever MCP tools the turn's
// permitted set admits, and dispatches a model tool call to whichever side
// owns it.
package toolrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/opencode-ai/agentserver/internal/mcpregistry"
	"github.com/opencode-ai/agentserver/internal/tool"
)

// Definition is a provider-neutral tool definition: a name, description, and
// JSON Schema parameter set, suitable for handing to any LLM provider.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// builtinToolNames mirrors internal/permission's list of the same name.
// Duplicated rather than imported: internal/tool already depends on
// internal/permission for bash-pattern checks, so importing
// internal/permission from here to reuse its list would close the cycle the
// other way. Both lists must be kept in sync by hand; they change together
// only when a built-in tool is added or removed.
var builtinToolNames = map[string]bool{
	"read_todos": true, "write_todos": true,
	"ls": true, "read_file": true, "write_file": true, "edit_file": true,
	"glob": true, "grep": true, "execute": true,
	"list_skills": true, "load_skill": true, "read_skill_resource": true, "execute_skill_script": true,
	"task": true,
}

// Router merges the built-in tool registry with a per-turn MCP toolset and
// routes a tool call to whichever side owns the name.
type Router struct {
	builtins *tool.Registry
	mcp      *mcpregistry.Toolset // nil when the turn has no active MCP servers

	// sandboxless and subagentless drop the execute and task tools from
	// this turn's definition list respectively. The built-in registry
	// always carries both (spec.md's DefaultRegistry registers every
	// built-in regardless of per-turn state); whether a given turn has a
	// sandbox or subagents enabled is turn-scoped state the registry
	// itself doesn't carry, so the omission happens here instead.
	sandboxless  bool
	subagentless bool
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithoutSandbox omits the execute tool from this turn's toolset, for a
// turn that has no active sandbox.
func WithoutSandbox() Option { return func(r *Router) { r.sandboxless = true } }

// WithoutSubagents omits the task tool from this turn's toolset, for a
// turn where subagent dispatch is disabled.
func WithoutSubagents() Option { return func(r *Router) { r.subagentless = true } }

// New builds a Router over the process-wide built-in registry and this
// turn's MCP toolset (which may be nil).
func New(builtins *tool.Registry, mcp *mcpregistry.Toolset, opts ...Option) *Router {
	r := &Router{builtins: builtins, mcp: mcp}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Definitions returns every definition in the merged toolset, built-ins
// first, MCP tools appended and sorted by name for deterministic ordering.
func (r *Router) Definitions() []Definition {
	var defs []Definition
	for _, t := range r.builtins.List() {
		if r.sandboxless && t.ID() == "execute" {
			continue
		}
		if r.subagentless && t.ID() == "task" {
			continue
		}
		defs = append(defs, Definition{Name: t.ID(), Description: t.Description(), Parameters: t.Parameters()})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	if r.mcp != nil {
		var mcpDefs []Definition
		for _, t := range r.mcp.Tools() {
			mcpDefs = append(mcpDefs, Definition{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
		}
		sort.Slice(mcpDefs, func(i, j int) bool { return mcpDefs[i].Name < mcpDefs[j].Name })
		defs = append(defs, mcpDefs...)
	}
	return defs
}

// PrepareTools filters definitions down to what this turn's user may
// invoke: built-in tools are kept unconditionally (spec.md §4.5), anything
// else (an MCP tool) is kept only if its name is in permitted. permitted is
// PermissionResolver.ResolveTools ∩ the caller's tool selection for the
// turn, computed once per turn by the caller.
func (r *Router) PrepareTools(ctx context.Context, defs []Definition, permitted map[string]bool) []Definition {
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if builtinToolNames[d.Name] || permitted[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// Execute dispatches a model-issued tool call by name. A built-in name
// routes to the tool.Registry; anything else is tried against the turn's
// MCP toolset. An unknown name returns an error naming the closest known
// tool by edit distance, so a model that hallucinates a near-miss name
// gets a usable hint instead of a bare "not found".
func (r *Router) Execute(ctx context.Context, name string, args json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	if (r.sandboxless && name == "execute") || (r.subagentless && name == "task") {
		return nil, fmt.Errorf("tool %q is not available this turn", name)
	}

	if t, ok := r.builtins.Get(name); ok {
		return t.Execute(ctx, args, toolCtx)
	}

	if r.mcp != nil {
		for _, t := range r.mcp.Tools() {
			if t.Name == name {
				output, err := r.mcp.Call(ctx, name, args)
				if err != nil {
					return nil, err
				}
				return &tool.Result{Title: name, Output: output}, nil
			}
		}
	}

	return nil, fmt.Errorf("unknown tool %q%s", name, r.suggestion(name))
}

// suggestion returns a " (did you mean X?)" hint for the closest known tool
// name within editDistanceThreshold, or "" if nothing is close enough to be
// useful.
const editDistanceThreshold = 3

func (r *Router) suggestion(name string) string {
	best := ""
	bestDist := editDistanceThreshold + 1

	consider := func(candidate string) {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(candidate))
		if d < bestDist {
			bestDist = d
			best = candidate
		}
	}

	for _, id := range r.builtins.IDs() {
		consider(id)
	}
	if r.mcp != nil {
		for _, t := range r.mcp.Tools() {
			consider(t.Name)
		}
	}

	if best == "" || bestDist > editDistanceThreshold {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}
