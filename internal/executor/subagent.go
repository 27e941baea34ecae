// Package executor implements tool.TaskExecutor: running a named subagent
// to completion inside the conversation's existing sandbox and returning
// its final text as a tool result.
package executor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentserver/internal/agent"
	"github.com/opencode-ai/agentserver/internal/provider"
	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/internal/sandbox"
	"github.com/opencode-ai/agentserver/internal/tool"
	"github.com/opencode-ai/agentserver/internal/toolrouter"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// maxSubagentSteps bounds a subagent's own tool-calling loop, independent
// of the parent turn's step budget.
const maxSubagentSteps = 20

// SandboxLookup resolves the sandbox already running for a conversation. A
// subagent never creates a sandbox of its own; it always runs inside the
// one the parent turn acquired.
type SandboxLookup interface {
	Acquire(ctx context.Context, userID, conversationID string, cfg sandbox.ImageConfig) (*sandbox.Sandbox, error)
}

// SubagentExecutor implements tool.TaskExecutor by running a restricted,
// unpersisted agentic loop: the subagent's turns are never written to
// conversation history, only its final output is, as the task tool's own
// result.
type SubagentExecutor struct {
	registry  *provider.Registry
	agents    *agent.Registry
	builtins  *tool.Registry
	repo      repository.Repository
	sandboxes SandboxLookup
}

// NewSubagentExecutor builds a SubagentExecutor from the server's shared
// collaborators.
func NewSubagentExecutor(registry *provider.Registry, agents *agent.Registry, builtins *tool.Registry, repo repository.Repository, sandboxes SandboxLookup) *SubagentExecutor {
	return &SubagentExecutor{registry: registry, agents: agents, builtins: builtins, repo: repo, sandboxes: sandboxes}
}

// ExecuteSubtask implements tool.TaskExecutor.
func (e *SubagentExecutor) ExecuteSubtask(ctx context.Context, conversationID, agentName, prompt string, opts tool.TaskOptions) (*tool.TaskResult, error) {
	ag, err := e.agents.Get(agentName)
	if err != nil {
		return nil, err
	}
	if !ag.IsSubagent() {
		return nil, fmt.Errorf("agent %s cannot be used as subagent (mode: %s)", agentName, ag.Mode)
	}

	model, err := e.resolveModel(opts.Model)
	if err != nil {
		return nil, err
	}
	prov, err := e.registry.Get(model.ProviderID)
	if err != nil {
		return nil, err
	}

	sb, err := e.sandboxes.Acquire(ctx, "", conversationID, sandbox.ImageConfig{})
	if err != nil {
		return nil, fmt.Errorf("subagent sandbox lookup: %w", err)
	}

	router := toolrouter.New(e.builtins, nil, toolrouter.WithoutSubagents())
	defs := filterByAgent(router.Definitions(), ag)

	toolCtx := &tool.Context{
		ConversationID: conversationID,
		Sandbox:        sb,
		Repo:           e.repo,
	}

	systemPrompt := ag.Prompt
	if systemPrompt == "" {
		systemPrompt = fmt.Sprintf("You are the %s subagent: %s", ag.Name, ag.Description)
	}
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	}

	output, err := runSubagentLoop(ctx, prov, model.ID, router, toolCtx, defs, messages)
	if err != nil {
		return &tool.TaskResult{
			ConversationID: conversationID,
			AgentID:        agentName,
			Error:          err.Error(),
			Output:         fmt.Sprintf("subagent %s failed: %s", agentName, err.Error()),
		}, nil
	}

	return &tool.TaskResult{
		Output:         output,
		ConversationID: conversationID,
		AgentID:        agentName,
	}, nil
}

// resolveModel parses a "provider/model" hint, if given, otherwise falls
// back to the registry's configured default.
func (e *SubagentExecutor) resolveModel(hint string) (*types.Model, error) {
	if hint == "" {
		return e.registry.DefaultModel()
	}
	providerID, modelID := provider.ParseModelString(hint)
	if providerID == "" {
		def, err := e.registry.DefaultModel()
		if err != nil {
			return nil, err
		}
		providerID = def.ProviderID
	}
	return e.registry.GetModel(providerID, modelID)
}

// filterByAgent keeps only the definitions the agent's own tool map
// enables, so a plan agent (edit disabled) or explore agent (bash
// disabled) cannot reach tools its configuration denies even though
// toolrouter itself always keeps built-ins.
func filterByAgent(defs []toolrouter.Definition, ag *agent.Agent) []toolrouter.Definition {
	out := make([]toolrouter.Definition, 0, len(defs))
	for _, d := range defs {
		if ag.ToolEnabled(d.Name) {
			out = append(out, d)
		}
	}
	return out
}

// runSubagentLoop drives repeated completions and tool execution until the
// model stops requesting tools or maxSubagentSteps is hit, returning the
// final assistant text. Unlike the parent turn's agentic loop, nothing
// here is persisted or streamed to a client: a subagent invocation is
// stateless from the caller's perspective, only its final text becomes
// the task tool's result.
func runSubagentLoop(
	ctx context.Context,
	prov provider.Provider,
	modelID string,
	router *toolrouter.Router,
	toolCtx *tool.Context,
	defs []toolrouter.Definition,
	messages []*schema.Message,
) (string, error) {
	toolInfos := make([]provider.ToolInfo, len(defs))
	for i, d := range defs {
		toolInfos[i] = provider.ToolInfo{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	einoTools := provider.ConvertToEinoTools(toolInfos)

	for step := 0; step < maxSubagentSteps; step++ {
		stream, err := prov.CreateCompletion(ctx, &provider.CompletionRequest{
			Model:    modelID,
			Messages: messages,
			Tools:    einoTools,
		})
		if err != nil {
			return "", err
		}

		content, toolCalls, err := drain(stream)
		stream.Close()
		if err != nil {
			return "", err
		}

		if len(toolCalls) == 0 {
			return content, nil
		}

		if content != "" {
			messages = append(messages, &schema.Message{Role: schema.Assistant, Content: content})
		}
		messages = append(messages, &schema.Message{Role: schema.Assistant, ToolCalls: toolCalls})

		for _, tc := range toolCalls {
			result, execErr := router.Execute(ctx, tc.Function.Name, []byte(tc.Function.Arguments), toolCtx)
			resultText := ""
			if execErr != nil {
				resultText = execErr.Error()
			} else {
				resultText = result.Output
			}
			messages = append(messages, &schema.Message{
				Role:       schema.Tool,
				Content:    resultText,
				ToolCallID: tc.ID,
			})
		}
	}

	return "", fmt.Errorf("subagent exceeded %d steps without finishing", maxSubagentSteps)
}

// drain accumulates one completion's streamed content and tool calls,
// following the same Index-then-ID accumulation pattern agenticStream
// uses for the parent turn's loop.
func drain(stream *provider.CompletionStream) (string, []schema.ToolCall, error) {
	var content strings.Builder
	type acc struct{ id, name, args string }
	calls := map[string]*acc{}
	var order []string

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}
		content.WriteString(msg.Content)

		for _, tc := range msg.ToolCalls {
			key := tc.ID
			if tc.Index != nil {
				key = fmt.Sprintf("idx:%d", *tc.Index)
			}
			if key == "" {
				continue
			}
			a, ok := calls[key]
			if !ok {
				a = &acc{}
				calls[key] = a
				order = append(order, key)
			}
			if tc.ID != "" {
				a.id = tc.ID
			}
			if tc.Function.Name != "" {
				a.name = tc.Function.Name
			}
			a.args += tc.Function.Arguments
		}
	}

	out := make([]schema.ToolCall, 0, len(order))
	for _, key := range order {
		a := calls[key]
		out = append(out, schema.ToolCall{ID: a.id, Function: schema.FunctionCall{Name: a.name, Arguments: a.args}})
	}
	return content.String(), out, nil
}
