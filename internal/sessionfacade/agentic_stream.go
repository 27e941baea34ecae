package sessionfacade

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentserver/internal/provider"
	"github.com/opencode-ai/agentserver/internal/tool"
	"github.com/opencode-ai/agentserver/internal/toolrouter"
	"github.com/opencode-ai/agentserver/internal/turnengine"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// maxAgenticSteps bounds how many times agenticStream will call the
// provider again after a batch of tool calls before giving up.
const maxAgenticSteps = 50

// pendingToolCall accumulates one tool call's streamed fields across
// multiple chunks: a start chunk carries ID+Name, follow-up chunks carry
// only Arguments fragments to append.
type pendingToolCall struct {
	id, name string
	argsJSON string
}

// agenticStream adapts a sequence of provider completions plus in-between
// tool execution into the single flat turnengine.EventStream the engine
// consumes. The engine itself never calls a tool or re-invokes the
// provider; the "keep calling the model until it stops asking for tools"
// loop lives here instead, emitting the engine's five event shapes as it
// goes rather than mutating a message in place.
type agenticStream struct {
	ctx      context.Context
	prov     provider.Provider
	modelID  string
	router   *toolrouter.Router
	toolCtx  *tool.Context
	einoTools []*schema.ToolInfo

	messages []*schema.Message

	pending []turnengine.Event
	current *provider.CompletionStream
	done    bool
	step    int
}

// newAgenticStream builds the adapter around the resolved provider/model,
// the per-turn toolset, and the initial message history (system prompt +
// reconstructed history + the new user message).
func newAgenticStream(
	ctx context.Context,
	prov provider.Provider,
	modelID string,
	router *toolrouter.Router,
	toolCtx *tool.Context,
	defs []toolrouter.Definition,
	messages []*schema.Message,
) *agenticStream {
	toolInfos := make([]provider.ToolInfo, len(defs))
	for i, d := range defs {
		toolInfos[i] = provider.ToolInfo{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	return &agenticStream{
		ctx:       ctx,
		prov:      prov,
		modelID:   modelID,
		router:    router,
		toolCtx:   toolCtx,
		einoTools: provider.ConvertToEinoTools(toolInfos),
		messages:  messages,
	}
}

// Recv implements turnengine.EventStream.
func (a *agenticStream) Recv() (turnengine.Event, error) {
	for {
		if len(a.pending) > 0 {
			ev := a.pending[0]
			a.pending = a.pending[1:]
			return ev, nil
		}
		if a.done {
			return turnengine.Event{}, io.EOF
		}

		if a.current == nil {
			if a.step >= maxAgenticSteps {
				a.done = true
				a.pending = append(a.pending, turnengine.Event{Kind: turnengine.EventAgentRunResult, Reason: "max_steps"})
				continue
			}
			stream, err := a.prov.CreateCompletion(a.ctx, &provider.CompletionRequest{
				Model:    a.modelID,
				Messages: a.messages,
				Tools:    a.einoTools,
			})
			if err != nil {
				return turnengine.Event{}, err
			}
			a.current = stream
		}

		if err := a.consumeOneCompletion(); err != nil {
			return turnengine.Event{}, err
		}
	}
}

// consumeOneCompletion drains a.current to completion, queuing PartDelta
// events for text content and, once the stream's terminal chunk reveals
// whether the model asked for tools, either queuing an AgentRunResult (no
// tool calls) or executing every requested tool and queuing the
// FunctionToolCall/FunctionToolResult pairs before resetting a.current so
// the next Recv call issues a follow-up completion with the tool results
// appended.
func (a *agenticStream) consumeOneCompletion() error {
	defer func() {
		if a.current != nil {
			a.current.Close()
			a.current = nil
		}
	}()

	calls := map[string]*pendingToolCall{}
	var callOrder []string
	var content string
	finishReason := ""

	for {
		msg, err := a.current.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if msg.Content != "" {
			content += msg.Content
			a.pending = append(a.pending, turnengine.Event{Kind: turnengine.EventPartDelta, Text: msg.Content})
		}

		for _, tc := range msg.ToolCalls {
			key := tc.ID
			if tc.Index != nil {
				key = fmt.Sprintf("idx:%d", *tc.Index)
			}
			if key == "" {
				continue
			}
			pc, ok := calls[key]
			if !ok {
				pc = &pendingToolCall{}
				calls[key] = pc
				callOrder = append(callOrder, key)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.argsJSON += tc.Function.Arguments
		}

		if msg.ResponseMeta != nil && msg.ResponseMeta.FinishReason != "" {
			finishReason = msg.ResponseMeta.FinishReason
		}
	}

	if len(calls) == 0 {
		a.done = true
		a.pending = append(a.pending, turnengine.Event{Kind: turnengine.EventAgentRunResult, Reason: finishReason})
		return nil
	}

	if content != "" {
		a.messages = append(a.messages, &schema.Message{Role: schema.Assistant, Content: content})
	}

	var assistantToolCalls []schema.ToolCall
	for _, key := range callOrder {
		pc := calls[key]
		assistantToolCalls = append(assistantToolCalls, schema.ToolCall{
			ID:       pc.id,
			Function: schema.FunctionCall{Name: pc.name, Arguments: pc.argsJSON},
		})
	}
	a.messages = append(a.messages, &schema.Message{Role: schema.Assistant, ToolCalls: assistantToolCalls})

	for _, key := range callOrder {
		pc := calls[key]

		var args map[string]any
		_ = json.Unmarshal([]byte(pc.argsJSON), &args)

		a.pending = append(a.pending, turnengine.Event{
			Kind: turnengine.EventFunctionToolCall,
			Call: &types.ToolCall{ID: pc.id, Name: pc.name, Args: args},
		})

		argsRaw, _ := json.Marshal(args)
		result, execErr := a.router.Execute(a.ctx, pc.name, argsRaw, a.toolCtx)

		var resultContent string
		isError := execErr != nil
		if execErr != nil {
			resultContent = execErr.Error()
		} else {
			resultContent = result.Output
		}

		a.pending = append(a.pending, turnengine.Event{
			Kind: turnengine.EventFunctionToolResult,
			Result: &turnengine.ToolCallResult{
				ToolCallID: pc.id,
				Content:    resultContent,
				IsError:    isError,
			},
		})

		a.messages = append(a.messages, &schema.Message{
			Role:       schema.Tool,
			Content:    resultContent,
			ToolCallID: pc.id,
		})
	}

	a.step++
	return nil
}

// Close releases any in-flight completion stream. Safe to call more than
// once and after EOF.
func (a *agenticStream) Close() {
	if a.current != nil {
		a.current.Close()
		a.current = nil
	}
}
