// Package turnengine drives one conversational turn: it consumes a
// provider-neutral EventStream, applies the persistence transition table
// against a historystore.Store, and emits client-visible frames. It never
// executes a tool itself; the framework producing the EventStream does
// that, and the engine only observes the outcome.
package turnengine

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/opencode-ai/agentserver/internal/historystore"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// ErrTurnCancelled is returned by Run when ctx is cancelled mid-turn, after
// any pending model-with-tool-calls row has been finalized.
var ErrTurnCancelled = errors.New("turnengine: turn cancelled")

// Engine applies spec's turn transition table to one conversation's events.
type Engine struct {
	store *historystore.Store

	// locks serializes whole turns per conversation, so a turn's sequence
	// of persisted rows is never interleaved with another turn's.
	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

// New builds an Engine persisting through store.
func New(store *historystore.Store) *Engine {
	return &Engine{store: store, locks: make(map[string]*sync.Mutex)}
}

func (e *Engine) lockFor(conversationID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[conversationID] = l
	}
	return l
}

// Emit is called by Run for every client-visible frame produced during the
// turn. Callers supply one, e.g. to push frames onto an SSE response.
type Emit func(ClientEvent)

// Run drives one turn to completion: it reads events from stream, persists
// rows through the Store in step order, and calls emit for every
// client-visible frame. It holds a per-conversation lock for the duration
// of the call, so concurrent turns on the same conversation serialize.
//
// On success it returns the turn's final assistant text. On ctx
// cancellation it finalizes any pending model-with-tool-calls row (so no
// tool call is ever left unpersisted) and returns ErrTurnCancelled; it does
// not touch background title generation, which is the caller's concern.
func (e *Engine) Run(ctx context.Context, conversationID string, stream EventStream, todos []types.Todo, emit Emit) (string, error) {
	lock := e.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()
	defer stream.Close()

	step, err := e.store.NextStepOrder(ctx, conversationID)
	if err != nil {
		return "", err
	}

	var textChunks []string
	var pendingCalls []types.ToolCall
	idToName := make(map[string]string)

	flushPendingModelRow := func() error {
		if len(pendingCalls) == 0 {
			return nil
		}
		text := joinChunks(textChunks)
		if err := e.store.PersistModelWithToolCalls(ctx, conversationID, step, text, pendingCalls); err != nil {
			return err
		}
		step++
		textChunks = nil
		pendingCalls = nil
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if err := flushPendingModelRow(); err != nil {
				return "", err
			}
			return "", ErrTurnCancelled
		default:
		}

		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return joinChunks(textChunks), nil
			}
			return "", err
		}

		switch ev.Kind {
		case EventPartStart, EventPartDelta:
			if ev.Text == "" {
				continue
			}
			textChunks = append(textChunks, ev.Text)
			emit(ClientEvent{Type: clientEventText, Content: ev.Text})

		case EventFunctionToolCall:
			if ev.Call == nil {
				continue
			}
			pendingCalls = append(pendingCalls, *ev.Call)
			idToName[ev.Call.ID] = ev.Call.Name
			emit(ClientEvent{Type: clientEventToolCall, ToolName: ev.Call.Name, Args: ev.Call.Args, ToolCallID: ev.Call.ID})

		case EventFunctionToolResult:
			if ev.Result == nil {
				continue
			}
			if len(pendingCalls) > 0 {
				if err := flushPendingModelRow(); err != nil {
					return "", err
				}
			}
			toolName := idToName[ev.Result.ToolCallID]
			if err := e.store.PersistToolReturn(ctx, conversationID, step, toolName, ev.Result.ToolCallID, ev.Result.Content); err != nil {
				return "", err
			}
			step++
			emit(ClientEvent{Type: clientEventToolResult, ToolName: toolName, ToolCallID: ev.Result.ToolCallID, Result: ev.Result.Content})

		case EventAgentRunResult:
			finalText := joinChunks(textChunks)
			if finalText != "" {
				if err := e.store.PersistModelTextOnly(ctx, conversationID, step, finalText); err != nil {
					return "", err
				}
				step++
				textChunks = nil
			}
			if err := e.store.SaveState(ctx, conversationID, types.ConversationState{Todos: todos}); err != nil {
				return "", err
			}
			return finalText, nil
		}
	}
}

func joinChunks(chunks []string) string {
	out := ""
	for _, c := range chunks {
		out += c
	}
	return out
}
