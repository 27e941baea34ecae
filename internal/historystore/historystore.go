// Package historystore reconstructs a provider-neutral message history from
// persisted rows and persists new rows in strict step order during a turn.
package historystore

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// Store reads and writes a conversation's message history through a
// repository.Repository, preserving the step_order alternation invariant
// spec.md §3 requires.
type Store struct {
	repo repository.Repository
}

// New builds a Store over repo.
func New(repo repository.Repository) *Store {
	return &Store{repo: repo}
}

// NextStepOrder returns one greater than conversationID's current max
// step_order.
func (s *Store) NextStepOrder(ctx context.Context, conversationID string) (int, error) {
	return s.repo.NextStepOrder(ctx, conversationID)
}

// ReadHistory rebuilds a provider-neutral sequence of history entries from
// every persisted row of conversationID, in step_order.
//
//   - role=user      -> a user_prompt entry carrying the text.
//   - role=model     -> a model_response entry if Content is non-empty,
//     followed by one tool_call entry per entry in ToolCalls.
//   - role=tool_return -> a tool_return entry tagged with ToolName and
//     ToolCallID.
func (s *Store) ReadHistory(ctx context.Context, conversationID string) ([]types.HistoryMessage, error) {
	rows, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var out []types.HistoryMessage
	for _, m := range rows {
		switch m.Role {
		case types.RoleUser:
			out = append(out, types.HistoryMessage{Kind: types.HistoryUserPrompt, Text: m.Content})

		case types.RoleModel:
			if m.Content != "" {
				out = append(out, types.HistoryMessage{Kind: types.HistoryModelText, Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				out = append(out, types.HistoryMessage{
					Kind:       types.HistoryToolCall,
					ToolCalls:  []types.ToolCall{call},
					ToolCallID: call.ID,
				})
			}

		case types.RoleToolReturn:
			out = append(out, types.HistoryMessage{
				Kind:       types.HistoryToolReturn,
				Text:       m.ToolReturnContent,
				ToolName:   m.ToolName,
				ToolCallID: m.ToolCallID,
			})

		default:
			return nil, fmt.Errorf("historystore: unknown message role %q at step %d", m.Role, m.StepOrder)
		}
	}
	return out, nil
}

// PersistUser writes a user-authored row at step.
func (s *Store) PersistUser(ctx context.Context, conversationID string, step int, text string) error {
	return s.repo.InsertMessage(ctx, &types.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		StepOrder:      step,
		Role:           types.RoleUser,
		Content:        text,
		CreatedAt:      time.Now().UnixMilli(),
	})
}

// PersistModelTextOnly writes a final model-response row carrying no tool
// calls.
func (s *Store) PersistModelTextOnly(ctx context.Context, conversationID string, step int, text string) error {
	return s.repo.InsertMessage(ctx, &types.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		StepOrder:      step,
		Role:           types.RoleModel,
		Content:        text,
		CreatedAt:      time.Now().UnixMilli(),
	})
}

// PersistModelWithToolCalls writes a model row carrying one or more pending
// tool calls. The caller must persist this row before any matching
// PersistToolReturn call, and at a lesser step, so readback preserves the
// alternation invariant.
func (s *Store) PersistModelWithToolCalls(ctx context.Context, conversationID string, step int, text string, calls []types.ToolCall) error {
	return s.repo.InsertMessage(ctx, &types.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		StepOrder:      step,
		Role:           types.RoleModel,
		Content:        text,
		ToolCalls:      calls,
		CreatedAt:      time.Now().UnixMilli(),
	})
}

// PersistToolReturn writes a tool_return row for one prior tool call.
func (s *Store) PersistToolReturn(ctx context.Context, conversationID string, step int, toolName, toolCallID, content string) error {
	return s.repo.InsertMessage(ctx, &types.Message{
		ID:                ulid.Make().String(),
		ConversationID:    conversationID,
		StepOrder:         step,
		Role:              types.RoleToolReturn,
		ToolName:          toolName,
		ToolCallID:        toolCallID,
		ToolReturnContent: content,
		CreatedAt:         time.Now().UnixMilli(),
	})
}

// SaveState updates conversationID's persisted state blob (todos, upload
// bookkeeping).
func (s *Store) SaveState(ctx context.Context, conversationID string, state types.ConversationState) error {
	return s.repo.UpdateConversationState(ctx, conversationID, state, time.Now().UnixMilli())
}
