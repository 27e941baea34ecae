package turnengine

import "github.com/opencode-ai/agentserver/pkg/types"

// EventKind distinguishes the five event shapes an EventStream yields
// during a turn.
type EventKind string

const (
	EventPartStart          EventKind = "part_start"
	EventPartDelta          EventKind = "part_delta"
	EventFunctionToolCall   EventKind = "function_tool_call"
	EventFunctionToolResult EventKind = "function_tool_result"
	EventAgentRunResult     EventKind = "agent_run_result"
)

// Event is one item from an LLM turn's event stream. Which fields are
// populated depends on Kind; see the EventKind constants.
type Event struct {
	Kind EventKind

	// Text carries content for EventPartStart and EventPartDelta.
	Text string

	// Call carries the requested tool invocation for EventFunctionToolCall.
	Call *types.ToolCall

	// Result carries the outcome of a prior tool call for
	// EventFunctionToolResult.
	Result *ToolCallResult

	// Reason carries the stop reason for EventAgentRunResult (e.g. "stop",
	// "tool-calls", "length").
	Reason string
}

// ToolCallResult is the outcome of one tool invocation, as reported by
// whichever framework executed it (the engine itself never calls a tool; it
// only observes and persists the outcome).
type ToolCallResult struct {
	ToolCallID string
	// Content is the result's textual content, preferring a "content"
	// field on a structured result if the framework supplied one,
	// otherwise the raw serialized result.
	Content string
	// IsError reports whether the tool invocation itself failed; the
	// content still gets persisted as a tool_return row either way (spec's
	// history model makes no room for a distinct failed-tool-return role).
	IsError bool
}

// EventStream is the uniform per-turn contract the engine consumes. A
// concrete implementation adapts whatever the LLM provider framework
// actually emits (eino's ToolCallAgent stream, a raw chat-completions
// stream, …) into this shape; that adaptation lives outside this package.
type EventStream interface {
	// Recv returns the next event, or io.EOF once the stream is exhausted
	// (callers should normally see an EventAgentRunResult before EOF; EOF
	// with no such event is treated as an abrupt disconnect).
	Recv() (Event, error)
	Close()
}

// ClientEvent is a client-visible frame the engine emits as a turn
// progresses. Encoding it onto the wire (SSE, WebSocket, …) is the caller's
// responsibility.
type ClientEvent struct {
	Type       string         `json:"type"`
	Content    string         `json:"content,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Result     string         `json:"result,omitempty"`
}

const (
	clientEventText       = "text"
	clientEventToolCall   = "tool_call"
	clientEventToolResult = "tool_result"
)
