package types

import "errors"

// ErrMultipleInProgressTodos is returned when a todo list write would leave
// more than one entry in_progress at a time.
var ErrMultipleInProgressTodos = errors.New("at most one todo may be in_progress")

var (
	errMCPConfigMissingCommand   = errors.New("mcp config: stdio transport requires command")
	errMCPConfigMissingURL       = errors.New("mcp config: http/sse transport requires url")
	errMCPConfigUnknownTransport = errors.New("mcp config: unknown transport")
)
