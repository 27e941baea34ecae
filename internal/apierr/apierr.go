// Package apierr defines the error taxonomy shared by every component so the
// HTTP layer can map an error to the right status code / SSE error frame
// without components needing to know about HTTP at all.
package apierr

import "fmt"

// Kind is one of the error kinds from the error-handling design: it is a
// taxonomy, not a set of Go types, so a single Error struct carries it.
type Kind string

const (
	NotFound          Kind = "not_found"
	PermissionDenied  Kind = "permission_denied"
	AuthInvalid       Kind = "auth_invalid"
	ValidationError   Kind = "validation_error"
	SandboxError      Kind = "sandbox_error"
	ToolExecutionError Kind = "tool_execution_error"
	LLMStreamError    Kind = "llm_stream_error"
	RepositoryError   Kind = "repository_error"
)

// Error is the concrete error value carrying a Kind plus context.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return ""
}

// as is a tiny errors.As wrapper kept local to avoid importing errors twice
// at every call site; behaves identically to errors.As for *Error targets.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
