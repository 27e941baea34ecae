package server

import (
	"encoding/json"
	"net/http"

	"github.com/opencode-ai/agentserver/internal/apierr"
)

// ErrorResponse is the JSON envelope returned for every non-2xx response:
// a code (the apierr.Kind, instead of a bespoke string enum) and a message.
// It carries no details field.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a plain error response under the given apierr.Kind.
func writeError(w http.ResponseWriter, kind apierr.Kind, message string) {
	writeAPIError(w, apierr.New(kind, message))
}

// writeAPIError maps an error to an HTTP status via apierr.KindOf and
// writes the ErrorResponse envelope. Errors with no apierr.Kind attached
// are treated as internal.
func writeAPIError(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	writeJSON(w, statusFor(kind), ErrorResponse{Error: ErrorDetail{Code: string(kind), Message: err.Error()}})
}

func statusFor(kind apierr.Kind) int {
	switch kind {
	case apierr.NotFound:
		return http.StatusNotFound
	case apierr.PermissionDenied:
		return http.StatusForbidden
	case apierr.AuthInvalid:
		return http.StatusUnauthorized
	case apierr.ValidationError:
		return http.StatusBadRequest
	case apierr.SandboxError, apierr.ToolExecutionError, apierr.LLMStreamError, apierr.RepositoryError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeSuccess writes a minimal success acknowledgement.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
