package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/agentserver/internal/apierr"
	"github.com/opencode-ai/agentserver/internal/sandbox"
	"github.com/opencode-ai/agentserver/internal/sessionfacade"
	"github.com/opencode-ai/agentserver/internal/turnengine"
)

// chatRequest is the body of POST /api/conversations/{id}/chat.
type chatRequest struct {
	Message         string      `json:"message"`
	ModelName       string      `json:"model_name,omitempty"`
	UploadPath      string      `json:"upload_path,omitempty"`
	EnableSubagents bool        `json:"enable_subagents,omitempty"`
	MCPTools        toolsOrAuto `json:"mcp_tools,omitempty"`
	Skills          toolsOrAuto `json:"skills,omitempty"`
}

// toolsOrAuto unmarshals either the literal string "auto" or a list of
// names; nil (the zero value) represents "auto" as well as an omitted
// field, since both mean "everything the caller is permitted".
type toolsOrAuto struct {
	names []string
	auto  bool
}

func (t *toolsOrAuto) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		t.auto = asString == "" || asString == "auto"
		return nil
	}
	var asList []string
	if err := json.Unmarshal(data, &asList); err != nil {
		return err
	}
	t.names = asList
	return nil
}

// chat handles POST /api/conversations/{id}/chat: it runs one turn through
// the Facade and streams the result as SSE frames, matching the four frame
// shapes {type:text|tool_call|tool_result|error}.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	user, _ := CurrentUser(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.ValidationError, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, apierr.ValidationError, "message is required")
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, apierr.ValidationError, "streaming not supported by this client")
		return
	}

	emit := func(ev turnengine.ClientEvent) {
		sse.send(ev)
	}

	facadeReq := sessionfacade.StartTurnRequest{
		User:            *user,
		ConversationID:  conversationID,
		Message:         req.Message,
		RequestedTools:  req.MCPTools.names,
		RequestedSkills: req.Skills.names,
		Image: sandbox.ImageConfig{
			Image:          "agentserver/sandbox:latest",
			BaseDir:        hostSandboxDir(conversationID),
			DisableNetwork: false,
		},
	}

	_, err := s.facade.StartTurn(r.Context(), facadeReq, emit)
	if err != nil {
		sse.send(turnengine.ClientEvent{Type: "error", Content: err.Error()})
	}
}

// hostSandboxDir resolves the host-visible directory a conversation's
// sandbox mounts uploads/intermediate/skills from: PYDANTIC_DEEP_HOST_DIR,
// else PYDANTIC_DEEP_BASE_DIR, joined with conversationID. It returns ""
// when neither variable is set.
func hostSandboxDir(conversationID string) string {
	base := os.Getenv("PYDANTIC_DEEP_HOST_DIR")
	if base == "" {
		base = os.Getenv("PYDANTIC_DEEP_BASE_DIR")
	}
	if base == "" {
		return ""
	}
	return base + "/" + conversationID
}
