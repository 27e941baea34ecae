package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/agentserver/internal/apierr"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// createConversationRequest is the body of POST /api/conversations.
type createConversationRequest struct {
	Title string `json:"title,omitempty"`
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())

	var req createConversationRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	now := time.Now().UnixMilli()
	conv := &types.Conversation{
		ID:          ulid.Make().String(),
		OwnerUserID: user.ID,
		Title:       req.Title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateConversation(r.Context(), conv); err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "creating conversation", err))
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	convs, err := s.repo.ListConversations(r.Context(), user.ID)
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "listing conversations", err))
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadOwnedConversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadOwnedConversation(w, r)
	if !ok {
		return
	}
	msgs, err := s.repo.ListMessages(r.Context(), conv.ID)
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "listing messages", err))
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

func (s *Server) setArchived(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadOwnedConversation(w, r)
	if !ok {
		return
	}
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.ValidationError, "invalid request body")
		return
	}
	if err := s.repo.SetConversationArchived(r.Context(), conv.ID, req.Archived); err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "archiving conversation", err))
		return
	}
	writeSuccess(w)
}

type starRequest struct {
	Starred bool `json:"starred"`
}

func (s *Server) setStarred(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadOwnedConversation(w, r)
	if !ok {
		return
	}
	var req starRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.ValidationError, "invalid request body")
		return
	}
	if err := s.repo.SetConversationStarred(r.Context(), conv.ID, req.Starred); err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "starring conversation", err))
		return
	}
	writeSuccess(w)
}

type renameRequest struct {
	Title string `json:"title"`
}

func (s *Server) renameConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadOwnedConversation(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.ValidationError, "invalid request body")
		return
	}
	if err := s.repo.UpdateConversationTitle(r.Context(), conv.ID, req.Title, time.Now().UnixMilli()); err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "renaming conversation", err))
		return
	}
	writeSuccess(w)
}

type todosRequest struct {
	Todos []types.Todo `json:"todos"`
}

func (s *Server) getTodos(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadOwnedConversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conv.State.Todos)
}

func (s *Server) putTodos(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadOwnedConversation(w, r)
	if !ok {
		return
	}
	var req todosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.ValidationError, "invalid request body")
		return
	}
	if err := types.ValidateTodos(req.Todos); err != nil {
		writeError(w, apierr.ValidationError, err.Error())
		return
	}
	state := conv.State
	state.Todos = req.Todos
	if err := s.repo.UpdateConversationState(r.Context(), conv.ID, state, time.Now().UnixMilli()); err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "updating todos", err))
		return
	}
	writeSuccess(w)
}

// loadOwnedConversation fetches the {id} conversation and verifies the
// caller owns it or is an admin, writing the appropriate error response
// and returning ok=false otherwise.
func (s *Server) loadOwnedConversation(w http.ResponseWriter, r *http.Request) (*types.Conversation, bool) {
	id := chi.URLParam(r, "id")
	user, _ := CurrentUser(r.Context())

	conv, err := s.repo.GetConversation(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "loading conversation", err))
		return nil, false
	}
	if conv == nil {
		writeError(w, apierr.NotFound, "conversation not found")
		return nil, false
	}
	if !user.IsAdmin && conv.OwnerUserID != user.ID {
		writeError(w, apierr.PermissionDenied, "not the owner of this conversation")
		return nil, false
	}
	return conv, true
}
