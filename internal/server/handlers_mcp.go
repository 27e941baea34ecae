package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/agentserver/internal/apierr"
	"github.com/opencode-ai/agentserver/pkg/types"
)

func (s *Server) listMCPServers(w http.ResponseWriter, r *http.Request) {
	configs, err := s.repo.ListActiveMCPServerConfigs(r.Context())
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "listing MCP servers", err))
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

// upsertMCPServer registers or updates an MCP server config and invalidates
// internal/mcpregistry's content-hash cache so the next turn reconnects to
// the new set instead of reusing a stale Toolset.
func (s *Server) upsertMCPServer(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	if !user.IsAdmin {
		writeError(w, apierr.PermissionDenied, "admin required")
		return
	}

	var cfg types.MCPServerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, apierr.ValidationError, "invalid request body")
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, apierr.ValidationError, err.Error())
		return
	}
	if err := s.repo.UpsertMCPServerConfig(r.Context(), &cfg); err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "upserting MCP server", err))
		return
	}
	if s.mcp != nil {
		s.mcp.InvalidateCache()
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) deleteMCPServer(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	if !user.IsAdmin {
		writeError(w, apierr.PermissionDenied, "admin required")
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.repo.DeleteMCPServerConfig(r.Context(), name); err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "deleting MCP server", err))
		return
	}
	if s.mcp != nil {
		s.mcp.InvalidateCache()
	}
	writeSuccess(w)
}

// mcpStatus reports the current MCP config snapshot (its hash and the
// active server configs) for observability. It does not dial the servers,
// so it says nothing about whether they are up or how many tools they offer.
func (s *Server) mcpStatus(w http.ResponseWriter, r *http.Request) {
	if s.mcp == nil {
		writeJSON(w, http.StatusOK, map[string]any{"servers": []any{}})
		return
	}
	snapshot, err := s.mcp.CurrentConfig(r.Context())
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "reading MCP status", err))
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
