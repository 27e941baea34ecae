package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/agentserver/internal/apierr"
	"github.com/opencode-ai/agentserver/pkg/types"
)

func (s *Server) listSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.repo.ListActiveSkills(r.Context())
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "listing skills", err))
		return
	}
	writeJSON(w, http.StatusOK, skills)
}

func (s *Server) getSkill(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	skill, err := s.repo.GetSkill(r.Context(), name)
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "loading skill", err))
		return
	}
	if skill == nil {
		writeError(w, apierr.NotFound, "skill not found")
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

// upsertSkill handles admin registration/update of a skill's catalog row.
// This mirrors on-disk discovery already performed by internal/skills; an
// admin calling this endpoint is asserting that a skill directory with a
// matching name exists on every sandbox image.
func (s *Server) upsertSkill(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	if !user.IsAdmin {
		writeError(w, apierr.PermissionDenied, "admin required")
		return
	}

	var skill types.Skill
	if err := json.NewDecoder(r.Body).Decode(&skill); err != nil {
		writeError(w, apierr.ValidationError, "invalid request body")
		return
	}
	if skill.Name == "" {
		writeError(w, apierr.ValidationError, "name is required")
		return
	}
	if err := s.repo.UpsertSkill(r.Context(), &skill); err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "upserting skill", err))
		return
	}
	writeJSON(w, http.StatusOK, skill)
}
