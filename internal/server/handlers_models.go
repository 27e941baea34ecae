package server

import (
	"net/http"

	"github.com/opencode-ai/agentserver/internal/apierr"
)

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.repo.ListActiveModelConfigs(r.Context())
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.RepositoryError, "listing models", err))
		return
	}
	writeJSON(w, http.StatusOK, models)
}
