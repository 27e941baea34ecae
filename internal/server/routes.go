package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures every endpoint spec.md §6 names. Every route
// below requireAuth resolves to a types.User via Bearer JWT (or the fixed
// local-admin principal when no Authenticator is configured).
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.listConversations)
			r.Post("/", s.createConversation)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getConversation)
				r.Patch("/archive", s.setArchived)
				r.Patch("/star", s.setStarred)
				r.Patch("/rename", s.renameConversation)
				r.Get("/messages", s.listMessages)
				r.Get("/todos", s.getTodos)
				r.Put("/todos", s.putTodos)
				r.Post("/chat", s.chat)
			})
		})

		r.Route("/skills", func(r chi.Router) {
			r.Get("/", s.listSkills)
			r.Put("/", s.upsertSkill)
			r.Get("/{name}", s.getSkill)
		})

		r.Route("/mcp-servers", func(r chi.Router) {
			r.Get("/", s.listMCPServers)
			r.Put("/", s.upsertMCPServer)
			r.Delete("/{name}", s.deleteMCPServer)
			r.Get("/status", s.mcpStatus)
		})

		r.Get("/models", s.listModels)
	})
}
