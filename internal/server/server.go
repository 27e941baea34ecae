package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opencode-ai/agentserver/internal/mcpregistry"
	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/internal/sessionfacade"
)

// Config holds HTTP-layer settings independent of any domain collaborator.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EnableCORS   bool
}

// DefaultConfig returns sane defaults for local/dev use.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the chat endpoint streams for the duration of a turn
		EnableCORS:   true,
	}
}

// Server wires the Facade and repository behind chi routes and owns the
// listening http.Server's lifecycle.
type Server struct {
	config Config
	router *chi.Mux
	http   *http.Server

	repo   repository.Repository
	facade *sessionfacade.Facade
	mcp    *mcpregistry.Registry
	auth   *Authenticator
}

// New builds a Server. auth may be nil, in which case every request is
// treated as the fixed local admin principal (see auth.go), which is only
// appropriate for a trusted single-tenant deployment.
func New(cfg Config, repo repository.Repository, facade *sessionfacade.Facade, mcp *mcpregistry.Registry, auth *Authenticator) *Server {
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		repo:   repo,
		facade: facade,
		mcp:    mcp,
		auth:   auth,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// Router exposes the underlying chi.Mux, chiefly for tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Start begins serving and blocks until Shutdown or a listener error.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:         s.config.Host + ":" + strconv.Itoa(s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
