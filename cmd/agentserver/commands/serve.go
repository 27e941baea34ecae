package commands

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentserver/internal/agent"
	"github.com/opencode-ai/agentserver/internal/config"
	"github.com/opencode-ai/agentserver/internal/executor"
	"github.com/opencode-ai/agentserver/internal/logging"
	"github.com/opencode-ai/agentserver/internal/mcpregistry"
	"github.com/opencode-ai/agentserver/internal/provider"
	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/internal/sandbox"
	"github.com/opencode-ai/agentserver/internal/server"
	"github.com/opencode-ai/agentserver/internal/sessionfacade"
	"github.com/opencode-ai/agentserver/internal/tool"
)

var (
	serveHost      string
	servePort      int
	serveDirectory string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentserver HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "hostname", "127.0.0.1", "Host to bind")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDirectory, "directory", "", "Working directory (defaults to cwd)")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDirectory)
	if err != nil {
		return err
	}

	// Best-effort: a missing .env is normal outside local dev.
	_ = godotenv.Load()

	logging.Info().Str("directory", workDir).Msg("starting agentserver")

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}

	repo, err := repository.OpenSQLite(paths.DatabasePath())
	if err != nil {
		return err
	}

	ctx := context.Background()
	providerRegistry, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		logging.Warn().Err(err).Msg("provider initialization reported errors, continuing with whatever registered")
	}

	agentRegistry := agent.NewRegistry()
	builtins := tool.DefaultRegistry(nil, agentRegistry)

	dockerRuntime, err := sandbox.NewDockerRuntime()
	if err != nil {
		return err
	}
	sandboxManager := sandbox.NewManager(dockerRuntime)

	mcpRegistry := mcpregistry.NewRegistry(repo)

	subagentExecutor := executor.NewSubagentExecutor(providerRegistry, agentRegistry, builtins, repo, sandboxManager)
	builtins.SetTaskExecutor(subagentExecutor)

	facade := sessionfacade.New(repo, providerRegistry, sandboxManager, builtins, mcpRegistry)

	var auth *server.Authenticator
	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		auth = server.NewAuthenticator(repo, []byte(secret), os.Getenv("JWT_ALGORITHM"))
	} else {
		logging.Warn().Msg("JWT_SECRET_KEY not set; every request will run as the local admin principal")
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host = serveHost
	srvCfg.Port = servePort
	srv := server.New(srvCfg, repo, facade, mcpRegistry, auth)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", serveHost+":"+strconv.Itoa(servePort)).Msg("listening")
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logging.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("error during shutdown")
	}
	if err := repo.Close(); err != nil {
		logging.Error().Err(err).Msg("error closing repository")
	}
	logging.Info().Msg("agentserver stopped")
	return nil
}
