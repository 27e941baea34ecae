package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentserver/pkg/types"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Manage registered MCP server configs",
}

var mcpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active MCP server configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		configs, err := repo.ListActiveMCPServerConfigs(context.Background())
		if err != nil {
			return err
		}
		for _, c := range configs {
			fmt.Printf("%s\t%s\t%s\n", c.Name, c.Transport, c.URL+c.Command)
		}
		return nil
	},
}

var (
	mcpAddTransport string
	mcpAddCommand   string
	mcpAddURL       string
)

var mcpAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a new MCP server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		cfg := &types.MCPServerConfig{
			Name:      args[0],
			Transport: types.MCPTransport(mcpAddTransport),
			Command:   mcpAddCommand,
			URL:       mcpAddURL,
			IsActive:  true,
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return repo.UpsertMCPServerConfig(context.Background(), cfg)
	},
}

func init() {
	mcpAddCmd.Flags().StringVar(&mcpAddTransport, "transport", "stdio", "Transport: stdio|http|sse")
	mcpAddCmd.Flags().StringVar(&mcpAddCommand, "command", "", "Command to run (stdio transport)")
	mcpAddCmd.Flags().StringVar(&mcpAddURL, "url", "", "Server URL (http/sse transport)")

	mcpCmd.AddCommand(mcpListCmd, mcpAddCmd)
}
