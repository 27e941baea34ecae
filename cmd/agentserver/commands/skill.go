package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentserver/internal/config"
	"github.com/opencode-ai/agentserver/internal/repository"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Manage the skills catalog",
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		skills, err := repo.ListActiveSkills(context.Background())
		if err != nil {
			return err
		}
		for _, s := range skills {
			fmt.Printf("%s\t%s\t%s\n", s.Name, s.Version, s.Description)
		}
		return nil
	},
}

func init() {
	skillCmd.AddCommand(skillListCmd)
}

// openRepo opens the default SQLite repository at the standard data path,
// shared by every admin subcommand that needs direct repository access
// outside a running server process.
func openRepo() (*repository.SQLiteRepository, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}
	return repository.OpenSQLite(paths.DatabasePath())
}
