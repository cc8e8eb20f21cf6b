package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pagepulse/comment-sync/database"
	"github.com/pagepulse/comment-sync/internal/app/storage/auth"
	"github.com/pagepulse/comment-sync/internal/config"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long: `Manage the schema used by the database cursor store and the database sink.
Use with 'up', 'down' or 'version' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	migrateCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	migrateCmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate down (0 = all)")

	migrateCmd.AddCommand(newMigrateUpCmd(), newMigrateDownCmd(), newMigrateVersionCmd())
	return migrateCmd
}

// migrationTarget loads the config and resolves the connection string migrations run against
func migrationTarget(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	if cfg.Database == nil {
		return nil, "", fmt.Errorf("database configuration is required")
	}

	connString, err := auth.MigrationConnectionString(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get migration connection string: %w", err)
	}
	return cfg, connString, nil
}

// confirm asks the user on in for a yes/no answer unless --yes was given
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return false, fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return true, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal, pass --yes to run non-interactively")
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\nContinue? (yes/no): ", prompt)
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "yes" || response == "y", nil
}

func describeTarget(db *config.DatabaseConfig) string {
	return fmt.Sprintf("%s@%s:%d/%s", db.User, db.Host, db.Port, db.Database)
}

func logVersion(cmd *cobra.Command, connString string) {
	version, dirty, err := database.GetVersion(connString)
	switch {
	case err != nil:
		slog.WarnContext(cmd.Context(), "Unable to get migration version", "error", err)
	case dirty:
		slog.WarnContext(cmd.Context(), "Database is in a dirty state", "version", version)
	default:
		slog.InfoContext(cmd.Context(), "Current schema version", "version", version)
	}
}
