package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pagepulse/comment-sync/database"
)

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply all pending database migrations to bring the schema up to date.
The connection parameters are read from the database section of the config file.`,
		Args: cobra.NoArgs,
		RunE: runMigrateUp,
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, connString, err := migrationTarget(cmd)
	if err != nil {
		return err
	}

	ok, err := confirm(cmd, "About to apply migrations to database: "+describeTarget(cfg.Database))
	if err != nil {
		return err
	}
	if !ok {
		slog.InfoContext(cmd.Context(), "Migration cancelled by user")
		return nil
	}

	slog.InfoContext(cmd.Context(), "Applying database migrations")
	if err := database.MigrateUp(connString); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logVersion(cmd, connString)
	return nil
}
