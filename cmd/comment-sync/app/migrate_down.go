package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pagepulse/comment-sync/database"
)

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back database migrations",
		Long: `Roll back database migrations. With --num-steps 0 every migration is
rolled back, which drops the cursor and sink tables.`,
		Args: cobra.NoArgs,
		RunE: runMigrateDown,
	}
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	steps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	cfg, connString, err := migrationTarget(cmd)
	if err != nil {
		return err
	}

	what := "all migrations"
	if steps > 0 {
		what = fmt.Sprintf("%d migration(s)", steps)
	}
	ok, err := confirm(cmd, fmt.Sprintf("About to roll back %s on database: %s", what, describeTarget(cfg.Database)))
	if err != nil {
		return err
	}
	if !ok {
		slog.InfoContext(cmd.Context(), "Migration cancelled by user")
		return nil
	}

	slog.InfoContext(cmd.Context(), "Rolling back database migrations", "steps", steps)
	if err := database.MigrateDown(connString, int(steps)); err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	logVersion(cmd, connString)
	return nil
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, connString, err := migrationTarget(cmd)
			if err != nil {
				return err
			}
			version, dirty, err := database.GetVersion(connString)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
			return nil
		},
	}
}
