package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	syncapp "github.com/pagepulse/comment-sync/internal/app"
	"github.com/pagepulse/comment-sync/internal/telemetry"
)

const (
	defaultGracefulTimeout  = 30 * time.Second // Kubernetes-friendly shutdown time
	telemetryShutdownWindow = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync loop and the admin API",
		Long: `Run the background sync coordinator and, unless admin.disabled is set, the
admin HTTP API.

The configuration file (--config) specifies:
- the page to poll and its access token
- the cursor store and the row sink
- the polling interval and the change detection strategy`,
		RunE: runServe,
	}

	serveCmd.Flags().String("address", "", "Admin address to listen on (overrides admin.address)")
	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	slog.Info("Loaded configuration",
		"instance_id", cfg.GetInstanceID(),
		"page_id", cfg.Source.Facebook.PageID,
		"cursor_type", cfg.Cursor.GetType(),
		"sink_type", cfg.Sink.Type,
		"strategy", cfg.Sync.GetStrategy())

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(cfg.Telemetry),
		telemetry.WithInstanceID(cfg.GetInstanceID()),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownWindow)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	opts := []syncapp.CommentSyncAppOptions{
		syncapp.WithConfig(cfg),
		syncapp.WithMeterProvider(tel.MeterProvider()),
		syncapp.WithTracerProvider(tel.TracerProvider()),
		syncapp.WithMetricsHandler(tel.MetricsHandler()),
	}

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return fmt.Errorf("failed to get address flag: %w", err)
	}
	if address != "" {
		opts = append(opts, syncapp.WithAddress(address))
	}

	commentApp, err := syncapp.NewCommentSyncApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- commentApp.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			_ = commentApp.Stop(defaultGracefulTimeout)
			return err
		}
	}

	return commentApp.Stop(defaultGracefulTimeout)
}
