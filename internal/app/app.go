// Package app assembles the comment sync service and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pagepulse/comment-sync/internal/app/storage"
	"github.com/pagepulse/comment-sync/internal/config"
)

// CommentSyncApp runs the sync coordinator and the optional admin HTTP server.
// It provides lifecycle management and graceful shutdown capabilities.
type CommentSyncApp struct {
	config         *config.Config
	components     *AppComponents
	storageFactory storage.Factory
	httpServer     *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	started    atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once
}

// Start runs the sync coordinator and the admin server.
// It blocks until both have stopped or the HTTP server fails.
func (app *CommentSyncApp) Start() error {
	if !app.started.CompareAndSwap(false, true) {
		return fmt.Errorf("app already started")
	}
	if app.done != nil {
		defer close(app.done)
	}

	g, ctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		if err := app.components.SyncCoordinator.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Sync coordinator failed", "error", err)
		}
		return nil
	})

	if app.httpServer != nil {
		g.Go(func() error {
			slog.Info("Server listening", "address", app.httpServer.Addr)
			if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server failed: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Stop stops the coordinator, waits for an in-flight pass, shuts the HTTP
// server down within timeout and finally closes the cursor store and sink.
func (app *CommentSyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down...")

	if err := app.components.SyncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var shutdownErr error
	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("server forced to shutdown: %w", err)
		}
	}

	if app.started.Load() && app.done != nil {
		select {
		case <-app.done:
		case <-shutdownCtx.Done():
			slog.Warn("Timed out waiting for the app to stop")
		}
	}

	app.closeOnce.Do(func() {
		if err := closeComponents(app.components, app.storageFactory); err != nil {
			slog.Error("Failed to close components", "error", err)
		}
	})

	if shutdownErr != nil {
		return shutdownErr
	}

	slog.Info("Shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *CommentSyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server, or nil when the admin surface is disabled
func (app *CommentSyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired application components
func (app *CommentSyncApp) Components() *AppComponents {
	return app.components
}
