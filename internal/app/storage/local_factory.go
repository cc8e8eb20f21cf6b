package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pagepulse/comment-sync/internal/config"
	"github.com/pagepulse/comment-sync/internal/cursor"
	"github.com/pagepulse/comment-sync/internal/sink"
	"github.com/pagepulse/comment-sync/internal/status"
)

// LocalFactory creates components that need no database pool: Redis, SQLite,
// file and memory cursor stores, and the Sheets sink.
type LocalFactory struct {
	config *config.Config
}

var _ Factory = (*LocalFactory)(nil)

// NewLocalFactory creates a LocalFactory, ensuring the directory of the
// status file exists.
func NewLocalFactory(cfg *config.Config) (*LocalFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Sync.StatusFile != "" {
		dir := filepath.Dir(cfg.Sync.StatusFile)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create status directory %s: %w", dir, err)
		}
	}

	slog.Info("Creating local storage factory",
		"cursor_type", cfg.Cursor.GetType(),
		"sink_type", cfg.Sink.Type)

	return &LocalFactory{config: cfg}, nil
}

// CreateCursorStore creates the configured cursor store
func (l *LocalFactory) CreateCursorStore(ctx context.Context) (cursor.Store, error) {
	slog.Debug("Creating cursor store", "type", l.config.Cursor.GetType())
	return cursor.NewStoreFromConfig(ctx, l.config, nil)
}

// CreateSink creates the configured row sink
func (l *LocalFactory) CreateSink(ctx context.Context) (sink.Sink, error) {
	slog.Debug("Creating sink", "type", l.config.Sink.Type)
	return sink.NewSinkFromConfig(ctx, l.config, nil)
}

// CreateStatusPersistence returns file-backed status persistence when configured
func (l *LocalFactory) CreateStatusPersistence() status.StatusPersistence {
	return newStatusPersistence(l.config)
}

// Cleanup is a no-op; local components release their resources on Close
func (*LocalFactory) Cleanup() {}
