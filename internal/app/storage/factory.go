// Package storage creates the storage-dependent components of the service.
// A Factory builds the cursor store, the row sink and the status persistence
// as a family so that components sharing PostgreSQL also share one pool.
package storage

import (
	"context"
	"fmt"

	"github.com/pagepulse/comment-sync/internal/config"
	"github.com/pagepulse/comment-sync/internal/cursor"
	"github.com/pagepulse/comment-sync/internal/sink"
	"github.com/pagepulse/comment-sync/internal/status"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks github.com/pagepulse/comment-sync/internal/app/storage Factory

// Factory creates storage-dependent components as a family.
//
// It also owns shared storage resources such as the database pool.
type Factory interface {
	// CreateCursorStore creates the cursor store selected by cursor.type
	CreateCursorStore(ctx context.Context) (cursor.Store, error)

	// CreateSink creates the row sink selected by sink.type
	CreateSink(ctx context.Context) (sink.Sink, error)

	// CreateStatusPersistence returns the sync status persistence, or nil
	// when no status file is configured
	CreateStatusPersistence() status.StatusPersistence

	// Cleanup releases resources held by this factory.
	// Components created by the factory must be closed first.
	Cleanup()
}

// NewStorageFactory returns a DatabaseFactory when any component is configured
// to use PostgreSQL and a LocalFactory otherwise.
func NewStorageFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.NeedsDatabase() {
		return NewDatabaseFactory(ctx, cfg)
	}
	return NewLocalFactory(cfg)
}

func newStatusPersistence(cfg *config.Config) status.StatusPersistence {
	if cfg.Sync.StatusFile == "" {
		return nil
	}
	return status.NewFileStatusPersistence(cfg.Sync.StatusFile)
}
