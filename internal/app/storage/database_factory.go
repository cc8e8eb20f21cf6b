package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagepulse/comment-sync/internal/app/storage/auth"
	"github.com/pagepulse/comment-sync/internal/config"
	"github.com/pagepulse/comment-sync/internal/cursor"
	"github.com/pagepulse/comment-sync/internal/sink"
	"github.com/pagepulse/comment-sync/internal/status"
)

// DatabaseFactory creates components that share a PostgreSQL connection pool.
// Components not configured for the database are still created, without the pool.
type DatabaseFactory struct {
	config *config.Config
	pool   *pgxpool.Pool
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory",
		"host", cfg.Database.Host,
		"database", cfg.Database.Database)

	pool, err := buildDatabaseConnectionPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	return &DatabaseFactory{
		config: cfg,
		pool:   pool,
	}, nil
}

// NewDatabaseFactoryWithPool creates a factory around an existing pool.
// The factory takes ownership of the pool and closes it in Cleanup.
func NewDatabaseFactoryWithPool(cfg *config.Config, pool *pgxpool.Pool) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	return &DatabaseFactory{config: cfg, pool: pool}, nil
}

// CreateCursorStore creates the configured cursor store on the shared pool
func (d *DatabaseFactory) CreateCursorStore(ctx context.Context) (cursor.Store, error) {
	slog.Debug("Creating cursor store", "type", d.config.Cursor.GetType())
	return cursor.NewStoreFromConfig(ctx, d.config, d.pool)
}

// CreateSink creates the configured row sink on the shared pool
func (d *DatabaseFactory) CreateSink(ctx context.Context) (sink.Sink, error) {
	slog.Debug("Creating sink", "type", d.config.Sink.Type)
	return sink.NewSinkFromConfig(ctx, d.config, d.pool)
}

// CreateStatusPersistence returns file-backed status persistence when configured
func (d *DatabaseFactory) CreateStatusPersistence() status.StatusPersistence {
	return newStatusPersistence(d.config)
}

// Cleanup closes the database connection pool.
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}

// buildDatabaseConnectionPool creates a database connection pool with proper configuration.
func buildDatabaseConnectionPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := buildPoolConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	slog.Info("Database connection pool created successfully")
	return pool, nil
}

func buildPoolConfig(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build database connection string: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connMaxLifetime: %w", err)
		}
		poolConfig.MaxConnLifetime = lifetime
	}

	if cfg.DynamicAuth != nil {
		beforeConnect, err := auth.NewDynamicAuth(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure dynamic database auth: %w", err)
		}
		poolConfig.BeforeConnect = beforeConnect
		slog.Info("Dynamic database authentication enabled")
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// Lease expiry and appended_at are rendered in UTC
		_, err := conn.Exec(ctx, "SET TIME ZONE 'UTC'")
		return err
	}

	return poolConfig, nil
}
