package cursor

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pagepulse/comment-sync/internal/config"
)

// NewStoreFromConfig creates the cursor Store selected by cfg.Cursor.Type.
//
// For database storage the pool parameter must not be nil; the pool stays owned
// by the caller and is not closed by Store.Close.
func NewStoreFromConfig(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (Store, error) {
	backend, err := newBackend(ctx, &cfg.Cursor, pool)
	if err != nil {
		return nil, err
	}

	return NewStore(backend,
		WithInstanceID(cfg.GetInstanceID()),
		WithLeaseTTL(cfg.Cursor.GetLockTTL()),
		WithMonotonicCommits(cfg.Cursor.Monotonic),
	), nil
}

func newBackend(ctx context.Context, cfg *config.CursorConfig, pool *pgxpool.Pool) (Backend, error) {
	switch cfg.GetType() {
	case config.CursorTypeRedis:
		client, err := newRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisBackend(client, cfg.GetKey(), cfg.GetLockKey()), nil
	case config.CursorTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required when cursor type is database")
		}
		return NewDBBackend(pool, cfg.GetKey(), cfg.GetLockKey()), nil
	case config.CursorTypeSQLite:
		return OpenSQLiteBackend(ctx, cfg.GetSQLitePath(), cfg.GetKey(), cfg.GetLockKey())
	case config.CursorTypeFile:
		return NewFileBackend(cfg.GetFilePath())
	case config.CursorTypeMemory:
		return NewMemoryBackend(nil), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Type)
	}
}

func newRedisClient(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis configuration is required when cursor type is redis")
	}

	password, err := cfg.GetPassword()
	if err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return redis.NewClient(opts), nil
}
