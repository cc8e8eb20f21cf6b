package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	dbLoadQuery = `SELECT last_sync_time FROM sync_cursor WHERE name = $1`

	dbOverwriteQuery = `
INSERT INTO sync_cursor (name, last_sync_time, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE
SET last_sync_time = EXCLUDED.last_sync_time, updated_at = now()`

	dbIfGreaterQuery = dbOverwriteQuery + `
WHERE sync_cursor.last_sync_time < EXCLUDED.last_sync_time`

	// The lease row is only replaced once it has expired, so RowsAffected is 1
	// exactly when this caller became the owner.
	dbAcquireQuery = `
INSERT INTO sync_cursor_lease (name, owner_token, acquired_at, expires_at)
VALUES ($1, $2, now(), now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (name) DO UPDATE
SET owner_token = EXCLUDED.owner_token,
    acquired_at = EXCLUDED.acquired_at,
    expires_at  = EXCLUDED.expires_at
WHERE sync_cursor_lease.expires_at <= now()`

	dbReleaseQuery = `DELETE FROM sync_cursor_lease WHERE name = $1 AND owner_token = $2`

	dbActiveLeaseQuery = `
SELECT owner_token, acquired_at, expires_at
FROM sync_cursor_lease
WHERE name = $1 AND expires_at > now()`
)

type dbBackend struct {
	pool    *pgxpool.Pool
	key     string
	lockKey string
}

// NewDBBackend returns a Backend storing the cursor in the sync_cursor table and the
// lease in sync_cursor_lease. Lease expiry is evaluated with the database clock.
func NewDBBackend(pool *pgxpool.Pool, key, lockKey string) Backend {
	return &dbBackend{
		pool:    pool,
		key:     key,
		lockKey: lockKey,
	}
}

func (d *dbBackend) Load(ctx context.Context) (uint64, bool, error) {
	var value int64
	err := d.pool.QueryRow(ctx, dbLoadQuery, d.key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if value < 0 {
		return 0, true, nil
	}
	return uint64(value), true, nil
}

func (d *dbBackend) Save(ctx context.Context, value uint64, mode WriteMode) (bool, error) {
	query := dbOverwriteQuery
	if mode == IfGreater {
		query = dbIfGreaterQuery
	}
	tag, err := d.pool.Exec(ctx, query, d.key, int64(value))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (d *dbBackend) TryAcquire(ctx context.Context, lease Lease) (bool, error) {
	tag, err := d.pool.Exec(ctx, dbAcquireQuery, d.lockKey, lease.OwnerToken, lease.TTL.Milliseconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (d *dbBackend) Release(ctx context.Context, ownerToken string) (bool, error) {
	tag, err := d.pool.Exec(ctx, dbReleaseQuery, d.lockKey, ownerToken)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (d *dbBackend) ActiveLease(ctx context.Context) (*Lease, error) {
	var lease Lease
	var expiresAt time.Time
	err := d.pool.QueryRow(ctx, dbActiveLeaseQuery, d.lockKey).Scan(&lease.OwnerToken, &lease.AcquiredAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	lease.TTL = expiresAt.Sub(lease.AcquiredAt)
	return &lease, nil
}

func (d *dbBackend) Clear(ctx context.Context) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM sync_cursor WHERE name = $1`, d.key); err != nil {
		return fmt.Errorf("failed to delete cursor: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sync_cursor_lease WHERE name = $1`, d.lockKey); err != nil {
		return fmt.Errorf("failed to delete cursor lease: %w", err)
	}

	return tx.Commit(ctx)
}

func (d *dbBackend) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Close is a no-op: the pool is owned by the storage factory.
func (*dbBackend) Close() error {
	return nil
}
