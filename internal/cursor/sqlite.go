package cursor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sync_cursor (
	name TEXT PRIMARY KEY,
	last_sync_time INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_cursor_lease (
	name TEXT PRIMARY KEY,
	owner_token TEXT NOT NULL,
	acquired_at_ms INTEGER NOT NULL,
	expires_at_ms INTEGER NOT NULL
);`

type sqliteBackend struct {
	db      *sql.DB
	key     string
	lockKey string
	now     func() time.Time
}

// OpenSQLiteBackend opens (creating if needed) a SQLite database at path and returns a
// Backend on it. Several processes on one host may share the file.
func OpenSQLiteBackend(ctx context.Context, path, key, lockKey string) (Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite cursor: path is empty")
	}

	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{"busy_timeout(5000)", "journal_mode(WAL)"},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cursor: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite cursor: create schema: %w", err)
	}

	return &sqliteBackend{
		db:      db,
		key:     key,
		lockKey: lockKey,
		now:     time.Now,
	}, nil
}

func (s *sqliteBackend) Load(ctx context.Context) (uint64, bool, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT last_sync_time FROM sync_cursor WHERE name = ?`, s.key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
	if value < 0 {
		return 0, true, nil
	}
	return uint64(value), true, nil
}

func (s *sqliteBackend) Save(ctx context.Context, value uint64, mode WriteMode) (bool, error) {
	query := `INSERT INTO sync_cursor(name, last_sync_time, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET last_sync_time = excluded.last_sync_time, updated_at = excluded.updated_at`
	if mode == IfGreater {
		query += ` WHERE sync_cursor.last_sync_time < excluded.last_sync_time`
	}

	res, err := s.db.ExecContext(ctx, query, s.key, int64(value), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("save cursor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save cursor: rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *sqliteBackend) TryAcquire(ctx context.Context, lease Lease) (bool, error) {
	acquiredAt := lease.AcquiredAt.UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_cursor_lease(name, owner_token, acquired_at_ms, expires_at_ms)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   owner_token = excluded.owner_token,
		   acquired_at_ms = excluded.acquired_at_ms,
		   expires_at_ms = excluded.expires_at_ms
		 WHERE sync_cursor_lease.expires_at_ms <= excluded.acquired_at_ms`,
		s.lockKey,
		lease.OwnerToken,
		acquiredAt,
		lease.ExpiresAt().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease: rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *sqliteBackend) Release(ctx context.Context, ownerToken string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_cursor_lease WHERE name = ? AND owner_token = ?`, s.lockKey, ownerToken)
	if err != nil {
		return false, fmt.Errorf("release lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release lease: rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *sqliteBackend) ActiveLease(ctx context.Context) (*Lease, error) {
	var (
		token                 string
		acquiredMs, expiresMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_token, acquired_at_ms, expires_at_ms FROM sync_cursor_lease WHERE name = ? AND expires_at_ms > ?`,
		s.lockKey, s.now().UnixMilli(),
	).Scan(&token, &acquiredMs, &expiresMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read lease: %w", err)
	}
	return &Lease{
		OwnerToken: token,
		AcquiredAt: time.UnixMilli(acquiredMs),
		TTL:        time.Duration(expiresMs-acquiredMs) * time.Millisecond,
	}, nil
}

func (s *sqliteBackend) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear cursor: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_cursor WHERE name = ?`, s.key); err != nil {
		return fmt.Errorf("clear cursor: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_cursor_lease WHERE name = ?`, s.lockKey); err != nil {
		return fmt.Errorf("clear cursor lease: %w", err)
	}
	return tx.Commit()
}

func (s *sqliteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqliteBackend) Close() error {
	return s.db.Close()
}
