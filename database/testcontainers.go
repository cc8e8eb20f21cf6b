package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const testImage = "postgres:16-alpine"

// quietLogger drops testcontainers output
type quietLogger struct{}

func (quietLogger) Printf(string, ...any) {}

// SetupTestDB starts a throwaway Postgres container with the schema applied
// and returns a pool on it plus its connection string. Both are released when
// the test ends. Tests calling it are skipped under -short.
func SetupTestDB(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, testImage,
		postgres.WithDatabase("comments"),
		postgres.WithUsername("sync"),
		postgres.WithPassword("sync"),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(quietLogger{}),
	)
	tc.CleanupContainer(t, container)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, MigrateUp(connString))

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool, connString
}
