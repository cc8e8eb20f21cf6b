package auth

import (
	"context"
	"fmt"

	"github.com/pagepulse/comment-sync/internal/config"
)

// MigrationConnectionString builds a connection string for running schema
// migrations. golang-migrate opens its own connection, so a dynamic token
// is resolved up front and embedded as the password. Without dynamic auth
// the configured static password is used.
func MigrationConnectionString(ctx context.Context, cfg *config.DatabaseConfig) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("database configuration is required")
	}

	if cfg.DynamicAuth == nil {
		return cfg.GetConnectionString()
	}

	token, err := ResolveAuthToken(ctx, cfg, cfg.User)
	if err != nil {
		return "", fmt.Errorf("failed to resolve auth token for migration user: %w", err)
	}

	return cfg.BuildConnectionStringWithAuth(token), nil
}
