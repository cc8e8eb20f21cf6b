package coordinator

import (
	"log/slog"
	"time"

	"github.com/pagepulse/comment-sync/internal/config"
)

// getSyncInterval returns the configured interval, warning when it cannot be parsed
func getSyncInterval(cfg *config.SyncConfig) time.Duration {
	interval := cfg.GetInterval()
	if cfg.Interval != "" {
		if parsed, err := time.ParseDuration(cfg.Interval); err != nil || parsed <= 0 {
			slog.Warn("Invalid sync interval, using default",
				"interval", cfg.Interval,
				"default", interval)
		}
	}
	return interval
}
