// Package main is the entry point of the comment-sync binary.
package main

import (
	"log/slog"
	"os"

	"github.com/pagepulse/comment-sync/cmd/comment-sync/app"
	"github.com/pagepulse/comment-sync/internal/config"
	"github.com/pagepulse/comment-sync/internal/logging"
)

func main() {
	settings, ignored := logging.SettingsFromEnv(config.EnvPrefix)

	// stderr keeps stdout clean for command output such as `cursor get -o json`
	slog.SetDefault(logging.New(os.Stderr, settings))
	for _, v := range ignored {
		slog.Warn("Ignoring invalid logging setting", "value", v)
	}

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
