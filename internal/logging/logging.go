// Package logging builds the process-wide slog logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
)

// Output formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Settings selects the level and format of the logger
type Settings struct {
	Level  slog.Level
	Format string
}

// SettingsFromEnv reads <prefix>_LOG_LEVEL and <prefix>_LOG_FORMAT, falling
// back to the unprefixed LOG_LEVEL and LOG_FORMAT. Unknown values yield info
// and JSON; the second return lists the values that were ignored.
func SettingsFromEnv(prefix string) (Settings, []string) {
	prefixed := viper.New()
	prefixed.SetEnvPrefix(prefix)
	prefixed.AutomaticEnv()

	plain := viper.New()
	plain.AutomaticEnv()

	lookup := func(key string) string {
		if v := prefixed.GetString(key); v != "" {
			return v
		}
		return plain.GetString(key)
	}

	var ignored []string
	level, ok := parseLevel(lookup("LOG_LEVEL"))
	if !ok {
		ignored = append(ignored, "LOG_LEVEL="+lookup("LOG_LEVEL"))
	}

	format := strings.ToLower(lookup("LOG_FORMAT"))
	switch format {
	case FormatText, FormatJSON:
	case "":
		format = FormatJSON
	default:
		ignored = append(ignored, "LOG_FORMAT="+format)
		format = FormatJSON
	}

	return Settings{Level: level, Format: format}, ignored
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New returns a logger writing to w that adds trace_id and span_id to
// records logged with a context carrying a sampled span.
func New(w io.Writer, s Settings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.Level}

	var h slog.Handler
	if s.Format == FormatText {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&traceHandler{Handler: h})
}

type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}
