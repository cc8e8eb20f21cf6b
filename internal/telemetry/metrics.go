package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/pagepulse/comment-sync/sync"
)

// Commit outcomes recorded by RecordCommit
const (
	CommitOutcomeLeased   = "leased"
	CommitOutcomeFallback = "fallback"
	CommitOutcomeSkipped  = "skipped"
	CommitOutcomeError    = "error"
)

// SyncMetrics holds the OpenTelemetry instruments for sync passes
type SyncMetrics struct {
	passDuration metric.Float64Histogram
	rows         metric.Int64Counter
	commits      metric.Int64Counter
	skippedTicks metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	passDuration, err := meter.Float64Histogram(
		"comment_sync_pass_duration_seconds",
		metric.WithDescription("Duration of sync passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	rows, err := meter.Int64Counter(
		"comment_sync_rows_total",
		metric.WithDescription("Rows handed to the sink, by result"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	commits, err := meter.Int64Counter(
		"comment_sync_cursor_commits_total",
		metric.WithDescription("Cursor commits, by outcome"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, err
	}

	skippedTicks, err := meter.Int64Counter(
		"comment_sync_skipped_ticks_total",
		metric.WithDescription("Ticks skipped because a pass was still running"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		passDuration: passDuration,
		rows:         rows,
		commits:      commits,
		skippedTicks: skippedTicks,
	}, nil
}

// RecordPassDuration records the duration of one pass
func (m *SyncMetrics) RecordPassDuration(ctx context.Context, duration time.Duration, success bool) {
	if m == nil || m.passDuration == nil {
		return
	}
	m.passDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordRows records rows emitted and rows that failed to append in one pass
func (m *SyncMetrics) RecordRows(ctx context.Context, emitted, failed int) {
	if m == nil || m.rows == nil {
		return
	}
	if emitted > 0 {
		m.rows.Add(ctx, int64(emitted), metric.WithAttributes(attribute.String("result", "emitted")))
	}
	if failed > 0 {
		m.rows.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("result", "failed")))
	}
}

// RecordCommit records the outcome of a cursor commit
func (m *SyncMetrics) RecordCommit(ctx context.Context, outcome string) {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSkippedTick records a tick that found the previous pass still running
func (m *SyncMetrics) RecordSkippedTick(ctx context.Context) {
	if m == nil || m.skippedTicks == nil {
		return
	}
	m.skippedTicks.Add(ctx, 1)
}
