package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pagepulse/comment-sync/internal/status"
	pkgsync "github.com/pagepulse/comment-sync/internal/sync"
	"github.com/pagepulse/comment-sync/internal/telemetry"
)

// performSync executes one pass and records its outcome in status and metrics
func (c *defaultCoordinator) performSync(ctx context.Context) {
	startTime := c.now()

	var passNumber int64
	c.tracker.Update(func(s *status.SyncStatus) {
		s.Phase = status.SyncPhaseFetching
		s.Message = "Sync in progress"
		s.LastAttempt = &startTime
		s.PassCount++
		passNumber = s.PassCount
	})
	slog.Debug("Starting sync pass", "pass", passNumber)

	result, syncErr := c.manager.PerformSync(ctx)
	duration := c.now().Sub(startTime)

	var snap status.SyncStatus
	if syncErr != nil {
		snap = c.tracker.Update(func(s *status.SyncStatus) {
			s.Phase = status.SyncPhaseFailed
			s.Message = syncErr.Message
			s.AttemptCount++
			s.LastDurationMillis = duration.Milliseconds()
		})
		slog.Error("Sync pass failed",
			"pass", passNumber,
			"reason", syncErr.Reason,
			"error", syncErr.Message,
			"attempts", snap.AttemptCount)
		c.syncMetrics.RecordPassDuration(ctx, duration, false)
	} else {
		snap = c.tracker.Update(func(s *status.SyncStatus) {
			s.Phase = status.SyncPhaseComplete
			s.Message = completionMessage(result)
			s.LastSuccess = &startTime
			s.AttemptCount = 0
			s.LastRowsEmitted = result.RowsEmitted
			s.LastRowsFailed = result.RowsFailed
			s.TotalRowsEmitted += int64(result.RowsEmitted)
			s.LastDurationMillis = duration.Milliseconds()
			if result.Committed {
				s.LastCommittedCursor = result.Commit.Value
			}
		})
		c.syncMetrics.RecordPassDuration(ctx, duration, true)
		c.syncMetrics.RecordRows(ctx, result.RowsEmitted, result.RowsFailed)
		c.syncMetrics.RecordCommit(ctx, commitOutcome(result))
	}

	c.persist(ctx, snap)
}

func completionMessage(result *pkgsync.Result) string {
	if result.RowsEmitted == 0 && result.RowsFailed == 0 {
		return "Sync completed: no new comments"
	}
	msg := fmt.Sprintf("Sync completed: %d rows emitted, %d failed", result.RowsEmitted, result.RowsFailed)
	if result.CommitErr != nil {
		msg += ", cursor commit failed"
	}
	return msg
}

// commitOutcome maps a pass result to the commit outcome metric label
func commitOutcome(result *pkgsync.Result) string {
	switch {
	case result.RowsEmitted == 0:
		return telemetry.CommitOutcomeSkipped
	case result.CommitErr != nil:
		return telemetry.CommitOutcomeError
	case result.Commit.Fallback:
		return telemetry.CommitOutcomeFallback
	default:
		return telemetry.CommitOutcomeLeased
	}
}
