package app

import (
	"github.com/pagepulse/comment-sync/internal/cursor"
	"github.com/pagepulse/comment-sync/internal/sink"
	"github.com/pagepulse/comment-sync/internal/status"
	"github.com/pagepulse/comment-sync/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator schedules sync passes
	SyncCoordinator coordinator.Coordinator

	// CursorStore holds the shared last-sync timestamp
	CursorStore cursor.Store

	// Sink receives the emitted rows
	Sink sink.Sink

	// StatusTracker is shared by the sync manager and the coordinator
	StatusTracker *status.Tracker
}
