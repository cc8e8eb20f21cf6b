// Package coordinator schedules sync passes in the background.
//
// It sits on top of sync.Manager and handles:
//
//   - An initial pass on Start, then one pass per configured interval
//   - Skipping ticks while a pass is still running (sync.skipOverlappingPasses)
//   - Thread-safe status tracking, optionally persisted to a JSON file
//   - Pass metrics (duration, rows, commit outcome, skipped ticks)
//   - Graceful shutdown that waits for in-flight passes
//
// # Usage Example
//
//	tracker := status.NewTracker(nil)
//	manager := sync.NewDefaultSyncManager(src, store, classifier, rowSink,
//	    sync.WithPhaseObserver(tracker.Observe))
//	coord := coordinator.New(manager, cfg,
//	    coordinator.WithStatusTracker(tracker),
//	    coordinator.WithStatusPersistence(status.NewFileStatusPersistence(cfg.Sync.StatusFile)))
//
//	go coord.Start(ctx)
//	defer coord.Stop()
//
// # Error Handling
//
// A failed pass is logged, the status moves to Failed and the next tick
// tries again. Status persistence errors are logged and never stop the loop.
package coordinator
