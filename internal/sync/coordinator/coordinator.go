package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pagepulse/comment-sync/internal/config"
	"github.com/pagepulse/comment-sync/internal/status"
	pkgsync "github.com/pagepulse/comment-sync/internal/sync"
	"github.com/pagepulse/comment-sync/internal/telemetry"
)

// Coordinator schedules sync passes in the background
//
//go:generate mockgen -destination=mocks/mock_coordinator.go -package=mocks github.com/pagepulse/comment-sync/internal/sync/coordinator Coordinator
type Coordinator interface {
	// Start runs a pass immediately and then one per interval.
	// Blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop cancels the loop and waits for in-flight passes to return
	Stop() error

	// Status returns a copy of the current sync status
	Status() status.SyncStatus
}

// tickerFunc returns a tick channel and a function stopping it
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager pkgsync.Manager
	config  *config.Config

	tracker     *status.Tracker
	persistence status.StatusPersistence
	persistMu   sync.Mutex

	syncMetrics *telemetry.SyncMetrics

	// Lifecycle management
	lifecycleMu sync.Mutex
	cancelFunc  context.CancelFunc
	done        chan struct{}

	inFlight atomic.Bool
	passes   sync.WaitGroup

	newTicker tickerFunc
	now       func() time.Time
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.syncMetrics = metrics
	}
}

// WithStatusPersistence saves the status after every pass and restores it on Start
func WithStatusPersistence(persistence status.StatusPersistence) Option {
	return func(c *defaultCoordinator) {
		c.persistence = persistence
	}
}

// WithStatusTracker shares a tracker with the manager's phase observer
func WithStatusTracker(tracker *status.Tracker) Option {
	return func(c *defaultCoordinator) {
		if tracker != nil {
			c.tracker = tracker
		}
	}
}

// New creates a new coordinator with injected dependencies
func New(manager pkgsync.Manager, cfg *config.Config, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		manager:   manager,
		config:    cfg,
		tracker:   status.NewTracker(nil),
		done:      make(chan struct{}),
		newTicker: realTicker,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins background sync coordination
func (c *defaultCoordinator) Start(ctx context.Context) error {
	interval := getSyncInterval(&c.config.Sync)
	slog.Info("Starting background sync coordinator",
		"interval", interval,
		"skip_overlapping", c.config.Sync.ShouldSkipOverlappingPasses())

	coordCtx, cancel := context.WithCancel(ctx)
	c.lifecycleMu.Lock()
	c.cancelFunc = cancel
	c.lifecycleMu.Unlock()
	defer func() {
		cancel()
		c.passes.Wait()
		close(c.done)
		slog.Info("Background sync coordinator shutting down")
	}()

	c.restoreStatus(coordCtx)

	ticks, stopTicker := c.newTicker(interval)
	defer stopTicker()

	c.startPass(coordCtx)

	for {
		select {
		case <-ticks:
			c.startPass(coordCtx)
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.lifecycleMu.Lock()
	cancel := c.cancelFunc
	c.lifecycleMu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		// Wait for the loop and its passes to finish
		<-c.done
	}
	return nil
}

// Status returns a copy of the current sync status
func (c *defaultCoordinator) Status() status.SyncStatus {
	return c.tracker.Snapshot()
}

// restoreStatus seeds the tracker from persistence. A pass that was running
// when the previous process exited is reported as failed.
func (c *defaultCoordinator) restoreStatus(ctx context.Context) {
	if c.persistence == nil {
		return
	}

	loaded, err := c.persistence.LoadStatus(ctx)
	if err != nil {
		slog.Warn("Failed to load persisted sync status, starting fresh", "error", err)
		return
	}

	c.tracker.Update(func(s *status.SyncStatus) {
		*s = loaded.Clone()
		if s.Phase.InProgress() {
			s.Phase = status.SyncPhaseFailed
			s.Message = "Previous pass was interrupted"
		}
	})
	slog.Info("Restored sync status", "phase", loaded.Phase, "passes", loaded.PassCount)
}

// startPass launches a pass in its own goroutine, or skips the tick when
// the guard is on and a pass is still running
func (c *defaultCoordinator) startPass(ctx context.Context) {
	guarded := c.config.Sync.ShouldSkipOverlappingPasses()
	if guarded && !c.inFlight.CompareAndSwap(false, true) {
		c.syncMetrics.RecordSkippedTick(ctx)
		snap := c.tracker.Update(func(s *status.SyncStatus) {
			s.SkippedTicks++
		})
		slog.Warn("Previous sync pass still running, skipping tick", "skipped_ticks", snap.SkippedTicks)
		return
	}

	c.passes.Add(1)
	go func() {
		defer c.passes.Done()
		if guarded {
			defer c.inFlight.Store(false)
		}
		c.performSync(ctx)
	}()
}

func (c *defaultCoordinator) persist(ctx context.Context, snap status.SyncStatus) {
	if c.persistence == nil {
		return
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if err := c.persistence.SaveStatus(ctx, &snap); err != nil {
		slog.Error("Failed to persist sync status", "error", err)
	}
}
