package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_DefaultsToIdle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SyncPhaseIdle, NewTracker(nil).Snapshot().Phase)
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)
	initial := &SyncStatus{Phase: SyncPhaseComplete, LastSuccess: &now}
	tracker := NewTracker(initial)

	// Mutating the seed does not leak into the tracker.
	initial.Phase = SyncPhaseFailed
	snap := tracker.Snapshot()
	assert.Equal(t, SyncPhaseComplete, snap.Phase)

	*snap.LastSuccess = now.Add(time.Hour)
	assert.Equal(t, now, *tracker.Snapshot().LastSuccess)
}

func TestTracker_ObserveAndUpdate(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(nil)
	tracker.Observe(context.Background(), SyncPhaseEmitting)
	assert.True(t, tracker.Snapshot().Phase.InProgress())

	got := tracker.Update(func(s *SyncStatus) {
		s.Phase = SyncPhaseComplete
		s.PassCount++
	})
	assert.Equal(t, SyncPhaseComplete, got.Phase)
	assert.Equal(t, int64(1), got.PassCount)
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(nil)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Update(func(s *SyncStatus) { s.SkippedTicks++ })
			_ = tracker.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), tracker.Snapshot().SkippedTicks)
}
