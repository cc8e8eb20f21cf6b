package status

import (
	"context"
	"sync"
)

// Tracker holds the live SyncStatus of this instance behind a mutex
type Tracker struct {
	mu     sync.RWMutex
	status SyncStatus
}

// NewTracker creates a tracker seeded with initial, or an idle status when nil
func NewTracker(initial *SyncStatus) *Tracker {
	t := &Tracker{status: SyncStatus{Phase: SyncPhaseIdle}}
	if initial != nil {
		t.status = initial.Clone()
	}
	return t
}

// Observe records a phase transition of the running pass
func (t *Tracker) Observe(_ context.Context, phase SyncPhase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Phase = phase
}

// Update applies fn to the status under the lock and returns a copy of the result
func (t *Tracker) Update(fn func(s *SyncStatus)) SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.status)
	return t.status.Clone()
}

// Snapshot returns a copy of the current status
func (t *Tracker) Snapshot() SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.Clone()
}
