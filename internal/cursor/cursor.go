// Package cursor persists the shared "last successful sync" watermark and
// coordinates writes to it across instances with a short-lived lease.
package cursor

import (
	"context"
	"errors"
	"time"
)

// DefaultLeaseTTL bounds how long a crashed lease holder can block other committers.
const DefaultLeaseTTL = 30 * time.Second

// ErrUnknownBackend is returned by the factory for an unsupported store type.
var ErrUnknownBackend = errors.New("unknown cursor store type")

// WriteMode selects how a Backend applies a new cursor value.
type WriteMode int

const (
	// Overwrite replaces the stored value unconditionally.
	Overwrite WriteMode = iota
	// IfGreater replaces the stored value only when the new value is strictly greater.
	IfGreater
)

// String returns the mode name used in logs.
func (m WriteMode) String() string {
	if m == IfGreater {
		return "if-greater"
	}
	return "overwrite"
}

// Lease is the lock record guarding a cursor write.
type Lease struct {
	OwnerToken string        `json:"ownerToken"`
	AcquiredAt time.Time     `json:"acquiredAt"`
	TTL        time.Duration `json:"ttl"`
}

// ExpiresAt returns the instant after which the lease may be taken by anyone.
func (l Lease) ExpiresAt() time.Time {
	return l.AcquiredAt.Add(l.TTL)
}

// Expired reports whether the lease is no longer held at now.
func (l Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt())
}

// Backend is the storage primitive a Store is built on. Implementations must make
// TryAcquire a set-if-absent-or-expired operation and Release a delete that only
// succeeds for the current owner.
//
//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks github.com/pagepulse/comment-sync/internal/cursor Backend
type Backend interface {
	// Load returns the stored value; found is false when no value was ever written.
	Load(ctx context.Context) (value uint64, found bool, err error)
	// Save writes value according to mode and reports whether the stored value changed.
	Save(ctx context.Context, value uint64, mode WriteMode) (written bool, err error)
	// TryAcquire stores lease if no unexpired lease exists. It never blocks waiting for one.
	TryAcquire(ctx context.Context, lease Lease) (bool, error)
	// Release deletes the lease if it is still owned by ownerToken.
	Release(ctx context.Context, ownerToken string) (bool, error)
	// ActiveLease returns the unexpired lease, or nil.
	ActiveLease(ctx context.Context) (*Lease, error)
	// Clear removes the value and any lease.
	Clear(ctx context.Context) error
	// Ping probes the underlying store.
	Ping(ctx context.Context) error
	// Close releases resources owned by the backend.
	Close() error
}

// CommitResult describes how a commit was applied.
type CommitResult struct {
	Value         uint64 `json:"value"`
	LeaseAcquired bool   `json:"leaseAcquired"`
	// Fallback is true when the lease was held elsewhere and the write went unguarded.
	Fallback bool `json:"fallback"`
	// Written is false when a monotonic store refused to move the cursor backwards.
	Written bool `json:"written"`
}

// Status is a point-in-time view of the store for operators.
type Status struct {
	Healthy     bool   `json:"storeHealthy"`
	Value       uint64 `json:"timestamp"`
	HasValue    bool   `json:"hasTimestamp"`
	LeaseActive bool   `json:"leaseActive"`

	// ReadErr is set when the value could not be loaded; Value and HasValue are then unknown.
	ReadErr error `json:"-"`
}

// Store is the cursor API used by the sync orchestrator and the admin surface.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/pagepulse/comment-sync/internal/cursor Store
type Store interface {
	// Get returns the committed value, or 0 when it was never set or cannot be read.
	Get(ctx context.Context) uint64
	// Commit advances the cursor under the lease, falling back to an unguarded
	// write when another owner holds it.
	Commit(ctx context.Context, epochSeconds uint64) (CommitResult, error)
	// Overwrite is Commit without the monotonic guard. It can move the cursor backwards.
	Overwrite(ctx context.Context, epochSeconds uint64) (CommitResult, error)
	// Reset clears the value and the lease.
	Reset(ctx context.Context) error
	// HealthCheck reports whether the store is reachable.
	HealthCheck(ctx context.Context) bool
	// Status returns the current value, health and lease state.
	Status(ctx context.Context) Status
	// Close releases the underlying backend.
	Close() error
}
