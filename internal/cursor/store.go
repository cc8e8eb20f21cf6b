package cursor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// StoreOption configures a leased store
type StoreOption func(*leasedStore)

// WithInstanceID prefixes owner tokens so lease holders can be traced to an instance.
func WithInstanceID(id string) StoreOption {
	return func(s *leasedStore) {
		s.instanceID = id
	}
}

// WithLeaseTTL sets the lease lifetime.
func WithLeaseTTL(ttl time.Duration) StoreOption {
	return func(s *leasedStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMonotonicCommits makes Commit refuse to move the cursor backwards, on both
// the leased and the fallback path.
func WithMonotonicCommits(enabled bool) StoreOption {
	return func(s *leasedStore) {
		s.monotonic = enabled
	}
}

// WithClock overrides the time source used for lease timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *leasedStore) {
		s.now = now
	}
}

// WithTokenGenerator overrides owner token generation.
func WithTokenGenerator(gen func() string) StoreOption {
	return func(s *leasedStore) {
		s.newToken = gen
	}
}

type leasedStore struct {
	backend    Backend
	instanceID string
	ttl        time.Duration
	monotonic  bool
	now        func() time.Time
	newToken   func() string
}

// NewStore wraps a Backend with the lease-guarded commit protocol.
func NewStore(backend Backend, opts ...StoreOption) Store {
	s := &leasedStore{
		backend: backend,
		ttl:     DefaultLeaseTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newToken == nil {
		s.newToken = func() string {
			if s.instanceID == "" {
				return uuid.NewString()
			}
			return s.instanceID + "/" + uuid.NewString()
		}
	}
	return s
}

func (s *leasedStore) Get(ctx context.Context) uint64 {
	value, _, err := s.backend.Load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read cursor, resyncing from the beginning", "error", err)
		return 0
	}
	return value
}

func (s *leasedStore) Commit(ctx context.Context, epochSeconds uint64) (CommitResult, error) {
	mode := Overwrite
	if s.monotonic {
		mode = IfGreater
	}
	return s.commit(ctx, epochSeconds, mode)
}

func (s *leasedStore) Overwrite(ctx context.Context, epochSeconds uint64) (CommitResult, error) {
	return s.commit(ctx, epochSeconds, Overwrite)
}

func (s *leasedStore) commit(ctx context.Context, value uint64, mode WriteMode) (CommitResult, error) {
	result := CommitResult{Value: value}
	lease := Lease{
		OwnerToken: s.newToken(),
		AcquiredAt: s.now(),
		TTL:        s.ttl,
	}

	acquired, err := s.backend.TryAcquire(ctx, lease)
	if err != nil {
		return result, fmt.Errorf("failed to acquire cursor lease: %w", err)
	}

	if acquired {
		result.LeaseAcquired = true
		defer s.release(ctx, lease.OwnerToken)
	} else {
		// Lease held elsewhere: fall back to an unguarded write.
		result.Fallback = true
		slog.WarnContext(ctx, "Cursor lease held by another owner, writing without lease",
			"value", value,
			"mode", mode.String(),
		)
	}

	written, err := s.backend.Save(ctx, value, mode)
	if err != nil {
		return result, fmt.Errorf("failed to write cursor: %w", err)
	}
	result.Written = written

	if !written {
		slog.InfoContext(ctx, "Cursor not moved backwards", "value", value)
	} else {
		slog.DebugContext(ctx, "Cursor committed",
			"value", value,
			"lease_acquired", result.LeaseAcquired,
		)
	}

	return result, nil
}

func (s *leasedStore) release(ctx context.Context, token string) {
	// Release even if the caller's context was cancelled mid-commit.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	released, err := s.backend.Release(releaseCtx, token)
	if err != nil {
		slog.WarnContext(ctx, "Failed to release cursor lease", "error", err)
		return
	}
	if !released {
		slog.WarnContext(ctx, "Cursor lease expired before release and is now held by another owner")
	}
}

func (s *leasedStore) Reset(ctx context.Context) error {
	if err := s.backend.Clear(ctx); err != nil {
		return fmt.Errorf("failed to reset cursor: %w", err)
	}
	slog.InfoContext(ctx, "Cursor reset")
	return nil
}

func (s *leasedStore) HealthCheck(ctx context.Context) bool {
	if err := s.backend.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "Cursor store health check failed", "error", err)
		return false
	}
	return true
}

func (s *leasedStore) Status(ctx context.Context) Status {
	st := Status{Healthy: s.HealthCheck(ctx)}

	value, found, err := s.backend.Load(ctx)
	if err != nil {
		st.ReadErr = err
	} else {
		st.Value = value
		st.HasValue = found
	}

	lease, err := s.backend.ActiveLease(ctx)
	if err == nil {
		st.LeaseActive = lease != nil
	}

	return st
}

func (s *leasedStore) Close() error {
	return s.backend.Close()
}
