package cursor_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pagepulse/comment-sync/internal/cursor"
	"github.com/pagepulse/comment-sync/internal/cursor/mocks"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStore_GetUnsetReturnsZero(t *testing.T) {
	t.Parallel()

	store := cursor.NewStore(cursor.NewMemoryBackend(nil))
	assert.Equal(t, uint64(0), store.Get(context.Background()))
}

func TestStore_GetFailsOpen(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().Load(gomock.Any()).Return(uint64(0), false, errors.New("connection refused"))

	store := cursor.NewStore(backend)
	assert.Equal(t, uint64(0), store.Get(context.Background()))
}

func TestStore_CommitUnderLease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	backend := cursor.NewMemoryBackend(clock.Now)
	store := cursor.NewStore(backend, cursor.WithClock(clock.Now), cursor.WithInstanceID("node-a"))

	result, err := store.Commit(ctx, 1700000000)
	require.NoError(t, err)
	assert.True(t, result.LeaseAcquired)
	assert.False(t, result.Fallback)
	assert.True(t, result.Written)
	assert.Equal(t, uint64(1700000000), store.Get(ctx))

	lease, err := backend.ActiveLease(ctx)
	require.NoError(t, err)
	assert.Nil(t, lease, "lease must be released after commit")
}

func TestStore_CommitFallsBackWhenLeaseHeld(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	backend := cursor.NewMemoryBackend(clock.Now)
	store := cursor.NewStore(backend, cursor.WithClock(clock.Now))

	foreign := cursor.Lease{OwnerToken: "other-instance", AcquiredAt: clock.Now(), TTL: 30 * time.Second}
	acquired, err := backend.TryAcquire(ctx, foreign)
	require.NoError(t, err)
	require.True(t, acquired)

	result, err := store.Commit(ctx, 42)
	require.NoError(t, err)
	assert.False(t, result.LeaseAcquired)
	assert.True(t, result.Fallback)
	assert.True(t, result.Written)
	assert.Equal(t, uint64(42), store.Get(ctx))

	lease, err := backend.ActiveLease(ctx)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, "other-instance", lease.OwnerToken, "another owner's lease is never released")
}

func TestStore_ExpiredLeaseIsTakenOver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	backend := cursor.NewMemoryBackend(clock.Now)
	store := cursor.NewStore(backend, cursor.WithClock(clock.Now))

	stale := cursor.Lease{OwnerToken: "crashed", AcquiredAt: clock.Now(), TTL: 30 * time.Second}
	_, err := backend.TryAcquire(ctx, stale)
	require.NoError(t, err)

	clock.Advance(31 * time.Second)

	result, err := store.Commit(ctx, 7)
	require.NoError(t, err)
	assert.True(t, result.LeaseAcquired)

	released, err := backend.Release(ctx, "crashed")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestStore_MonotonicCommits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := cursor.NewStore(cursor.NewMemoryBackend(nil), cursor.WithMonotonicCommits(true))

	_, err := store.Commit(ctx, 100)
	require.NoError(t, err)

	result, err := store.Commit(ctx, 50)
	require.NoError(t, err)
	assert.False(t, result.Written)
	assert.Equal(t, uint64(100), store.Get(ctx))

	result, err = store.Overwrite(ctx, 50)
	require.NoError(t, err)
	assert.True(t, result.Written)
	assert.Equal(t, uint64(50), store.Get(ctx))
}

func TestStore_DefaultCommitsCanMoveBackwards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := cursor.NewStore(cursor.NewMemoryBackend(nil))

	_, err := store.Commit(ctx, 100)
	require.NoError(t, err)
	_, err = store.Commit(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), store.Get(ctx))
}

func TestStore_ResetClearsValueAndLease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := cursor.NewMemoryBackend(nil)
	store := cursor.NewStore(backend)

	_, err := store.Commit(ctx, 100)
	require.NoError(t, err)
	_, err = backend.TryAcquire(ctx, cursor.Lease{OwnerToken: "x", AcquiredAt: time.Now(), TTL: time.Minute})
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))
	assert.Equal(t, uint64(0), store.Get(ctx))

	st := store.Status(ctx)
	assert.False(t, st.HasValue)
	assert.False(t, st.LeaseActive)
	assert.True(t, st.Healthy)
}

func TestStore_Status(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := cursor.NewMemoryBackend(nil)
	store := cursor.NewStore(backend)

	_, err := store.Commit(ctx, 1234)
	require.NoError(t, err)
	_, err = backend.TryAcquire(ctx, cursor.Lease{OwnerToken: "y", AcquiredAt: time.Now(), TTL: time.Minute})
	require.NoError(t, err)

	assert.Equal(t, cursor.Status{Healthy: true, Value: 1234, HasValue: true, LeaseActive: true}, store.Status(ctx))
}

func TestStore_StatusReportsReadError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().Ping(gomock.Any()).Return(nil)
	backend.EXPECT().Load(gomock.Any()).Return(uint64(0), false, errors.New("i/o timeout"))
	backend.EXPECT().ActiveLease(gomock.Any()).Return(nil, nil)

	st := cursor.NewStore(backend).Status(context.Background())
	require.Error(t, st.ReadErr)
	assert.False(t, st.HasValue)
	assert.True(t, st.Healthy)
}

func TestStore_CommitErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(b *mocks.MockBackend)
		wantErr string
		want    cursor.CommitResult
	}{
		{
			name: "acquire error skips the write",
			setup: func(b *mocks.MockBackend) {
				b.EXPECT().TryAcquire(gomock.Any(), gomock.Any()).Return(false, errors.New("timeout"))
			},
			wantErr: "failed to acquire cursor lease",
			want:    cursor.CommitResult{Value: 10},
		},
		{
			name: "write error still releases the lease",
			setup: func(b *mocks.MockBackend) {
				b.EXPECT().TryAcquire(gomock.Any(), gomock.Any()).Return(true, nil)
				b.EXPECT().Save(gomock.Any(), uint64(10), cursor.Overwrite).Return(false, errors.New("read-only replica"))
				b.EXPECT().Release(gomock.Any(), "token-1").Return(true, nil)
			},
			wantErr: "failed to write cursor",
			want:    cursor.CommitResult{Value: 10, LeaseAcquired: true},
		},
		{
			name: "release error is not returned",
			setup: func(b *mocks.MockBackend) {
				b.EXPECT().TryAcquire(gomock.Any(), gomock.Any()).Return(true, nil)
				b.EXPECT().Save(gomock.Any(), uint64(10), cursor.Overwrite).Return(true, nil)
				b.EXPECT().Release(gomock.Any(), "token-1").Return(false, errors.New("broken pipe"))
			},
			want: cursor.CommitResult{Value: 10, LeaseAcquired: true, Written: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			backend := mocks.NewMockBackend(ctrl)
			tt.setup(backend)

			store := cursor.NewStore(backend, cursor.WithTokenGenerator(func() string { return "token-1" }))
			result, err := store.Commit(context.Background(), 10)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestStore_LeaseCarriesTokenAndTTL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	clock := newFakeClock()

	backend.EXPECT().TryAcquire(gomock.Any(), cursor.Lease{
		OwnerToken: "tok",
		AcquiredAt: clock.Now(),
		TTL:        10 * time.Second,
	}).Return(false, nil)
	backend.EXPECT().Save(gomock.Any(), uint64(5), cursor.IfGreater).Return(true, nil)

	store := cursor.NewStore(backend,
		cursor.WithClock(clock.Now),
		cursor.WithLeaseTTL(10*time.Second),
		cursor.WithMonotonicCommits(true),
		cursor.WithTokenGenerator(func() string { return "tok" }),
	)
	result, err := store.Commit(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
}

// exclusionBackend records how many callers hold the lease at once.
type exclusionBackend struct {
	cursor.Backend
	holders    atomic.Int32
	maxHolders atomic.Int32
	acquired   atomic.Int32
}

func (e *exclusionBackend) TryAcquire(ctx context.Context, lease cursor.Lease) (bool, error) {
	ok, err := e.Backend.TryAcquire(ctx, lease)
	if ok {
		e.acquired.Add(1)
		n := e.holders.Add(1)
		for {
			current := e.maxHolders.Load()
			if n <= current || e.maxHolders.CompareAndSwap(current, n) {
				break
			}
		}
	}
	return ok, err
}

func (e *exclusionBackend) Save(ctx context.Context, value uint64, mode cursor.WriteMode) (bool, error) {
	time.Sleep(time.Millisecond)
	return e.Backend.Save(ctx, value, mode)
}

func (e *exclusionBackend) Release(ctx context.Context, token string) (bool, error) {
	// decrement before the underlying release so a new holder cannot be counted early
	e.holders.Add(-1)
	return e.Backend.Release(ctx, token)
}

func TestStore_ConcurrentCommitsNeverShareTheLease(t *testing.T) {
	t.Parallel()

	backend := &exclusionBackend{Backend: cursor.NewMemoryBackend(nil)}
	store := cursor.NewStore(backend)

	const committers = 16
	var wg sync.WaitGroup
	results := make([]cursor.CommitResult, committers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range committers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := store.Commit(context.Background(), uint64(1000+i))
				assert.NoError(t, err)
				results[i] = res
			}(i)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent commits did not complete")
	}

	assert.LessOrEqual(t, backend.maxHolders.Load(), int32(1))
	assert.GreaterOrEqual(t, backend.acquired.Load(), int32(1))
	for _, res := range results {
		assert.True(t, res.Written)
		assert.NotEqual(t, res.LeaseAcquired, res.Fallback)
	}

	final := store.Get(context.Background())
	assert.GreaterOrEqual(t, final, uint64(1000))
	assert.Less(t, final, uint64(1000+committers))
}
