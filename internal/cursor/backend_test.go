package cursor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// backendHarness gives a contract test a fresh backend plus control over lease time.
type backendHarness struct {
	backend Backend
	now     func() time.Time
	advance func(d time.Duration)
}

func runBackendContract(t *testing.T, newHarness func(t *testing.T) backendHarness) {
	t.Helper()

	t.Run("load before any write", func(t *testing.T) {
		h := newHarness(t)
		value, found, err := h.backend.Load(context.Background())
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, uint64(0), value)
	})

	t.Run("write modes", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t)

		written, err := h.backend.Save(ctx, 100, Overwrite)
		require.NoError(t, err)
		assert.True(t, written)

		value, found, err := h.backend.Load(ctx)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, uint64(100), value)

		written, err = h.backend.Save(ctx, 50, IfGreater)
		require.NoError(t, err)
		assert.False(t, written)

		written, err = h.backend.Save(ctx, 100, IfGreater)
		require.NoError(t, err)
		assert.False(t, written, "equal values are not greater")

		written, err = h.backend.Save(ctx, 150, IfGreater)
		require.NoError(t, err)
		assert.True(t, written)

		written, err = h.backend.Save(ctx, 10, Overwrite)
		require.NoError(t, err)
		assert.True(t, written)

		value, _, err = h.backend.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), value)
	})

	t.Run("if-greater on empty store writes", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t)

		written, err := h.backend.Save(ctx, 7, IfGreater)
		require.NoError(t, err)
		assert.True(t, written)
	})

	t.Run("lease is exclusive and owner-released", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t)

		a := Lease{OwnerToken: "a", AcquiredAt: h.now(), TTL: 30 * time.Second}
		b := Lease{OwnerToken: "b", AcquiredAt: h.now(), TTL: 30 * time.Second}

		ok, err := h.backend.TryAcquire(ctx, a)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.backend.TryAcquire(ctx, b)
		require.NoError(t, err)
		assert.False(t, ok)

		active, err := h.backend.ActiveLease(ctx)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "a", active.OwnerToken)

		released, err := h.backend.Release(ctx, "b")
		require.NoError(t, err)
		assert.False(t, released)

		released, err = h.backend.Release(ctx, "a")
		require.NoError(t, err)
		assert.True(t, released)

		active, err = h.backend.ActiveLease(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)

		ok, err = h.backend.TryAcquire(ctx, b)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired lease can be taken", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t)

		ok, err := h.backend.TryAcquire(ctx, Lease{OwnerToken: "a", AcquiredAt: h.now(), TTL: time.Second})
		require.NoError(t, err)
		require.True(t, ok)

		h.advance(2 * time.Second)

		active, err := h.backend.ActiveLease(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)

		ok, err = h.backend.TryAcquire(ctx, Lease{OwnerToken: "b", AcquiredAt: h.now(), TTL: 30 * time.Second})
		require.NoError(t, err)
		assert.True(t, ok)

		released, err := h.backend.Release(ctx, "a")
		require.NoError(t, err)
		assert.False(t, released, "a stale owner cannot release the new lease")
	})

	t.Run("clear removes value and lease", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t)

		_, err := h.backend.Save(ctx, 5, Overwrite)
		require.NoError(t, err)
		_, err = h.backend.TryAcquire(ctx, Lease{OwnerToken: "a", AcquiredAt: h.now(), TTL: time.Minute})
		require.NoError(t, err)

		require.NoError(t, h.backend.Clear(ctx))

		_, found, err := h.backend.Load(ctx)
		require.NoError(t, err)
		assert.False(t, found)

		active, err := h.backend.ActiveLease(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("ping", func(t *testing.T) {
		h := newHarness(t)
		assert.NoError(t, h.backend.Ping(context.Background()))
	})
}

func TestMemoryBackend(t *testing.T) {
	t.Parallel()

	runBackendContract(t, func(t *testing.T) backendHarness {
		t.Helper()
		clock := &testClock{now: time.Unix(1700000000, 0)}
		return backendHarness{
			backend: NewMemoryBackend(clock.Now),
			now:     clock.Now,
			advance: clock.Advance,
		}
	})
}

func TestFileBackend(t *testing.T) {
	t.Parallel()

	runBackendContract(t, func(t *testing.T) backendHarness {
		t.Helper()
		clock := &testClock{now: time.Unix(1700000000, 0)}
		b, err := NewFileBackend(filepath.Join(t.TempDir(), "state", "cursor.json"))
		require.NoError(t, err)
		b.(*fileBackend).now = clock.Now
		t.Cleanup(func() { _ = b.Close() })
		return backendHarness{backend: b, now: clock.Now, advance: clock.Advance}
	})
}

func TestFileBackend_SharedFileAcrossHandles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cursor.json")

	first, err := NewFileBackend(path)
	require.NoError(t, err)
	defer first.Close()
	second, err := NewFileBackend(path)
	require.NoError(t, err)
	defer second.Close()

	ok, err := first.TryAcquire(ctx, Lease{OwnerToken: "first", AcquiredAt: time.Now(), TTL: time.Minute})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryAcquire(ctx, Lease{OwnerToken: "second", AcquiredAt: time.Now(), TTL: time.Minute})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = first.Save(ctx, 99, Overwrite)
	require.NoError(t, err)

	value, found, err := second.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(99), value)
}

func TestSQLiteBackend(t *testing.T) {
	t.Parallel()

	runBackendContract(t, func(t *testing.T) backendHarness {
		t.Helper()
		clock := &testClock{now: time.Unix(1700000000, 0)}
		b, err := OpenSQLiteBackend(context.Background(), filepath.Join(t.TempDir(), "cursor.db"), "cursor", "cursor_lock")
		require.NoError(t, err)
		b.(*sqliteBackend).now = clock.Now
		t.Cleanup(func() { _ = b.Close() })
		return backendHarness{backend: b, now: clock.Now, advance: clock.Advance}
	})
}

func TestRedisBackend(t *testing.T) {
	t.Parallel()

	runBackendContract(t, func(t *testing.T) backendHarness {
		t.Helper()
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		b := NewRedisBackend(client, "fb_comments_last_fetch_timestamp", "fb_comments_timestamp_lock")
		t.Cleanup(func() { _ = b.Close() })
		return backendHarness{backend: b, now: time.Now, advance: mr.FastForward}
	})
}

func TestRedisBackend_WireFormat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBackend(client, "fb_comments_last_fetch_timestamp", "fb_comments_timestamp_lock")
	defer b.Close()

	_, err := b.Save(ctx, 1700000000, Overwrite)
	require.NoError(t, err)
	stored, err := mr.Get("fb_comments_last_fetch_timestamp")
	require.NoError(t, err)
	assert.Equal(t, "1700000000", stored)

	ok, err := b.TryAcquire(ctx, Lease{OwnerToken: "owner", AcquiredAt: time.Now(), TTL: 30 * time.Second})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, mr.TTL("fb_comments_timestamp_lock"))

	require.NoError(t, mr.Set("fb_comments_last_fetch_timestamp", "not-a-number"))
	_, _, err = b.Load(ctx)
	assert.Error(t, err)
}

func TestRedisBackend_PingFailsWhenUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	b := NewRedisBackend(client, "k", "l")
	defer b.Close()

	require.NoError(t, b.Ping(context.Background()))
	mr.Close()
	assert.Error(t, b.Ping(context.Background()))
}
