package cursor

import (
	"context"
	"sync"
	"time"
)

type memoryBackend struct {
	mu    sync.Mutex
	now   func() time.Time
	value uint64
	found bool
	lease *Lease
}

// NewMemoryBackend returns a process-local Backend. It does not coordinate
// across instances and loses its value on restart.
func NewMemoryBackend(now func() time.Time) Backend {
	if now == nil {
		now = time.Now
	}
	return &memoryBackend{now: now}
}

func (m *memoryBackend) Load(context.Context) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.found, nil
}

func (m *memoryBackend) Save(_ context.Context, value uint64, mode WriteMode) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode == IfGreater && m.found && value <= m.value {
		return false, nil
	}
	m.value = value
	m.found = true
	return true, nil
}

func (m *memoryBackend) TryAcquire(_ context.Context, lease Lease) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lease != nil && !m.lease.Expired(m.now()) {
		return false, nil
	}
	l := lease
	m.lease = &l
	return true, nil
}

func (m *memoryBackend) Release(_ context.Context, ownerToken string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lease == nil || m.lease.OwnerToken != ownerToken {
		return false, nil
	}
	m.lease = nil
	return true, nil
}

func (m *memoryBackend) ActiveLease(context.Context) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lease == nil || m.lease.Expired(m.now()) {
		return nil, nil
	}
	l := *m.lease
	return &l, nil
}

func (m *memoryBackend) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value, m.found, m.lease = 0, false, nil
	return nil
}

func (*memoryBackend) Ping(context.Context) error { return nil }

func (*memoryBackend) Close() error { return nil }
