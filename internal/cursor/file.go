package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const fileLockRetryDelay = 50 * time.Millisecond

// fileState is the on-disk document of the file backend.
type fileState struct {
	LastSyncTime *uint64 `json:"lastSyncTime,omitempty"`
	Lease        *Lease  `json:"lease,omitempty"`
}

type fileBackend struct {
	// mu serializes goroutines of this process; a Flock is re-entrant for its holder.
	mu   sync.Mutex
	path string
	lock *flock.Flock
	now  func() time.Time
}

// NewFileBackend returns a Backend keeping its state in a JSON file at path. Every
// operation runs under an exclusive OS lock on path+".lock", so processes sharing
// the file (on one host, or a filesystem with working flock) are serialized.
func NewFileBackend(path string) (Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("cursor file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cursor directory: %w", err)
	}
	return &fileBackend{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}, nil
}

// withState runs fn on the current state under the file lock and persists the
// state when fn reports a change.
func (f *fileBackend) withState(ctx context.Context, fn func(st *fileState) (changed bool)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	locked, err := f.lock.TryLockContext(ctx, fileLockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock cursor file: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock cursor file %s", f.path)
	}
	defer func() {
		_ = f.lock.Unlock()
	}()

	st, err := f.read()
	if err != nil {
		return err
	}
	if !fn(st) {
		return nil
	}
	return f.write(st)
}

func (f *fileBackend) read() (*fileState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileState{}, nil
		}
		return nil, fmt.Errorf("failed to read cursor file: %w", err)
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse cursor file: %w", err)
	}
	return &st, nil
}

func (f *fileBackend) write(st *fileState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cursor state: %w", err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary cursor file: %w", err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cursor file: %w", err)
	}
	return nil
}

func (f *fileBackend) Load(ctx context.Context) (value uint64, found bool, err error) {
	err = f.withState(ctx, func(st *fileState) bool {
		if st.LastSyncTime != nil {
			value, found = *st.LastSyncTime, true
		}
		return false
	})
	return value, found, err
}

func (f *fileBackend) Save(ctx context.Context, value uint64, mode WriteMode) (written bool, err error) {
	err = f.withState(ctx, func(st *fileState) bool {
		if mode == IfGreater && st.LastSyncTime != nil && value <= *st.LastSyncTime {
			return false
		}
		v := value
		st.LastSyncTime = &v
		written = true
		return true
	})
	return written, err
}

func (f *fileBackend) TryAcquire(ctx context.Context, lease Lease) (acquired bool, err error) {
	err = f.withState(ctx, func(st *fileState) bool {
		if st.Lease != nil && !st.Lease.Expired(f.now()) {
			return false
		}
		l := lease
		st.Lease = &l
		acquired = true
		return true
	})
	return acquired, err
}

func (f *fileBackend) Release(ctx context.Context, ownerToken string) (released bool, err error) {
	err = f.withState(ctx, func(st *fileState) bool {
		if st.Lease == nil || st.Lease.OwnerToken != ownerToken {
			return false
		}
		st.Lease = nil
		released = true
		return true
	})
	return released, err
}

func (f *fileBackend) ActiveLease(ctx context.Context) (lease *Lease, err error) {
	err = f.withState(ctx, func(st *fileState) bool {
		if st.Lease != nil && !st.Lease.Expired(f.now()) {
			l := *st.Lease
			lease = &l
		}
		return false
	})
	return lease, err
}

func (f *fileBackend) Clear(ctx context.Context) error {
	return f.withState(ctx, func(st *fileState) bool {
		st.LastSyncTime = nil
		st.Lease = nil
		return true
	})
}

func (f *fileBackend) Ping(context.Context) error {
	info, err := os.Stat(filepath.Dir(f.path))
	if err != nil {
		return fmt.Errorf("cursor directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cursor directory %s is not a directory", filepath.Dir(f.path))
	}
	return nil
}

func (f *fileBackend) Close() error {
	return f.lock.Close()
}
