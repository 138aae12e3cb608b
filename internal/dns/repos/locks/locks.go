// Package locks provides named in-process mutual exclusion with bounded
// waiting. Publish actions acquire the lock named after the zone they touch,
// so concurrent batches for the same zone serialize while batches for
// different zones proceed in parallel.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/registrykit/zonepub/internal/dns/services/publish"
)

// TimeoutError reports that a named lock was still held when the caller's
// patience ran out.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for lock %q", e.Timeout, e.Name)
}

// IsTimeout reports whether err is a lock acquisition timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Manager hands out per-name locks. Lock slots are created on first use and
// never removed; the name set is expected to be small and stable (one slot
// per managed zone).
type Manager struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// New returns an empty lock manager.
func New() *Manager {
	return &Manager{slots: make(map[string]chan struct{})}
}

func (m *Manager) slot(name string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.slots[name]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[name] = ch
	}
	return ch
}

// Acquire blocks until the named lock is free, the timeout elapses, or ctx is
// cancelled. On success it returns a release function; calling it more than
// once is safe, but the lock is freed exactly once.
func (m *Manager) Acquire(ctx context.Context, name string, timeout time.Duration) (func(), error) {
	ch := m.slot(name)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-timer.C:
		return nil, &TimeoutError{Name: name, Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ publish.Locker = (*Manager)(nil)
