package lock

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Locker.
type Memory struct {
	now  func() time.Time
	held map[string]memoryEntry
	mu   sync.Mutex
}

type memoryEntry struct {
	expires time.Time
	owner   string
}

// NewMemory creates an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{now: time.Now, held: make(map[string]memoryEntry)}
}

// TryAcquire implements Locker. A non-positive ttl never expires.
func (m *Memory) TryAcquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.held[key]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return nil, ErrNotAcquired
	}

	e := memoryEntry{owner: newOwnerToken()}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.held[key] = e

	return &memoryLease{m: m, key: key, owner: e.owner}, nil
}

type memoryLease struct {
	m     *Memory
	key   string
	owner string
}

func (l *memoryLease) Release(context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()

	if e, ok := l.m.held[l.key]; ok && e.owner == l.owner {
		delete(l.m.held, l.key)
	}
	return nil
}
