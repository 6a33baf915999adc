package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrNotAcquired is returned when another owner holds the key.
	ErrNotAcquired = errors.New("lock: not acquired")
	ErrEmptyKey    = errors.New("lock: empty key")
)

// Locker acquires a key without waiting.
type Locker interface {
	// TryAcquire returns ErrNotAcquired when the key is held by someone else.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	// Release frees the key if this lease still owns it. Releasing twice,
	// or after expiry, is not an error.
	Release(ctx context.Context) error
}

func newOwnerToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
