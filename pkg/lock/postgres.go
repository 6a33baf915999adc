package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// Postgres is a Locker backed by pg_try_advisory_lock. Each lease pins one
// pooled connection until it is released.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates an advisory-lock locker.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// advisoryKey maps a string key onto the bigint advisory lock space.
func advisoryKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64()) //nolint:gosec // wrap-around is intended
}

// TryAcquire implements Locker. ttl is ignored.
func (p *Postgres) TryAcquire(ctx context.Context, key string, _ time.Duration) (Lease, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
	}

	id := advisoryKey(key)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, ErrNotAcquired
	}

	return &pgLease{conn: conn, id: id, key: key}, nil
}

type pgLease struct {
	conn *sql.Conn
	key  string
	id   int64
	once sync.Once
	err  error
}

func (l *pgLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.id)
		if cerr := l.conn.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			l.err = fmt.Errorf("lock: release %s: %w", l.key, err)
		}
	})
	return l.err
}
