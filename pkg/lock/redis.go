package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "lock:"

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithPrefix namespaces every key. Defaults to "lock:".
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis creates a Redis locker.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TryAcquire implements Locker. ttl must be positive.
func (r *Redis) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	l := &redisLease{client: r.client, key: r.prefix + key, owner: newOwnerToken()}
	ok, err := r.client.SetNX(ctx, l.key, l.owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return l, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	owner  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("lock: release %s: %w", l.key, err)
	}
	return nil
}
