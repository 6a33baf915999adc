package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/broadcaster/pkg/redis"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	client, err := redis.Open(context.Background(), redis.Config{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, redis.Healthcheck(client)(context.Background()))
}

func TestOpen_Validation(t *testing.T) {
	t.Parallel()

	_, err := redis.Open(context.Background(), redis.Config{})
	require.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	for _, url := range []string{"http://localhost:6379", "localhost:6379", "postgres://localhost"} {
		_, err := redis.Open(context.Background(), redis.Config{URL: url})
		require.ErrorIs(t, err, redis.ErrFailedToParseURL, url)
	}
}

func TestOpen_Unreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redis.Open(context.Background(), redis.Config{
		URL:           "redis://" + addr,
		RetryAttempts: 2,
		RetryInterval: time.Millisecond,
		DialTimeout:   100 * time.Millisecond,
	})
	require.ErrorIs(t, err, redis.ErrConnectionFailed)
}

func TestHealthcheck_Nil(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, redis.Healthcheck(nil)(context.Background()), redis.ErrHealthcheckFailed)
}

func TestConfig_Enabled(t *testing.T) {
	t.Parallel()

	assert.False(t, redis.Config{}.Enabled())
	assert.True(t, redis.Config{URL: "redis://x"}.Enabled())
}
