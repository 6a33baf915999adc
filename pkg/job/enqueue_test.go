package job

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskArgs(t *testing.T) {
	t.Parallel()

	t.Run("nil payload", func(t *testing.T) {
		t.Parallel()

		args, opts, err := newTaskArgs("send-broadcasts", nil)
		require.NoError(t, err)
		assert.Equal(t, "send-broadcasts", args.TaskName)
		assert.Empty(t, args.Payload)
		assert.Empty(t, opts.Queue)
		assert.Zero(t, opts.UniqueOpts.ByPeriod)
	})

	t.Run("payload and options", func(t *testing.T) {
		t.Parallel()

		at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		args, opts, err := newTaskArgs("send-email", testPayload{Message: "x", Count: 1},
			InQueue("send-emails"),
			MaxAttempts(3),
			Priority(2),
			Tags("broadcast:1"),
			ScheduledAt(at),
		)
		require.NoError(t, err)

		var decoded testPayload
		require.NoError(t, json.Unmarshal(args.Payload, &decoded))
		assert.Equal(t, testPayload{Message: "x", Count: 1}, decoded)

		assert.Equal(t, "send-emails", opts.Queue)
		assert.Equal(t, 3, opts.MaxAttempts)
		assert.Equal(t, 2, opts.Priority)
		assert.Equal(t, []string{"broadcast:1"}, opts.Tags)
		assert.Equal(t, at, opts.ScheduledAt)
	})

	t.Run("unique key only with window", func(t *testing.T) {
		t.Parallel()

		args, opts, err := newTaskArgs("send-email", nil, UniqueKey("broadcast-1-contact-2"))
		require.NoError(t, err)
		assert.Empty(t, args.UniqueKey)
		assert.False(t, opts.UniqueOpts.ByArgs)

		args, opts, err = newTaskArgs("send-email", nil, UniqueFor(24*time.Hour), UniqueKey("broadcast-1-contact-2"))
		require.NoError(t, err)
		assert.Equal(t, "broadcast-1-contact-2", args.UniqueKey)
		assert.True(t, opts.UniqueOpts.ByArgs)
		assert.Equal(t, 24*time.Hour, opts.UniqueOpts.ByPeriod)
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		t.Parallel()

		_, _, err := newTaskArgs("x", make(chan int))
		require.Error(t, err)
	})
}

func TestEnqueueOptions(t *testing.T) {
	t.Parallel()

	cfg := &enqueueConfig{queue: "existing"}
	InQueue("")(cfg)
	assert.Equal(t, "existing", cfg.queue)

	MaxAttempts(0)(cfg)
	assert.Zero(t, cfg.maxAttempts)

	before := time.Now()
	ScheduledIn(time.Hour)(cfg)
	require.NotNil(t, cfg.scheduledAt)
	assert.WithinDuration(t, before.Add(time.Hour), *cfg.scheduledAt, time.Second)

	Tags("a")(cfg)
	Tags("b", "c")(cfg)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.tags)

	assert.Equal(t, "broadcaster:task", taskArgs{}.Kind())
}
