package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type testTask struct {
	err      error
	name     string
	payload  testPayload
	attempt  Attempt
	executed bool
}

func (t *testTask) Name() string { return t.name }

func (t *testTask) Handle(ctx context.Context, p testPayload) error {
	t.executed = true
	t.payload = p
	t.attempt, _ = AttemptFromContext(ctx)
	return t.err
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	assert.Empty(t, reg.names())

	reg.register("b", &typedTask[testPayload, *testTask]{task: &testTask{name: "b"}})
	reg.register("a", &typedTask[testPayload, *testTask]{task: &testTask{name: "a"}})

	e, ok := reg.get("a")
	assert.True(t, ok)
	assert.NotNil(t, e)

	_, ok = reg.get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, reg.names())
}

func TestTypedTask_Execute(t *testing.T) {
	t.Parallel()

	t.Run("decodes payload", func(t *testing.T) {
		t.Parallel()

		task := &testTask{name: "t"}
		raw, err := json.Marshal(testPayload{Message: "hello", Count: 42})
		require.NoError(t, err)

		require.NoError(t, (&typedTask[testPayload, *testTask]{task: task}).Execute(context.Background(), raw))
		assert.True(t, task.executed)
		assert.Equal(t, testPayload{Message: "hello", Count: 42}, task.payload)
	})

	t.Run("empty payload", func(t *testing.T) {
		t.Parallel()

		task := &testTask{name: "t"}
		require.NoError(t, (&typedTask[testPayload, *testTask]{task: task}).Execute(context.Background(), nil))
		assert.Equal(t, testPayload{}, task.payload)
	})

	t.Run("invalid payload is fatal", func(t *testing.T) {
		t.Parallel()

		task := &testTask{name: "t"}
		err := (&typedTask[testPayload, *testTask]{task: task}).Execute(context.Background(), []byte("nope"))
		require.ErrorIs(t, err, ErrInvalidPayload)
		assert.True(t, IsFatal(err))
		assert.False(t, task.executed)
	})

	t.Run("handler error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		task := &testTask{name: "t", err: boom}
		err := (&typedTask[testPayload, *testTask]{task: task}).Execute(context.Background(), nil)
		require.ErrorIs(t, err, boom)
		assert.False(t, IsFatal(err))
	})
}

func TestFatal(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Fatal(nil))

	cause := errors.New("contact missing")
	err := Fatal(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsFatal(err))
	assert.True(t, IsFatal(errors.Join(errors.New("ctx"), err)))
	assert.False(t, IsFatal(cause))
	assert.Contains(t, err.Error(), "contact missing")
}

func TestAttempt(t *testing.T) {
	t.Parallel()

	_, ok := AttemptFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithAttempt(context.Background(), Attempt{JobID: 7, Number: 3, Max: 3})
	a, ok := AttemptFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), a.JobID)
	assert.True(t, a.Final())

	assert.False(t, Attempt{Number: 2, Max: 3}.Final())
	assert.False(t, Attempt{Number: 5}.Final())
}
