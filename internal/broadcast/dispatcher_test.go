package broadcast_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/pkg/job"
	"github.com/dmitrymomot/broadcaster/pkg/lock"
)

func sendingBroadcast(id int64) broadcast.Broadcast {
	return broadcast.Broadcast{
		ID:          id,
		Name:        "October update",
		Subject:     "What's new",
		FromName:    "Ada",
		FromAddress: "ada@example.com",
		Content:     "# Hello\n\nNews.",
		To:          broadcast.AudienceAll,
		Status:      broadcast.StatusSending,
	}
}

func rangeIDs(from, to int64) []int64 {
	ids := make([]int64, 0, to-from+1)
	for id := from; id <= to; id++ {
		ids = append(ids, id)
	}
	return ids
}

func TestDispatcher_PaginatesUntilExhausted(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	b := sendingBroadcast(1)
	b.Meta = broadcast.Meta{ContactsCount: 250}
	store.addBroadcast(b)
	store.addContacts(1, 250, true)

	queue := &recordingQueue{}
	d := broadcast.NewDispatcher(store, queue, broadcast.Config{BatchSize: 100})
	ctx := context.Background()

	polls := []struct {
		from, to int64
	}{
		{1, 100},
		{101, 200},
		{201, 250},
	}
	for _, p := range polls {
		queue.reset()

		res, err := d.Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.BroadcastID)
		assert.Equal(t, int(p.to-p.from+1), res.Queued)
		assert.Equal(t, p.to, res.Cursor)
		assert.Equal(t, rangeIDs(p.from, p.to), queue.contactIDs())

		got := store.broadcast(1)
		assert.Equal(t, broadcast.StatusSending, got.Status)
		assert.Equal(t, p.to, got.Meta.LastProcessedContactID)
		assert.Equal(t, p.to, got.Meta.ProcessedCount)
	}

	queue.reset()
	res, err := d.Poll(ctx)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Empty(t, queue.contactIDs())
	assert.Equal(t, broadcast.StatusSent, store.broadcast(1).Status)
}

func TestDispatcher_SkipsOptedOutAndUntagged(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	b := sendingBroadcast(1)
	b.To = broadcast.AudienceTags
	b.TagIDs = []int64{7}
	store.addBroadcast(b)
	store.addContacts(1, 3, true, 7)
	store.addContacts(4, 5, false, 7)
	store.addContacts(6, 8, true, 9)

	queue := &recordingQueue{}
	d := broadcast.NewDispatcher(store, queue, broadcast.Config{BatchSize: 10})

	res, err := d.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, queue.contactIDs())
	assert.Equal(t, int64(3), res.Cursor)
}

func TestDispatcher_TagAudienceWithoutTagsSendsToAll(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	b := sendingBroadcast(1)
	b.To = broadcast.AudienceTags
	store.addBroadcast(b)
	store.addContacts(1, 3, true, 7)
	store.addContacts(4, 5, true)
	store.addContacts(6, 6, false)

	queue := &recordingQueue{}
	d := broadcast.NewDispatcher(store, queue, broadcast.Config{BatchSize: 10})

	res, err := d.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Equal(t, rangeIDs(1, 5), queue.contactIDs())
	assert.Equal(t, broadcast.StatusSending, store.broadcast(1).Status)
}

func TestDispatcher_NoSendingBroadcast(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	b := sendingBroadcast(1)
	b.Status = broadcast.StatusDraft
	store.addBroadcast(b)

	queue := &recordingQueue{}
	res, err := broadcast.NewDispatcher(store, queue, broadcast.Config{}).Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.BroadcastID)
	assert.Empty(t, queue.contactIDs())
}

func TestDispatcher_PicksOldestSending(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addBroadcast(sendingBroadcast(5))
	store.addBroadcast(sendingBroadcast(2))
	store.addContacts(1, 1, true)

	res, err := broadcast.NewDispatcher(store, &recordingQueue{}, broadcast.Config{}).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.BroadcastID)
}

func TestDispatcher_InvalidBroadcastFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*broadcast.Broadcast)
	}{
		{"missing content", func(b *broadcast.Broadcast) { b.Content = "" }},
		{"bad from address", func(b *broadcast.Broadcast) { b.FromAddress = "not-an-email" }},
		{"missing from name", func(b *broadcast.Broadcast) { b.FromName = "" }},
		{"missing subject", func(b *broadcast.Broadcast) { b.Subject = " " }},
		{"unknown audience", func(b *broadcast.Broadcast) { b.To = "everyone" }},
		{"negative counter", func(b *broadcast.Broadcast) { b.Meta.ProcessedCount = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			b := sendingBroadcast(1)
			tt.mutate(&b)
			store.addBroadcast(b)
			store.addContacts(1, 5, true)

			queue := &recordingQueue{}
			res, err := broadcast.NewDispatcher(store, queue, broadcast.Config{}).Poll(context.Background())
			require.NoError(t, err)
			assert.True(t, res.Failed)
			assert.Empty(t, queue.contactIDs())
			assert.Equal(t, broadcast.StatusFailed, store.broadcast(1).Status)
		})
	}
}

func TestDispatcher_EnqueueErrorKeepsCursor(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addBroadcast(sendingBroadcast(1))
	store.addContacts(1, 5, true)

	queue := &recordingQueue{err: errors.New("queue down")}
	_, err := broadcast.NewDispatcher(store, queue, broadcast.Config{}).Poll(context.Background())
	require.Error(t, err)

	got := store.broadcast(1)
	assert.Equal(t, int64(0), got.Meta.LastProcessedContactID)
	assert.Equal(t, broadcast.StatusSending, got.Status)
}

// conflictQueue advances the cursor while the batch is being enqueued, the
// way an overlapping dispatcher run would.
type conflictQueue struct {
	store *memStore
	once  sync.Once
}

func (q *conflictQueue) Enqueue(ctx context.Context, _ string, _ any, _ ...job.EnqueueOption) error {
	var err error
	q.once.Do(func() {
		err = q.store.AdvanceCursor(ctx, 1, 0, 3, 3)
	})
	return err
}

func TestDispatcher_CursorConflictEndsPoll(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addBroadcast(sendingBroadcast(1))
	store.addContacts(1, 5, true)

	queue := &conflictQueue{store: store}
	res, err := broadcast.NewDispatcher(store, queue, broadcast.Config{}).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Queued)

	// The concurrent writer's cursor wins.
	got := store.broadcast(1)
	assert.Equal(t, int64(3), got.Meta.LastProcessedContactID)
	assert.Equal(t, int64(3), got.Meta.ProcessedCount)
}

func TestDispatcher_LockHeldIsNoop(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addBroadcast(sendingBroadcast(1))
	store.addContacts(1, 5, true)

	locker := lock.NewMemory()
	held, err := locker.TryAcquire(context.Background(), "broadcast-dispatcher", time.Minute)
	require.NoError(t, err)

	queue := &recordingQueue{}
	d := broadcast.NewDispatcher(store, queue, broadcast.Config{}, broadcast.WithLocker(locker))

	res, err := d.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, queue.contactIDs())
	reads, _ := store.counts()
	assert.Zero(t, reads)

	require.NoError(t, held.Release(context.Background()))

	res, err = d.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 5, res.Queued)

	// The lease is released after each run.
	res, err = d.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestIdempotencyKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "broadcast-12-contact-345", broadcast.IdempotencyKey(12, 345))
}
