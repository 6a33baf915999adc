package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/broadcaster/pkg/job"
	"github.com/dmitrymomot/broadcaster/pkg/lock"
	"github.com/dmitrymomot/broadcaster/pkg/logger"
)

const (
	TaskSendBroadcasts = "send-broadcasts"
	TaskSendEmail      = "send-email"

	dispatcherLockKey = "broadcast-dispatcher"
)

// IdempotencyKey identifies the single send of a broadcast to a contact. It
// is used both as the job uniqueness key and as the provider idempotency key.
func IdempotencyKey(broadcastID, contactID int64) string {
	return "broadcast-" + strconv.FormatInt(broadcastID, 10) + "-contact-" + strconv.FormatInt(contactID, 10)
}

// PollResult describes what a single dispatcher run did.
type PollResult struct {
	BroadcastID int64
	Queued      int
	Cursor      int64
	Completed   bool
	Failed      bool
	Skipped     bool
}

// Dispatcher advances the oldest sending broadcast by one batch per run.
type Dispatcher struct {
	store DispatchStore
	queue Queue
	cfg   Config
	opts  options
}

// NewDispatcher returns a dispatcher. Without WithLocker overlapping runs are
// only guarded by the cursor compare-and-swap.
func NewDispatcher(store DispatchStore, queue Queue, cfg Config, opts ...Option) *Dispatcher {
	return &Dispatcher{
		store: store,
		queue: queue,
		cfg:   cfg.withDefaults(),
		opts:  newOptions(opts),
	}
}

// Name implements the scheduled task contract.
func (d *Dispatcher) Name() string { return TaskSendBroadcasts }

// Schedule returns the cron expression of the dispatcher.
func (d *Dispatcher) Schedule() string { return d.cfg.Schedule }

// Handle runs one poll.
func (d *Dispatcher) Handle(ctx context.Context) error {
	_, err := d.Poll(ctx)
	return err
}

// Poll selects the oldest sending broadcast and either enqueues its next
// batch, marks it sent when the cursor is exhausted, or marks it failed when
// it does not validate. Only store and queue errors are returned.
func (d *Dispatcher) Poll(ctx context.Context) (PollResult, error) {
	var res PollResult
	log := d.opts.logger

	ctx, cancel := context.WithTimeout(ctx, d.cfg.PollTimeout)
	defer cancel()

	if d.opts.locker != nil {
		lease, err := d.opts.locker.TryAcquire(ctx, dispatcherLockKey, d.cfg.PollTimeout)
		if errors.Is(err, lock.ErrNotAcquired) {
			log.DebugContext(ctx, "dispatcher already running elsewhere")
			res.Skipped = true
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("broadcast: acquire dispatcher lock: %w", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.WarnContext(ctx, "failed to release dispatcher lock", slog.Any("error", err))
			}
		}()
	}

	b, err := d.store.OldestSending(ctx)
	if errors.Is(err, ErrBroadcastNotFound) {
		log.InfoContext(ctx, "no broadcasts with status sending")
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("broadcast: find sending broadcast: %w", err)
	}

	res.BroadcastID = b.ID
	res.Cursor = b.Meta.LastProcessedContactID
	ctx = logger.WithField(ctx, logger.BroadcastID, b.ID)

	if err := b.Validate(); err != nil {
		log.ErrorContext(ctx, "broadcast validation failed", slog.Any("error", err))
		if err := d.finish(ctx, b.ID, StatusFailed); err != nil {
			return res, err
		}
		res.Failed = true
		return res, nil
	}

	contacts, err := d.store.NextRecipients(ctx, b.RecipientFilter(), d.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("broadcast: fetch recipients: %w", err)
	}

	if len(contacts) == 0 {
		log.InfoContext(ctx, "broadcast complete",
			slog.Int64("processed", b.Meta.ProcessedCount),
			slog.Int64("expected", b.Meta.ContactsCount),
		)
		if err := d.finish(ctx, b.ID, StatusSent); err != nil {
			return res, err
		}
		res.Completed = true
		return res, nil
	}

	if err := d.enqueue(ctx, b.ID, contacts); err != nil {
		return res, err
	}
	res.Queued = len(contacts)
	d.opts.metrics.EmailsQueued(len(contacts))

	next := contacts[len(contacts)-1].ID
	err = d.store.AdvanceCursor(ctx, b.ID, b.Meta.LastProcessedContactID, next, len(contacts))
	if errors.Is(err, ErrCursorConflict) {
		// The jobs are unique per pair, so the other writer's batch and ours
		// collapse into one send each.
		log.WarnContext(ctx, "cursor moved by another dispatcher run",
			slog.Int64("expected", b.Meta.LastProcessedContactID),
		)
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("broadcast: advance cursor: %w", err)
	}
	res.Cursor = next

	log.InfoContext(ctx, "queued broadcast batch",
		slog.Int("queued", len(contacts)),
		slog.Int64("processed", b.Meta.ProcessedCount+int64(len(contacts))),
		slog.Int64("cursor", next),
	)
	return res, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, broadcastID int64, contacts []Contact) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.EnqueueConcurrency)

	for _, c := range contacts {
		g.Go(func() error {
			key := IdempotencyKey(broadcastID, c.ID)
			err := d.queue.Enqueue(gctx, TaskSendEmail,
				SendEmailInput{BroadcastID: broadcastID, ContactID: c.ID},
				job.InQueue(d.cfg.EmailQueue),
				job.MaxAttempts(d.cfg.MaxAttempts),
				job.UniqueFor(d.cfg.UniqueFor),
				job.UniqueKey(key),
			)
			if err != nil {
				return fmt.Errorf("broadcast: enqueue %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) finish(ctx context.Context, id int64, status Status) error {
	err := d.store.TransitionBroadcast(ctx, id, StatusSending, status)
	if errors.Is(err, ErrInvalidStatus) {
		d.opts.logger.WarnContext(ctx, "broadcast left sending before it could be finished",
			slog.String("status", string(status)),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("broadcast: mark %s: %w", status, err)
	}
	d.opts.metrics.BroadcastFinished(status)
	return nil
}
