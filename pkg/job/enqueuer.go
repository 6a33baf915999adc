package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// Enqueuer inserts jobs without processing them. Use it in processes that
// only produce work for a separate worker deployment.
type Enqueuer struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	logger *slog.Logger
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithEnqueuerLogger sets the logger passed to River.
func WithEnqueuerLogger(l *slog.Logger) EnqueuerOption {
	return func(e *Enqueuer) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEnqueuer creates an insert-only River client.
func NewEnqueuer(pool *pgxpool.Pool, opts ...EnqueuerOption) (*Enqueuer, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	e := &Enqueuer{pool: pool, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(e)
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{Logger: e.logger})
	if err != nil {
		return nil, fmt.Errorf("job: create enqueuer client: %w", err)
	}
	e.client = client

	return e, nil
}

// Enqueue inserts a job for the named task. The name is checked by the worker.
func (e *Enqueuer) Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) error {
	args, insertOpts, err := newTaskArgs(name, payload, opts...)
	if err != nil {
		return err
	}

	res, err := e.client.Insert(ctx, args, insertOpts)
	if err != nil {
		return fmt.Errorf("job: enqueue %s: %w", name, err)
	}
	if res != nil && res.UniqueSkippedAsDuplicate {
		e.logger.DebugContext(ctx, "duplicate job skipped",
			slog.String("task", name),
			slog.String("unique_key", args.UniqueKey),
		)
	}

	return nil
}

// EnqueueTx inserts a job that becomes visible when tx commits.
func (e *Enqueuer) EnqueueTx(ctx context.Context, tx pgx.Tx, name string, payload any, opts ...EnqueueOption) error {
	args, insertOpts, err := newTaskArgs(name, payload, opts...)
	if err != nil {
		return err
	}

	if _, err := e.client.InsertTx(ctx, tx, args, insertOpts); err != nil {
		return fmt.Errorf("job: enqueue %s in tx: %w", name, err)
	}

	return nil
}
