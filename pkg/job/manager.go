package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

const defaultMaxWorkers = 100

// Manager enqueues and processes jobs.
type Manager struct {
	*Enqueuer
	registry *registry
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewManager builds the River client and registers every task. Jobs can be
// enqueued before Start.
func NewManager(pool *pgxpool.Pool, opts ...Option) (*Manager, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.maxWorkers == 0 {
		cfg.maxWorkers = defaultMaxWorkers
	}

	queues := map[string]river.QueueConfig{
		river.QueueDefault: {MaxWorkers: cfg.maxWorkers},
	}
	for name, n := range cfg.queues {
		queues[name] = river.QueueConfig{MaxWorkers: n}
	}

	periodic := make([]*river.PeriodicJob, 0, len(cfg.schedules))
	for _, s := range cfg.schedules {
		pj, err := s.periodicJob(cfg.registry)
		if err != nil {
			return nil, err
		}
		periodic = append(periodic, pj)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &taskWorker{registry: cfg.registry, logger: cfg.logger})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       queues,
		Workers:      workers,
		PeriodicJobs: periodic,
		Logger:       cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("job: create client: %w", err)
	}

	return &Manager{
		Enqueuer: &Enqueuer{pool: pool, client: client, logger: cfg.logger},
		registry: cfg.registry,
		logger:   cfg.logger,
	}, nil
}

// Start begins fetching and working jobs.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("job: start client: %w", err)
	}

	m.started = true
	m.logger.Info("job manager started", slog.Any("tasks", m.registry.names()))
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}
	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("job: stop client: %w", err)
	}

	m.started = false
	m.logger.Info("job manager stopped")
	return nil
}

// Enqueue rejects unknown task names before inserting.
func (m *Manager) Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) error {
	if _, ok := m.registry.get(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return m.Enqueuer.Enqueue(ctx, name, payload, opts...)
}

// EnqueueTx rejects unknown task names before inserting within tx.
func (m *Manager) EnqueueTx(ctx context.Context, tx pgx.Tx, name string, payload any, opts ...EnqueueOption) error {
	if _, ok := m.registry.get(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return m.Enqueuer.EnqueueTx(ctx, tx, name, payload, opts...)
}

// taskWorker dispatches every taskArgs job through the registry.
type taskWorker struct {
	river.WorkerDefaults[taskArgs]
	registry *registry
	logger   *slog.Logger
}

func (w *taskWorker) Work(ctx context.Context, j *river.Job[taskArgs]) error {
	return w.execute(ctx, j.Args, Attempt{JobID: j.ID, Number: j.Attempt, Max: j.MaxAttempts})
}

func (w *taskWorker) execute(ctx context.Context, args taskArgs, attempt Attempt) error {
	log := w.logger.With(
		slog.String("task", args.TaskName),
		slog.Int64("job_id", attempt.JobID),
		slog.Int("attempt", attempt.Number),
	)

	exec, ok := w.registry.get(args.TaskName)
	if !ok {
		log.ErrorContext(ctx, "unknown task")
		return river.JobCancel(fmt.Errorf("%w: %s", ErrUnknownTask, args.TaskName))
	}

	log.DebugContext(ctx, "executing task")

	err := exec.Execute(WithAttempt(ctx, attempt), args.Payload)
	switch {
	case err == nil:
		log.DebugContext(ctx, "task completed")
		return nil
	case IsFatal(err):
		log.ErrorContext(ctx, "task cancelled", slog.Any("error", err))
		return river.JobCancel(err)
	default:
		log.ErrorContext(ctx, "task failed",
			slog.Int("max_attempts", attempt.Max),
			slog.Any("error", err),
		)
		return err
	}
}

// StartFunc adapts Start for a startup hook list.
func (m *Manager) StartFunc() func(context.Context) error {
	return m.Start
}

// Shutdown adapts Stop for a shutdown hook list.
func (m *Manager) Shutdown() func(context.Context) error {
	return m.Stop
}
