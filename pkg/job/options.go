package job

import (
	"context"
	"log/slog"
)

type config struct {
	registry   *registry
	queues     map[string]int
	logger     *slog.Logger
	schedules  []schedule
	maxWorkers int
}

func newConfig() *config {
	return &config{
		registry: newRegistry(),
		queues:   make(map[string]int),
	}
}

// Option configures a Manager.
type Option func(*config)

// WithTask registers a task. The payload type P is inferred from Handle.
func WithTask[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}](task T) Option {
	return func(c *config) {
		c.registry.register(task.Name(), &typedTask[P, T]{task: task})
	}
}

// WithScheduledTask registers a periodic task. Schedule returns a five-field
// cron expression. opts apply to every periodic insert, so queue and retry
// limits can be set the same way as for Enqueue.
func WithScheduledTask[T interface {
	Name() string
	Schedule() string
	Handle(context.Context) error
}](task T, opts ...EnqueueOption) Option {
	return func(c *config) {
		c.schedules = append(c.schedules, schedule{
			name:   task.Name(),
			expr:   task.Schedule(),
			handle: task.Handle,
			opts:   opts,
		})
	}
}

// WithQueue adds a named queue with its own worker limit.
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithLogger sets the logger for the manager and River. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxWorkers sets the worker limit of the default queue. Defaults to 100.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}
