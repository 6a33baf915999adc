package broadcast

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/broadcaster/pkg/lock"
	"github.com/dmitrymomot/broadcaster/pkg/logger"
)

// Metrics receives pipeline events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	EmailsQueued(n int)
	BroadcastFinished(status Status)
	EmailSent()
	EmailFailed()
	WebhookEvent(activity ActivityType)
	Unsubscribed()
}

type nopMetrics struct{}

func (nopMetrics) EmailsQueued(int)          {}
func (nopMetrics) BroadcastFinished(Status)  {}
func (nopMetrics) EmailSent()                {}
func (nopMetrics) EmailFailed()              {}
func (nopMetrics) WebhookEvent(ActivityType) {}
func (nopMetrics) Unsubscribed()             {}

type options struct {
	logger  *slog.Logger
	metrics Metrics
	locker  lock.Locker
	now     func() time.Time
	// replayTTL is how long a webhook delivery id stays claimed.
	replayTTL time.Duration
}

// Option configures a service of this package.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger:    logger.NewNope(),
		metrics:   nopMetrics{},
		now:       time.Now,
		replayTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLocker sets the locker. The dispatcher uses it for single-flight polls
// and the webhook reconciler for its replay guard.
func WithLocker(l lock.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithReplayWindow sets how long a webhook delivery id is remembered.
func WithReplayWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.replayTTL = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
