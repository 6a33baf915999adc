package broadcast

import "time"

// Config holds pipeline settings.
type Config struct {
	// Schedule is the five-field cron expression of the dispatcher.
	Schedule string `env:"BROADCAST_SCHEDULE" envDefault:"*/5 * * * *"`

	BroadcastQueue string `env:"BROADCAST_QUEUE" envDefault:"send-broadcasts"`
	EmailQueue     string `env:"BROADCAST_EMAIL_QUEUE" envDefault:"send-emails"`

	BatchSize          int `env:"BROADCAST_BATCH_SIZE" envDefault:"100"`
	MaxAttempts        int `env:"BROADCAST_MAX_ATTEMPTS" envDefault:"3"`
	EnqueueConcurrency int `env:"BROADCAST_ENQUEUE_CONCURRENCY" envDefault:"16"`
	EmailWorkers       int `env:"BROADCAST_EMAIL_WORKERS" envDefault:"10"`

	// PollTimeout bounds one dispatcher run and is the TTL of its lock.
	PollTimeout time.Duration `env:"BROADCAST_POLL_TIMEOUT" envDefault:"2m"`
	// UniqueFor is how long River rejects a repeated send-email job.
	UniqueFor time.Duration `env:"BROADCAST_UNIQUE_FOR" envDefault:"24h"`
	// TokenTTL is the lifetime of a persisted unsubscribe token record.
	TokenTTL time.Duration `env:"BROADCAST_TOKEN_TTL" envDefault:"720h"`
}

// DefaultConfig returns the values used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Schedule:           "*/5 * * * *",
		BroadcastQueue:     "send-broadcasts",
		EmailQueue:         "send-emails",
		BatchSize:          100,
		MaxAttempts:        3,
		EnqueueConcurrency: 16,
		EmailWorkers:       10,
		PollTimeout:        2 * time.Minute,
		UniqueFor:          24 * time.Hour,
		TokenTTL:           30 * 24 * time.Hour,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Schedule == "" {
		c.Schedule = d.Schedule
	}
	if c.BroadcastQueue == "" {
		c.BroadcastQueue = d.BroadcastQueue
	}
	if c.EmailQueue == "" {
		c.EmailQueue = d.EmailQueue
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.EnqueueConcurrency <= 0 {
		c.EnqueueConcurrency = d.EnqueueConcurrency
	}
	if c.EmailWorkers <= 0 {
		c.EmailWorkers = d.EmailWorkers
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.UniqueFor <= 0 {
		c.UniqueFor = d.UniqueFor
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = d.TokenTTL
	}
	return c
}
