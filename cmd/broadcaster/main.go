// Command broadcaster runs the email broadcast service: the HTTP API, the
// periodic dispatcher and the send-email workers in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/internal/config"
	"github.com/dmitrymomot/broadcaster/internal/httpapi"
	"github.com/dmitrymomot/broadcaster/internal/metrics"
	"github.com/dmitrymomot/broadcaster/internal/repository"
	"github.com/dmitrymomot/broadcaster/pkg/db"
	"github.com/dmitrymomot/broadcaster/pkg/job"
	"github.com/dmitrymomot/broadcaster/pkg/lock"
	"github.com/dmitrymomot/broadcaster/pkg/logger"
	"github.com/dmitrymomot/broadcaster/pkg/mailer"
	"github.com/dmitrymomot/broadcaster/pkg/mailer/resend"
	"github.com/dmitrymomot/broadcaster/pkg/mailer/ses"
	"github.com/dmitrymomot/broadcaster/pkg/redis"
	"github.com/dmitrymomot/broadcaster/pkg/token"
)

const flushTimeout = 2 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "broadcaster:", err)
		logger.Flush(flushTimeout)
		os.Exit(1)
	}
	logger.Flush(flushTimeout)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logger,
		logger.FieldExtractor(logger.RequestID),
		logger.FieldExtractor(logger.BroadcastID),
		logger.FieldExtractor(logger.ContactID),
		logger.FieldExtractor(logger.EmailID),
		logger.FieldExtractor(logger.UserID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, repository.Migrations(), cfg.DB.MigrationsTable, log); err != nil {
		return err
	}
	if err := job.Migrate(ctx, pool, log); err != nil {
		return err
	}

	repo := repository.New(pool)

	readiness := []httpapi.Option{httpapi.WithReadinessCheck("postgres", db.Healthcheck(pool))}

	// The dispatcher lock prefers Redis; the advisory lock is the fallback.
	// Webhook replay claims need a TTL, so without Redis they stay in memory.
	var dispatchLock, replayLock lock.Locker
	if cfg.Redis.Enabled() {
		client, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		locker := lock.NewRedis(client, lock.WithPrefix("broadcaster:lock:"))
		dispatchLock, replayLock = locker, locker
		readiness = append(readiness, httpapi.WithReadinessCheck("redis", redis.Healthcheck(client)))
	} else {
		sqlDB := stdlib.OpenDBFromPool(pool)
		defer func() { _ = sqlDB.Close() }()

		dispatchLock, replayLock = lock.NewPostgres(sqlDB), lock.NewMemory()
		log.Info("redis not configured, using postgres advisory lock")
	}

	codec, err := token.New(cfg.Token)
	if err != nil {
		return err
	}

	transport, verifier, err := newTransport(ctx, cfg, log)
	if err != nil {
		return err
	}
	layout, err := mailer.NewLayoutRenderer(cfg.Mailer)
	if err != nil {
		return err
	}
	content := mailer.NewContentRenderer(cfg.Mailer.ButtonClass)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(reg)
	if err != nil {
		return err
	}

	common := []broadcast.Option{broadcast.WithLogger(log), broadcast.WithMetrics(collector)}
	with := func(opts ...broadcast.Option) []broadcast.Option {
		return append(append([]broadcast.Option{}, common...), opts...)
	}

	enqueuer, err := job.NewEnqueuer(pool, job.WithEnqueuerLogger(log))
	if err != nil {
		return err
	}

	dispatcher := broadcast.NewDispatcher(repo, enqueuer, cfg.Broadcast, with(broadcast.WithLocker(dispatchLock))...)
	worker := broadcast.NewSendWorker(repo, transport, layout, content, codec, cfg.Broadcast, with()...)
	webhook := broadcast.NewWebhook(repo, verifier, with(
		broadcast.WithLocker(replayLock),
		broadcast.WithReplayWindow(cfg.Resend.WebhookTolerance),
	)...)
	unsubscriber := broadcast.NewUnsubscriber(repo, codec, with()...)
	broadcasts := broadcast.NewBroadcasts(repo, with()...)

	manager, err := job.NewManager(pool,
		job.WithLogger(log),
		job.WithQueue(cfg.Broadcast.BroadcastQueue, 1),
		job.WithQueue(cfg.Broadcast.EmailQueue, cfg.Broadcast.EmailWorkers),
		job.WithTask[broadcast.SendEmailInput](worker),
		job.WithScheduledTask(dispatcher,
			job.InQueue(cfg.Broadcast.BroadcastQueue),
			job.MaxAttempts(cfg.Broadcast.MaxAttempts),
		),
	)
	if err != nil {
		return err
	}
	readiness = append(readiness, httpapi.WithReadinessCheck("jobs", job.Healthcheck(manager)))

	api := httpapi.New(httpapi.Services{
		Broadcasts:   broadcasts,
		Tests:        worker,
		Unsubscriber: unsubscriber,
		Webhooks:     webhook,
	}, httpapi.Config{
		JWTSecret:    cfg.HTTP.JWTSecret,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, append(readiness, httpapi.WithLogger(log), httpapi.WithGatherer(reg))...)

	return httpapi.Serve(ctx, api.Handler(),
		httpapi.Address(cfg.HTTP.Addr),
		httpapi.Logger(log),
		httpapi.Timeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout),
		httpapi.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		httpapi.StartupHook(manager.StartFunc()),
		httpapi.ShutdownHook(manager.Shutdown()),
	)
}

// newTransport builds the configured sender. Only Resend signs webhooks, so
// the verifier stays nil for SES.
func newTransport(ctx context.Context, cfg config.Config, log *slog.Logger) (mailer.Sender, mailer.WebhookVerifier, error) {
	switch cfg.Mailer.Provider {
	case config.ProviderSES:
		sender, err := ses.New(ctx, cfg.SES)
		if err != nil {
			return nil, nil, err
		}
		return sender, nil, nil
	case config.ProviderResend:
		sender, err := resend.New(cfg.Resend)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Resend.WebhookSecret == "" {
			log.Warn("RESEND_WEBHOOK_SECRET not set, email webhooks are disabled")
			return sender, nil, nil
		}
		verifier, err := resend.NewVerifier(cfg.Resend)
		if err != nil {
			return nil, nil, err
		}
		return sender, verifier, nil
	default:
		return nil, nil, errors.Join(config.ErrUnknownProvider, fmt.Errorf("provider %q", cfg.Mailer.Provider))
	}
}
