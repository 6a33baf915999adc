// Package httpapi serves the broadcaster HTTP API: the admin send endpoints,
// the public unsubscribe endpoint, the provider webhook, health probes and
// Prometheus metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/pkg/health"
	"github.com/dmitrymomot/broadcaster/pkg/logger"
)

const defaultMaxBodyBytes = 1 << 20

// BroadcastService starts and inspects broadcasts.
type BroadcastService interface {
	StartSending(ctx context.Context, id int64) (broadcast.Meta, error)
	Get(ctx context.Context, id int64) (*broadcast.Broadcast, error)
}

// TestSender sends a one-off preview of a broadcast.
type TestSender interface {
	SendTest(ctx context.Context, broadcastID int64, address string) error
}

// Unsubscriber opts a contact out by token.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, token string) (broadcast.UnsubscribeResult, error)
}

// WebhookHandler applies a provider webhook delivery.
type WebhookHandler interface {
	Handle(ctx context.Context, header http.Header, body []byte) (broadcast.WebhookResult, error)
}

// Services are the domain services behind the endpoints.
type Services struct {
	Broadcasts   BroadcastService
	Tests        TestSender
	Unsubscriber Unsubscriber
	Webhooks     WebhookHandler
}

// Config holds the API settings.
type Config struct {
	JWTSecret    string
	CORSOrigins  []string
	MaxBodyBytes int64
}

// API is the HTTP surface of the service.
type API struct {
	broadcasts   BroadcastService
	tests        TestSender
	unsubscriber Unsubscriber
	webhooks     WebhookHandler

	log      *slog.Logger
	gatherer prometheus.Gatherer
	checks   health.Checks
	cfg      Config
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the logger. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

// WithReadinessCheck adds a named check to /health/ready.
func WithReadinessCheck(name string, fn health.CheckFunc) Option {
	return func(a *API) {
		if fn != nil {
			a.checks[name] = fn
		}
	}
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *API) {
		a.gatherer = g
	}
}

// New builds the API.
func New(svc Services, cfg Config, opts ...Option) *API {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	a := &API{
		broadcasts:   svc.Broadcasts,
		tests:        svc.Tests,
		unsubscriber: svc.Unsubscriber,
		webhooks:     svc.Webhooks,
		log:          logger.NewNope(),
		checks:       make(health.Checks),
		cfg:          cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the router.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withRequestID)
	r.Use(middleware.RealIP)
	r.Use(recoverer(a.log))
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health/live", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(a.checks, health.WithLogger(a.log)))
	if a.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(limitBody(a.cfg.MaxBodyBytes))

		r.Group(func(r chi.Router) {
			r.Use(requireJWT([]byte(a.cfg.JWTSecret)))
			r.Post("/broadcasts/send", a.handle(a.sendBroadcast))
			r.Post("/broadcasts/send-test", a.handle(a.sendTest))
			r.Get("/broadcasts/{id}", a.handle(a.getBroadcast))
		})

		r.Group(func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: a.cfg.CORSOrigins,
				AllowedMethods: []string{http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Content-Type"},
				MaxAge:         300,
			}))
			r.Options("/unsubscribe", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			r.Post("/unsubscribe", a.handle(a.unsubscribe))
		})

		r.Post("/webhooks/email", a.handle(a.webhook))
	})

	return r
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
