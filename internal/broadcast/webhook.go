package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/broadcaster/pkg/lock"
	"github.com/dmitrymomot/broadcaster/pkg/logger"
	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

var eventActivity = map[string]ActivityType{
	"email.bounced":          ActivityBounced,
	"email.clicked":          ActivityClicked,
	"email.complained":       ActivityComplained,
	"email.delivered":        ActivityDelivered,
	"email.delivery_delayed": ActivityDeliveryDelayed,
	"email.failed":           ActivityFailed,
	"email.opened":           ActivityOpened,
	"email.received":         ActivityReceived,
	"email.sent":             ActivitySent,
}

// ActivityForEvent maps a provider event type to an activity type.
func ActivityForEvent(eventType string) (ActivityType, bool) {
	a, ok := eventActivity[eventType]
	return a, ok
}

func activityLevel(a ActivityType) slog.Level {
	switch a {
	case ActivityFailed:
		return slog.LevelError
	case ActivityBounced, ActivityComplained, ActivityDeliveryDelayed:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// WebhookResult reports whether a verified delivery changed anything.
type WebhookResult struct {
	Status    EmailStatus
	Activity  ActivityType
	EmailID   int64
	Processed bool
}

// Webhook reconciles provider delivery events into email activity.
type Webhook struct {
	store    EmailStore
	verifier mailer.WebhookVerifier
	opts     options
}

// NewWebhook returns a reconciler. A nil verifier disables it. With
// WithLocker, each delivery id is claimed for the replay window so that a
// redelivered event is applied once.
func NewWebhook(store EmailStore, verifier mailer.WebhookVerifier, opts ...Option) *Webhook {
	return &Webhook{
		store:    store,
		verifier: verifier,
		opts:     newOptions(opts),
	}
}

// Enabled reports whether a verifier is configured.
func (w *Webhook) Enabled() bool { return w.verifier != nil }

// Handle authenticates and applies one webhook delivery. Only authentication
// and payload errors are returned; everything after verification is logged
// and reported through WebhookResult.Processed so the provider is always
// acknowledged.
func (w *Webhook) Handle(ctx context.Context, header http.Header, body []byte) (WebhookResult, error) {
	if w.verifier == nil {
		return WebhookResult{}, ErrWebhookNotConfigured
	}

	event, err := w.verifier.Verify(header, body)
	if err != nil {
		w.opts.logger.WarnContext(ctx, "webhook rejected", slog.Any("error", err))
		return WebhookResult{}, err
	}

	log := w.opts.logger.With(
		slog.String("delivery_id", event.DeliveryID),
		slog.String("event", event.Type),
	)

	if event.ProviderID == "" {
		log.WarnContext(ctx, "webhook event has no email id")
		return WebhookResult{}, nil
	}

	activity, ok := ActivityForEvent(event.Type)
	if !ok {
		log.WarnContext(ctx, "unknown webhook event type")
		return WebhookResult{}, nil
	}

	release, fresh := w.claim(ctx, log, event.DeliveryID)
	if !fresh {
		log.InfoContext(ctx, "duplicate webhook delivery dropped")
		return WebhookResult{Activity: activity}, nil
	}

	res, err := w.apply(ctx, event.ProviderID, activity)
	if err != nil {
		release()
		log.ErrorContext(ctx, "webhook processing failed", slog.Any("error", err))
		return WebhookResult{Activity: activity}, nil
	}

	w.opts.metrics.WebhookEvent(activity)
	log.Log(logger.WithField(ctx, logger.EmailID, res.EmailID), activityLevel(activity), "email event recorded",
		slog.String("activity", string(activity)),
		slog.String("status", string(res.Status)),
	)
	return res, nil
}

func (w *Webhook) apply(ctx context.Context, providerID string, activity ActivityType) (WebhookResult, error) {
	res := WebhookResult{Activity: activity}

	email, err := w.store.FindEmailByProviderID(ctx, providerID)
	if err != nil {
		return res, fmt.Errorf("find email %q: %w", providerID, err)
	}
	res.EmailID = email.ID

	status, err := w.store.AppendActivity(ctx, email.ID, Activity{Type: activity, Timestamp: w.opts.now()})
	if err != nil {
		return res, fmt.Errorf("append activity: %w", err)
	}
	res.Status = status
	res.Processed = true
	return res, nil
}

// claim reserves the delivery id. Without a locker, or when the locker
// errors, every delivery is treated as fresh.
func (w *Webhook) claim(ctx context.Context, log *slog.Logger, deliveryID string) (release func(), fresh bool) {
	noop := func() {}
	if w.opts.locker == nil || deliveryID == "" {
		return noop, true
	}

	lease, err := w.opts.locker.TryAcquire(ctx, "webhook:"+deliveryID, w.opts.replayTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return noop, false
	}
	if err != nil {
		log.WarnContext(ctx, "webhook replay guard unavailable", slog.Any("error", err))
		return noop, true
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.WarnContext(ctx, "failed to release webhook claim", slog.Any("error", err))
		}
	}, true
}
