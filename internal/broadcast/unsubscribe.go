package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/broadcaster/pkg/logger"
	"github.com/dmitrymomot/broadcaster/pkg/token"
)

// TokenVerifier checks signed unsubscribe tokens.
type TokenVerifier interface {
	Verify(tok string) (token.Payload, error)
}

// UnsubscribeStore is what the unsubscribe flow reads and updates.
type UnsubscribeStore interface {
	TokenStore
	GetEmail(ctx context.Context, id int64) (*Email, error)
	AppendActivity(ctx context.Context, id int64, a Activity) (EmailStatus, error)
	FindContactByEmail(ctx context.Context, address string) (*Contact, error)
	SetEmailOptIn(ctx context.Context, id int64, optIn bool) error
}

// UnsubscribeResult describes a successful unsubscribe.
type UnsubscribeResult struct {
	ContactID           int64
	EmailID             int64
	AlreadyUnsubscribed bool
}

// Unsubscriber opts contacts out of email through signed tokens.
type Unsubscriber struct {
	store  UnsubscribeStore
	tokens TokenVerifier
	opts   options
}

// NewUnsubscriber returns an unsubscriber.
func NewUnsubscriber(store UnsubscribeStore, tokens TokenVerifier, opts ...Option) *Unsubscriber {
	return &Unsubscriber{store: store, tokens: tokens, opts: newOptions(opts)}
}

// Unsubscribe resolves tok to a contact and turns off its email opt-in. The
// signature is checked before any lookup. A contact that already opted out is
// reported as such and left untouched.
func (u *Unsubscriber) Unsubscribe(ctx context.Context, tok string) (UnsubscribeResult, error) {
	var res UnsubscribeResult
	log := u.opts.logger

	if tok == "" {
		return res, ErrTokenRequired
	}

	payload, err := u.tokens.Verify(tok)
	if err != nil {
		log.InfoContext(ctx, "unsubscribe token rejected", slog.Any("error", err))
		return res, ErrTokenInvalid
	}

	record, err := u.store.GetUnsubscribeToken(ctx, payload.TokenID)
	if errors.Is(err, ErrTokenNotFound) {
		return res, ErrTokenInvalid
	}
	if err != nil {
		return res, fmt.Errorf("broadcast: load unsubscribe token: %w", err)
	}
	if record.Expired(u.opts.now()) {
		return res, ErrTokenExpired
	}

	res.EmailID = record.EmailID
	ctx = logger.WithField(ctx, logger.EmailID, record.EmailID)

	email, err := u.store.GetEmail(ctx, record.EmailID)
	if errors.Is(err, ErrEmailNotFound) {
		log.ErrorContext(ctx, "email for unsubscribe token not found", slog.String("token_id", record.ID))
		return res, ErrEmailNotFound
	}
	if err != nil {
		return res, fmt.Errorf("broadcast: load email: %w", err)
	}

	contact, err := u.store.FindContactByEmail(ctx, email.To)
	if errors.Is(err, ErrContactNotFound) {
		log.ErrorContext(ctx, "contact for unsubscribe not found")
		return res, ErrContactNotFound
	}
	if err != nil {
		return res, fmt.Errorf("broadcast: find contact: %w", err)
	}

	res.ContactID = contact.ID
	ctx = logger.WithField(ctx, logger.ContactID, contact.ID)

	if !contact.EmailOptIn {
		log.InfoContext(ctx, "contact already unsubscribed")
		res.AlreadyUnsubscribed = true
		return res, nil
	}

	// Activity goes first: if the opt-out write fails, a retry still finds
	// the contact opted in and completes both.
	if _, err := u.store.AppendActivity(ctx, email.ID, Activity{
		Type:      ActivityUnsubscribed,
		Timestamp: u.opts.now(),
	}); err != nil {
		return res, fmt.Errorf("broadcast: record unsubscribe: %w", err)
	}
	if err := u.store.SetEmailOptIn(ctx, contact.ID, false); err != nil {
		return res, fmt.Errorf("broadcast: opt out contact: %w", err)
	}

	u.opts.metrics.Unsubscribed()
	log.InfoContext(ctx, "contact unsubscribed")
	return res, nil
}
