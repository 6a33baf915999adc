package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/dmitrymomot/broadcaster/pkg/job"
	"github.com/dmitrymomot/broadcaster/pkg/logger"
	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

// TokenIssuer signs unsubscribe tokens.
type TokenIssuer interface {
	Issue(tokenID string) (string, error)
}

// ContentRenderer turns broadcast content into HTML and plain text.
type ContentRenderer interface {
	Render(source string) (*mailer.Content, error)
}

// SendWorker delivers one broadcast to one contact. It implements the
// send-email task.
type SendWorker struct {
	store     Store
	transport mailer.Sender
	layout    mailer.Renderer
	content   ContentRenderer
	tokens    TokenIssuer
	cfg       Config
	opts      options
}

// NewSendWorker returns a send worker.
func NewSendWorker(
	store Store,
	transport mailer.Sender,
	layout mailer.Renderer,
	content ContentRenderer,
	tokens TokenIssuer,
	cfg Config,
	opts ...Option,
) *SendWorker {
	return &SendWorker{
		store:     store,
		transport: transport,
		layout:    layout,
		content:   content,
		tokens:    tokens,
		cfg:       cfg.withDefaults(),
		opts:      newOptions(opts),
	}
}

// Name implements the task contract.
func (w *SendWorker) Name() string { return TaskSendEmail }

// Handle sends the broadcast to the contact at most once. An existing email
// row short-circuits the send, except a queued row without a provider id,
// which is resumed with the same idempotency key.
func (w *SendWorker) Handle(ctx context.Context, in SendEmailInput) error {
	if in.BroadcastID <= 0 || in.ContactID <= 0 {
		return job.Fatal(fmt.Errorf("%w: broadcastId and contactId are required", ErrInvalidInput))
	}

	ctx = logger.WithField(ctx, logger.BroadcastID, in.BroadcastID)
	ctx = logger.WithField(ctx, logger.ContactID, in.ContactID)
	log := w.opts.logger

	existing, err := w.store.FindEmail(ctx, in.BroadcastID, in.ContactID)
	switch {
	case err == nil:
		return w.resume(ctx, existing)
	case !errors.Is(err, ErrEmailNotFound):
		return fmt.Errorf("broadcast: check existing email: %w", err)
	}

	contact, err := w.store.GetContact(ctx, in.ContactID)
	if errors.Is(err, ErrContactNotFound) {
		return job.Fatal(err)
	}
	if err != nil {
		return fmt.Errorf("broadcast: load contact: %w", err)
	}

	b, err := w.store.GetBroadcast(ctx, in.BroadcastID)
	if errors.Is(err, ErrBroadcastNotFound) {
		return job.Fatal(err)
	}
	if err != nil {
		return fmt.Errorf("broadcast: load broadcast: %w", err)
	}

	content, err := w.content.Render(b.Content)
	if err != nil {
		return job.Fatal(fmt.Errorf("broadcast: render content: %w", err))
	}

	tokenID := uuid.NewString()
	tok, err := w.tokens.Issue(tokenID)
	if err != nil {
		return fmt.Errorf("broadcast: issue unsubscribe token: %w", err)
	}

	from := mailer.FormatAddress(b.FromName, b.FromAddress)
	html, err := w.layout.Render(mailer.Message{
		From:        from,
		To:          contact.Email,
		Subject:     b.Subject,
		PreviewText: previewText(b, content),
		HTML:        content.HTML,
		PlainText:   content.PlainText,
		Markdown:    content.Markdown,
		Token:       tok,
	})
	if err != nil {
		return job.Fatal(fmt.Errorf("broadcast: render email: %w", err))
	}

	email := &Email{
		BroadcastID: b.ID,
		ContactID:   contact.ID,
		From:        from,
		To:          contact.Email,
		ReplyTo:     b.ReplyTo,
		Subject:     b.Subject,
		HTML:        html,
		Text:        content.PlainText,
		Status:      EmailQueued,
	}
	now := w.opts.now()
	record := &UnsubscribeToken{
		ID:        tokenID,
		CreatedAt: now,
		ExpiresAt: now.Add(w.cfg.TokenTTL),
	}
	// A queued row always has its token record; resume depends on it.
	if err := w.store.CreateEmailWithToken(ctx, email, record); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			log.InfoContext(ctx, "email already created by a concurrent attempt")
			return nil
		}
		return fmt.Errorf("broadcast: create email: %w", err)
	}
	ctx = logger.WithField(ctx, logger.EmailID, email.ID)

	return w.deliver(ctx, email)
}

func (w *SendWorker) resume(ctx context.Context, email *Email) error {
	ctx = logger.WithField(ctx, logger.EmailID, email.ID)
	if email.Status != EmailQueued || email.ProviderID != "" {
		w.opts.logger.InfoContext(ctx, "email already sent", slog.String("status", string(email.Status)))
		return nil
	}
	w.opts.logger.InfoContext(ctx, "resuming queued email")
	return w.deliver(ctx, email)
}

func (w *SendWorker) deliver(ctx context.Context, email *Email) error {
	log := w.opts.logger

	res, err := w.transport.Send(ctx, &mailer.Email{
		From:           email.From,
		To:             email.To,
		ReplyTo:        email.ReplyTo,
		Subject:        email.Subject,
		HTML:           email.HTML,
		Text:           email.Text,
		IdempotencyKey: IdempotencyKey(email.BroadcastID, email.ContactID),
		Tags: map[string]string{
			"broadcast_id": strconv.FormatInt(email.BroadcastID, 10),
		},
	})
	if err != nil {
		if errors.Is(err, mailer.ErrRejected) {
			log.ErrorContext(ctx, "email rejected by provider", slog.Any("error", err))
			w.markFailed(ctx, email.ID)
			return job.Fatal(err)
		}
		if attempt, ok := job.AttemptFromContext(ctx); ok && attempt.Final() {
			log.ErrorContext(ctx, "email send failed on final attempt",
				slog.Int("attempt", attempt.Number),
				slog.Any("error", err),
			)
			w.markFailed(ctx, email.ID)
		}
		return fmt.Errorf("broadcast: send email: %w", err)
	}

	if err := w.store.MarkEmailSent(ctx, email.ID, res.ProviderID, w.opts.now()); err != nil {
		return fmt.Errorf("broadcast: mark email sent: %w", err)
	}
	w.opts.metrics.EmailSent()
	log.InfoContext(ctx, "email sent", slog.String("provider_id", res.ProviderID))
	return nil
}

func (w *SendWorker) markFailed(ctx context.Context, id int64) {
	w.opts.metrics.EmailFailed()
	if err := w.store.MarkEmailFailed(ctx, id, w.opts.now()); err != nil {
		w.opts.logger.ErrorContext(ctx, "failed to mark email failed", slog.Any("error", err))
	}
}

// SendTest renders the broadcast for address and sends it without an
// unsubscribe token. Nothing is persisted.
func (w *SendWorker) SendTest(ctx context.Context, broadcastID int64, address string) error {
	if !mailer.ValidAddress(address) {
		return ErrInvalidAddress
	}

	b, err := w.store.GetBroadcast(ctx, broadcastID)
	if err != nil {
		return err
	}
	if err := b.validateForTest(); err != nil {
		return err
	}

	content, err := w.content.Render(b.Content)
	if err != nil {
		return fmt.Errorf("broadcast: render content: %w", err)
	}

	from := mailer.FormatAddress(b.FromName, b.FromAddress)
	html, err := w.layout.Render(mailer.Message{
		From:        from,
		To:          address,
		Subject:     b.Subject,
		PreviewText: previewText(b, content),
		HTML:        content.HTML,
		PlainText:   content.PlainText,
		Markdown:    content.Markdown,
	})
	if err != nil {
		return fmt.Errorf("broadcast: render email: %w", err)
	}

	if _, err := w.transport.Send(ctx, &mailer.Email{
		From:    from,
		To:      address,
		ReplyTo: b.ReplyTo,
		Subject: b.Subject,
		HTML:    html,
		Text:    content.PlainText,
	}); err != nil {
		return fmt.Errorf("broadcast: send test email: %w", err)
	}

	w.opts.logger.InfoContext(ctx, "test email sent",
		slog.Int64(logger.BroadcastID, broadcastID),
		slog.String("to", address),
	)
	return nil
}

func previewText(b *Broadcast, c *mailer.Content) string {
	if b.PreviewText != "" {
		return b.PreviewText
	}
	return c.MetaString("preview")
}
