package resend

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

// Sender implements mailer.Sender using the Resend API.
type Sender struct {
	client *resend.Client
}

// SenderOption configures a Sender.
type SenderOption func(*resend.Client) error

// WithBaseURL points the client at a different API host.
func WithBaseURL(raw string) SenderOption {
	return func(c *resend.Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("resend: parse base url: %w", err)
		}
		c.BaseURL = u
		return nil
	}
}

// New creates a Resend sender.
func New(cfg Config, opts ...SenderOption) (*Sender, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client := resend.NewClient(cfg.APIKey)
	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	return &Sender{client: client}, nil
}

// Send implements mailer.Sender. The idempotency key is passed through so
// Resend drops a repeated request for the same recipient.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) (*mailer.Result, error) {
	if err := email.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", mailer.ErrRejected, err)
	}

	req := &resend.SendEmailRequest{
		From:    email.From,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
		Headers: email.Headers,
		Tags:    convertTags(email.Tags),
	}

	opts := &resend.SendEmailOptions{IdempotencyKey: email.IdempotencyKey}

	resp, err := s.client.Emails.SendWithOptions(ctx, req, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: resend: %w", mailer.ErrSendFailed, err)
	}

	return &mailer.Result{ProviderID: resp.Id}, nil
}

func convertTags(tags map[string]string) []resend.Tag {
	if len(tags) == 0 {
		return nil
	}

	result := make([]resend.Tag, 0, len(tags))
	for _, name := range slices.Sorted(maps.Keys(tags)) {
		result = append(result, resend.Tag{Name: name, Value: tags[name]})
	}
	return result
}
