package mailer

import "context"

// Sender delivers a single rendered email.
type Sender interface {
	// Send delivers the email. Providers that support it must forward
	// Email.IdempotencyKey so a retried call does not produce a second message.
	Send(ctx context.Context, email *Email) (*Result, error)
}

// Result is what the provider reports for an accepted message.
type Result struct {
	// ProviderID correlates later webhook events with the stored email.
	ProviderID string
}
