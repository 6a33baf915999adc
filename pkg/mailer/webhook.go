package mailer

import "net/http"

// WebhookEvent is a provider delivery event after authentication.
type WebhookEvent struct {
	// DeliveryID identifies the webhook delivery; retries of the same event share it.
	DeliveryID string
	// Type is the provider event name, e.g. "email.delivered".
	Type string
	// ProviderID is the message id returned by Sender.Send. Empty for events
	// that do not refer to a sent message.
	ProviderID string
	CreatedAt  string
}

// WebhookVerifier authenticates a raw webhook request and decodes it.
//
// Verify returns ErrWebhookUnauthorized when the request cannot be trusted and
// ErrWebhookMalformed when it is authentic but cannot be decoded.
type WebhookVerifier interface {
	Verify(header http.Header, body []byte) (*WebhookEvent, error)
}
