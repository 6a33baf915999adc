package resend

import "time"

// Config holds Resend provider settings.
// Embed it in the app config for env parsing with caarlos0/env.
type Config struct {
	APIKey string `env:"RESEND_API_KEY"`
	// WebhookSecret is the "whsec_..." signing secret of the webhook endpoint.
	// Without it webhooks are not accepted.
	WebhookSecret    string        `env:"RESEND_WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `env:"RESEND_WEBHOOK_TOLERANCE" envDefault:"5m"`
}
