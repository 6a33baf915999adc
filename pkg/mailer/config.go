package mailer

// Config holds provider-independent mailer settings.
// Embed it in the app config for env parsing with caarlos0/env.
type Config struct {
	// Provider selects the Sender implementation: "resend" or "ses".
	Provider string `env:"MAILER_PROVIDER" envDefault:"resend"`
	// UnsubscribeURL is the public page that receives the token as ?token=.
	UnsubscribeURL string `env:"MAILER_UNSUBSCRIBE_URL,required"`
	ButtonClass    string `env:"MAILER_BUTTON_CLASS" envDefault:"btn"`
}
