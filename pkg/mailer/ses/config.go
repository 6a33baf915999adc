package ses

// Config holds Amazon SES settings.
// Embed it in the app config for env parsing with caarlos0/env.
// Static keys are optional; without them the default AWS credential chain is used.
type Config struct {
	Region           string `env:"SES_REGION" envDefault:"us-east-1"`
	AccessKeyID      string `env:"SES_ACCESS_KEY_ID"`
	SecretAccessKey  string `env:"SES_SECRET_ACCESS_KEY"`
	ConfigurationSet string `env:"SES_CONFIGURATION_SET"`
}
