package token

import "time"

// DefaultMaxAge is how long an issued token stays valid.
const DefaultMaxAge = 30 * 24 * time.Hour

// Config holds token codec configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	Secret string        `env:"UNSUBSCRIBE_TOKEN_SECRET,required"`
	MaxAge time.Duration `env:"UNSUBSCRIBE_TOKEN_MAX_AGE" envDefault:"720h"`
}
