// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/pkg/db"
	"github.com/dmitrymomot/broadcaster/pkg/logger"
	"github.com/dmitrymomot/broadcaster/pkg/mailer"
	"github.com/dmitrymomot/broadcaster/pkg/mailer/resend"
	"github.com/dmitrymomot/broadcaster/pkg/mailer/ses"
	"github.com/dmitrymomot/broadcaster/pkg/redis"
	"github.com/dmitrymomot/broadcaster/pkg/token"
)

// Mail providers accepted in MAILER_PROVIDER.
const (
	ProviderResend = "resend"
	ProviderSES    = "ses"
)

var (
	ErrUnknownProvider = errors.New("config: unknown mailer provider")
	ErrResendAPIKey    = errors.New("config: RESEND_API_KEY is required for the resend provider")
)

// HTTP holds the API server settings.
type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret       string        `env:"JWT_SECRET,required"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	// MaxBodyBytes caps request bodies, webhooks included.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Config is the whole service configuration.
type Config struct {
	Logger    logger.Config
	DB        db.Config
	Redis     redis.Config
	Mailer    mailer.Config
	Resend    resend.Config
	SES       ses.Config
	Token     token.Config
	Broadcast broadcast.Config
	HTTP      HTTP
}

// Load parses the environment.
func Load() (Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Mailer.Provider {
	case ProviderResend:
		if c.Resend.APIKey == "" {
			return ErrResendAPIKey
		}
	case ProviderSES:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Mailer.Provider)
	}
	return nil
}
