package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "."

// Strict decoding rejects non-canonical trailing bits, so every character of a
// signature is significant.
var encoding = base64.RawURLEncoding.Strict()

// Payload is the signed content of a token.
type Payload struct {
	TokenID   string `json:"tokenId"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// IssuedAt returns the payload timestamp as time.Time.
func (p Payload) IssuedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Codec signs and verifies tokens with a fixed secret.
// Safe for concurrent use.
type Codec struct {
	now    func() time.Time
	secret []byte
	maxAge time.Duration
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source. Useful in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a codec from the given config.
// Returns ErrSecretRequired if cfg.Secret is empty.
func New(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretRequired
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	c := &Codec{
		secret: []byte(cfg.Secret),
		maxAge: maxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Issue creates a signed token for tokenID stamped with the current time.
func (c *Codec) Issue(tokenID string) (string, error) {
	raw, err := json.Marshal(Payload{
		TokenID:   tokenID,
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("token: marshal payload: %w", err)
	}

	payload := encoding.EncodeToString(raw)
	return payload + separator + encoding.EncodeToString(c.sign(payload)), nil
}

// Verify checks the signature and age of tok and returns its payload.
// Every failure is reported as ErrInvalidToken (or ErrExpiredToken); Verify never panics.
func (c *Codec) Verify(tok string) (Payload, error) {
	parts := strings.Split(tok, separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Payload{}, ErrInvalidToken
	}

	signature, err := encoding.DecodeString(parts[1])
	if err != nil {
		return Payload{}, ErrInvalidToken
	}

	if !hmac.Equal(signature, c.sign(parts[0])) {
		return Payload{}, ErrInvalidToken
	}

	raw, err := encoding.DecodeString(parts[0])
	if err != nil {
		return Payload{}, ErrInvalidToken
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, ErrInvalidToken
	}
	if p.TokenID == "" {
		return Payload{}, ErrInvalidToken
	}

	if c.now().Sub(p.IssuedAt()) > c.maxAge {
		return Payload{}, ErrExpiredToken
	}

	return p, nil
}

func (c *Codec) sign(payload string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
