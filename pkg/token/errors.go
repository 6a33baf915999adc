package token

import (
	"errors"
	"fmt"
)

var (
	// ErrSecretRequired is returned when a codec is created without a signing secret.
	ErrSecretRequired = errors.New("token: signing secret is required")

	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("token: invalid token")

	// ErrExpiredToken is returned for a well-signed token older than the maximum age.
	// It wraps ErrInvalidToken so callers that only care about validity can match either.
	ErrExpiredToken = fmt.Errorf("%w: expired", ErrInvalidToken)
)
