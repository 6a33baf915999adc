package resend

import "errors"

var (
	ErrMissingAPIKey = errors.New("resend: api key is required")
	ErrInvalidSecret = errors.New("resend: invalid webhook secret")
)
