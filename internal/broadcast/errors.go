package broadcast

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	ErrBroadcastNotFound = errors.New("broadcast: broadcast not found")
	ErrContactNotFound   = errors.New("broadcast: contact not found")
	ErrEmailNotFound     = errors.New("broadcast: email not found")
	ErrTokenNotFound     = errors.New("broadcast: unsubscribe token not found")

	ErrInvalidStatus    = errors.New("broadcast: broadcast is not in the required status")
	ErrInvalidBroadcast = errors.New("broadcast: broadcast is not valid")
	ErrInvalidInput     = errors.New("broadcast: invalid task input")
	ErrInvalidAddress   = errors.New("broadcast: invalid email address")

	// ErrCursorConflict means another writer moved the cursor first.
	ErrCursorConflict = errors.New("broadcast: cursor was advanced concurrently")
	// ErrDuplicateEmail means an email already exists for the pair.
	ErrDuplicateEmail = errors.New("broadcast: email already exists for broadcast and contact")

	ErrTokenRequired = errors.New("broadcast: token is required")
	ErrTokenInvalid  = errors.New("broadcast: invalid token")
	ErrTokenExpired  = errors.New("broadcast: token has expired")

	ErrWebhookNotConfigured = errors.New("broadcast: webhook verification is not configured")
)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrInvalidBroadcast, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidBroadcast }
