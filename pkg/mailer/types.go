package mailer

import (
	"errors"
	"regexp"
	"strings"
)

// Email is a fully rendered message for exactly one recipient.
type Email struct {
	Headers        map[string]string
	Tags           map[string]string
	From           string
	To             string
	ReplyTo        string
	Subject        string
	HTML           string
	Text           string
	IdempotencyKey string
}

// Validate reports every missing required field at once.
func (e *Email) Validate() error {
	var errs []error
	if strings.TrimSpace(e.To) == "" {
		errs = append(errs, ErrNoRecipient)
	}
	if strings.TrimSpace(e.From) == "" {
		errs = append(errs, ErrNoSender)
	}
	if strings.TrimSpace(e.Subject) == "" {
		errs = append(errs, ErrNoSubject)
	}
	if strings.TrimSpace(e.HTML) == "" {
		errs = append(errs, ErrNoContent)
	}
	return errors.Join(errs...)
}

// FormatAddress returns `"Name" <address>` when name is set, otherwise the bare address.
func FormatAddress(name, address string) string {
	if name == "" {
		return address
	}
	return `"` + name + `" <` + address + `>`
}

var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@][^\s.@]*\.[^\s@]+$`)

// ValidAddress reports whether s looks like a deliverable address.
// Plus-addressing is accepted; a domain without a dot is not.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}
