package mailer

import "errors"

var (
	ErrNoRecipient    = errors.New("mailer: email must have a recipient")
	ErrNoSender       = errors.New("mailer: email must have a sender")
	ErrNoSubject      = errors.New("mailer: email must have a subject")
	ErrNoContent      = errors.New("mailer: email must have HTML content")
	ErrInvalidAddress = errors.New("mailer: invalid email address")

	ErrInvalidFrontmatter = errors.New("mailer: invalid frontmatter")
	ErrLayoutNotFound     = errors.New("mailer: layout not found")
	ErrRenderFailed       = errors.New("mailer: failed to render email")
	ErrInvalidBaseURL     = errors.New("mailer: invalid unsubscribe base URL")

	ErrSendFailed = errors.New("mailer: failed to send email")
	// ErrRejected marks a send the provider refused permanently. Retrying the
	// same message cannot succeed.
	ErrRejected = errors.New("mailer: message rejected by provider")

	ErrWebhookUnauthorized = errors.New("mailer: webhook authentication failed")
	ErrWebhookMalformed    = errors.New("mailer: malformed webhook payload")
)
