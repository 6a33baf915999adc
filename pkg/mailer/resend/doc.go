// Package resend provides the Resend implementation of the mailer capabilities:
// a Sender that forwards idempotency keys and a Verifier for the Svix-signed
// delivery webhooks.
package resend
