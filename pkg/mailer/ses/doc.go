// Package ses provides a mailer.Sender backed by Amazon SES v2.
//
// SES has no request idempotency. The idempotency key travels as a message
// tag so SES event destinations can correlate repeated sends, but SES itself
// delivers every request. A send retried after a lost response can reach the
// recipient twice; use the Resend provider where that matters.
package ses
