package logger

import (
	"context"
	"log/slog"
)

// Field names shared by the pipeline.
const (
	BroadcastID = "broadcast_id"
	ContactID   = "contact_id"
	EmailID     = "email_id"
	RequestID   = "request_id"
	UserID      = "user_id"
)

type fieldKey string

// WithField stores a value that FieldExtractor(key) adds to every log record
// written with the returned context.
func WithField(ctx context.Context, key string, value any) context.Context {
	return context.WithValue(ctx, fieldKey(key), value)
}

// FieldExtractor reads a value stored with WithField.
func FieldExtractor(key string) ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		v := ctx.Value(fieldKey(key))
		if v == nil {
			return slog.Attr{}, false
		}
		return slog.Any(key, v), true
	}
}
