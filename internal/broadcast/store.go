package broadcast

import (
	"context"
	"time"

	"github.com/dmitrymomot/broadcaster/pkg/job"
)

// BroadcastStore persists broadcasts.
type BroadcastStore interface {
	// OldestSending returns the sending broadcast with the lowest id, or
	// ErrBroadcastNotFound.
	OldestSending(ctx context.Context) (*Broadcast, error)
	GetBroadcast(ctx context.Context, id int64) (*Broadcast, error)
	// TransitionBroadcast moves a broadcast from one status to another. It
	// returns ErrInvalidStatus when the broadcast is not in from.
	TransitionBroadcast(ctx context.Context, id int64, from, to Status) error
	// StartSending moves a draft to sending with a fresh progress snapshot.
	StartSending(ctx context.Context, id int64, contactsCount int64) error
	// AdvanceCursor moves the cursor from expected to next and adds processed
	// to the processed count. It returns ErrCursorConflict when the broadcast
	// is no longer sending at expected.
	AdvanceCursor(ctx context.Context, id, expected, next int64, processed int) error
}

// ContactStore reads and updates contacts.
type ContactStore interface {
	// NextRecipients returns up to limit matching contacts ordered by id.
	NextRecipients(ctx context.Context, f RecipientFilter, limit int) ([]Contact, error)
	CountRecipients(ctx context.Context, f RecipientFilter) (int64, error)
	GetContact(ctx context.Context, id int64) (*Contact, error)
	FindContactByEmail(ctx context.Context, address string) (*Contact, error)
	SetEmailOptIn(ctx context.Context, id int64, optIn bool) error
}

// EmailStore persists emails and their activity.
type EmailStore interface {
	FindEmail(ctx context.Context, broadcastID, contactID int64) (*Email, error)
	// CreateEmailWithToken inserts e and the unsubscribe token record for it
	// in one transaction, setting e.ID and t.EmailID. Nothing is stored when
	// either insert fails. It returns ErrDuplicateEmail when a row for the
	// same broadcast and contact exists.
	CreateEmailWithToken(ctx context.Context, e *Email, t *UnsubscribeToken) error
	GetEmail(ctx context.Context, id int64) (*Email, error)
	FindEmailByProviderID(ctx context.Context, providerID string) (*Email, error)
	// MarkEmailSent stores the provider id and records a sent activity.
	MarkEmailSent(ctx context.Context, id int64, providerID string, at time.Time) error
	// MarkEmailFailed records a failed activity and sets the failed status.
	MarkEmailFailed(ctx context.Context, id int64, at time.Time) error
	// AppendActivity atomically appends a and recomputes the status.
	AppendActivity(ctx context.Context, id int64, a Activity) (EmailStatus, error)
}

// TokenStore reads unsubscribe token records. They are written with their
// email by CreateEmailWithToken.
type TokenStore interface {
	GetUnsubscribeToken(ctx context.Context, id string) (*UnsubscribeToken, error)
}

// Store is everything the pipeline persists.
type Store interface {
	BroadcastStore
	ContactStore
	EmailStore
	TokenStore
}

// DispatchStore is what the dispatcher reads and advances.
type DispatchStore interface {
	BroadcastStore
	ContactStore
}

// Queue enqueues background tasks.
type Queue interface {
	Enqueue(ctx context.Context, name string, payload any, opts ...job.EnqueueOption) error
}
