package broadcast

import (
	"time"
)

// Status is the lifecycle state of a broadcast.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Audience selects which contacts receive a broadcast.
type Audience string

const (
	AudienceAll  Audience = "all"
	AudienceTags Audience = "tags"
)

// Meta is the progress snapshot of a sending broadcast. All three counters
// only grow while the broadcast is sending.
type Meta struct {
	ContactsCount          int64 `json:"contactsCount"`
	ProcessedCount         int64 `json:"processedCount"`
	LastProcessedContactID int64 `json:"lastProcessedContactId"`
}

// Broadcast is one outbound campaign.
type Broadcast struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string
	Subject     string
	PreviewText string
	FromName    string
	FromAddress string
	ReplyTo     string
	// Content is Markdown with optional YAML frontmatter.
	Content string
	To      Audience
	Status  Status
	TagIDs  []int64
	Meta    Meta
	ID      int64
}

// RecipientFilter returns the contact filter for the next page after the
// broadcast's cursor.
func (b *Broadcast) RecipientFilter() RecipientFilter {
	f := RecipientFilter{After: b.Meta.LastProcessedContactID}
	// A tag audience without tags is not narrowed.
	if b.To == AudienceTags && len(b.TagIDs) > 0 {
		f.TagIDs = b.TagIDs
		f.TagsOnly = true
	}
	return f
}

// RecipientFilter narrows contacts to opted-in recipients with an id above
// After. With TagsOnly set, a contact must carry at least one of TagIDs.
type RecipientFilter struct {
	TagIDs   []int64
	After    int64
	TagsOnly bool
}

// Contact is a potential recipient.
type Contact struct {
	CreatedAt   time.Time
	Email       string
	FirstName   string
	LastName    string
	TagIDs      []int64
	ID          int64
	EmailOptIn  bool
	MobileOptIn bool
}

// EmailStatus is the delivery state of a single email.
type EmailStatus string

const (
	EmailQueued       EmailStatus = "queued"
	EmailSent         EmailStatus = "sent"
	EmailDelivered    EmailStatus = "delivered"
	EmailBounced      EmailStatus = "bounced"
	EmailComplained   EmailStatus = "complained"
	EmailUnsubscribed EmailStatus = "unsubscribed"
	EmailFailed       EmailStatus = "failed"
)

// ActivityType is a delivery lifecycle event recorded on an email.
type ActivityType string

const (
	ActivityBounced         ActivityType = "bounced"
	ActivityClicked         ActivityType = "clicked"
	ActivityComplained      ActivityType = "complained"
	ActivityDelivered       ActivityType = "delivered"
	ActivityDeliveryDelayed ActivityType = "delivery_delayed"
	ActivityFailed          ActivityType = "failed"
	ActivityOpened          ActivityType = "opened"
	ActivityReceived        ActivityType = "received"
	ActivitySent            ActivityType = "sent"
	ActivityUnsubscribed    ActivityType = "unsubscribed"
)

// Activity is one entry of an email's append-only activity log.
type Activity struct {
	Timestamp time.Time    `json:"timestamp"`
	Type      ActivityType `json:"type"`
}

// Email is one send of a broadcast to one contact.
type Email struct {
	CreatedAt   time.Time
	SentAt      *time.Time
	From        string
	To          string
	ReplyTo     string
	Subject     string
	HTML        string
	// Text is the plain-text alternative sent with HTML.
	Text        string
	ProviderID  string
	Status      EmailStatus
	Activity    []Activity
	ID          int64
	BroadcastID int64
	ContactID   int64
}

// UnsubscribeToken is the persisted side of a signed unsubscribe token.
type UnsubscribeToken struct {
	ExpiresAt time.Time
	CreatedAt time.Time
	ID        string
	EmailID   int64
}

// Expired reports whether the record is past its expiry at now.
func (t *UnsubscribeToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// SendEmailInput is the payload of the send-email task.
type SendEmailInput struct {
	BroadcastID int64 `json:"broadcastId"`
	ContactID   int64 `json:"contactId"`
}
