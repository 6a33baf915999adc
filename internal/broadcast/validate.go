package broadcast

import (
	"strings"

	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

// Validate checks that the broadcast can be sent. The returned error is a
// *ValidationError listing every failing field.
func (b *Broadcast) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(b.Content) == "" {
		fields["content"] = "broadcast content is missing"
	}
	if !mailer.ValidAddress(b.FromAddress) {
		fields["fromAddress"] = "invalid from address email format"
	}
	if strings.TrimSpace(b.FromName) == "" {
		fields["fromName"] = "from name is required"
	}
	if strings.TrimSpace(b.Subject) == "" {
		fields["subject"] = "subject is required"
	}
	if b.ReplyTo != "" && !mailer.ValidAddress(b.ReplyTo) {
		fields["replyTo"] = "invalid reply-to email format"
	}

	if b.To != AudienceAll && b.To != AudienceTags {
		fields["to"] = "audience must be all or tags"
	}

	if b.Meta.ContactsCount < 0 || b.Meta.ProcessedCount < 0 || b.Meta.LastProcessedContactID < 0 {
		fields["meta"] = "progress counters must not be negative"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// validateForTest checks the fields a test send needs.
func (b *Broadcast) validateForTest() error {
	fields := make(map[string]string)
	if strings.TrimSpace(b.Content) == "" {
		fields["content"] = "broadcast content is required"
	}
	if b.FromName == "" {
		fields["fromName"] = "broadcast fromName is required"
	}
	if b.FromAddress == "" {
		fields["fromAddress"] = "broadcast fromAddress is required"
	}
	if b.Subject == "" {
		fields["subject"] = "broadcast subject is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
