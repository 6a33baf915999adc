package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/broadcaster/pkg/logger"
)

// Broadcasts handles admin requests on broadcasts.
type Broadcasts struct {
	store DispatchStore
	opts  options
}

// NewBroadcasts returns the admin service.
func NewBroadcasts(store DispatchStore, opts ...Option) *Broadcasts {
	return &Broadcasts{store: store, opts: newOptions(opts)}
}

// StartSending moves a draft broadcast to sending with a snapshot of its
// recipient count. The dispatcher picks it up on its next run.
func (s *Broadcasts) StartSending(ctx context.Context, id int64) (Meta, error) {
	ctx = logger.WithField(ctx, logger.BroadcastID, id)

	b, err := s.store.GetBroadcast(ctx, id)
	if err != nil {
		return Meta{}, err
	}
	if b.Status != StatusDraft {
		s.opts.logger.WarnContext(ctx, "broadcast is not a draft", slog.String("status", string(b.Status)))
		return Meta{}, ErrInvalidStatus
	}

	filter := b.RecipientFilter()
	filter.After = 0
	count, err := s.store.CountRecipients(ctx, filter)
	if err != nil {
		return Meta{}, fmt.Errorf("broadcast: count recipients: %w", err)
	}

	if err := s.store.StartSending(ctx, id, count); err != nil {
		return Meta{}, err
	}

	s.opts.logger.InfoContext(ctx, "broadcast queued for sending", slog.Int64("contacts", count))
	return Meta{ContactsCount: count}, nil
}

// Get returns a broadcast by id.
func (s *Broadcasts) Get(ctx context.Context, id int64) (*Broadcast, error) {
	return s.store.GetBroadcast(ctx, id)
}
