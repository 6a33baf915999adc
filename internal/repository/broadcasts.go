package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/pkg/db"
)

const broadcastColumns = `
	b.id, b.name, b.subject, b.preview_text, b.from_name, b.from_address, b.reply_to,
	b.content, b.audience, b.status, b.contacts_count, b.processed_count,
	b.last_processed_contact_id, b.created_at, b.updated_at,
	COALESCE((SELECT array_agg(bt.tag_id ORDER BY bt.tag_id) FROM broadcast_tags bt WHERE bt.broadcast_id = b.id), '{}')`

func scanBroadcast(row pgx.Row) (*broadcast.Broadcast, error) {
	var b broadcast.Broadcast
	err := row.Scan(
		&b.ID, &b.Name, &b.Subject, &b.PreviewText, &b.FromName, &b.FromAddress, &b.ReplyTo,
		&b.Content, &b.To, &b.Status, &b.Meta.ContactsCount, &b.Meta.ProcessedCount,
		&b.Meta.LastProcessedContactID, &b.CreatedAt, &b.UpdatedAt,
		&b.TagIDs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, broadcast.ErrBroadcastNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan broadcast: %w", err)
	}
	return &b, nil
}

// OldestSending implements broadcast.BroadcastStore.
func (r *Repository) OldestSending(ctx context.Context) (*broadcast.Broadcast, error) {
	return scanBroadcast(r.pool.QueryRow(ctx,
		`SELECT`+broadcastColumns+` FROM broadcasts b WHERE b.status = 'sending' ORDER BY b.id LIMIT 1`,
	))
}

// GetBroadcast implements broadcast.BroadcastStore.
func (r *Repository) GetBroadcast(ctx context.Context, id int64) (*broadcast.Broadcast, error) {
	return scanBroadcast(r.pool.QueryRow(ctx,
		`SELECT`+broadcastColumns+` FROM broadcasts b WHERE b.id = $1`, id,
	))
}

// TransitionBroadcast implements broadcast.BroadcastStore.
func (r *Repository) TransitionBroadcast(ctx context.Context, id int64, from, to broadcast.Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE broadcasts SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return fmt.Errorf("update broadcast status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrStatus(ctx, id)
	}
	return nil
}

// StartSending implements broadcast.BroadcastStore.
func (r *Repository) StartSending(ctx context.Context, id int64, contactsCount int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE broadcasts
		SET status = 'sending', contacts_count = $2, processed_count = 0,
			last_processed_contact_id = 0, updated_at = now()
		WHERE id = $1 AND status = 'draft'`,
		id, contactsCount,
	)
	if err != nil {
		return fmt.Errorf("start sending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrStatus(ctx, id)
	}
	return nil
}

// AdvanceCursor implements broadcast.BroadcastStore.
func (r *Repository) AdvanceCursor(ctx context.Context, id, expected, next int64, processed int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE broadcasts
		SET last_processed_contact_id = $3, processed_count = processed_count + $4, updated_at = now()
		WHERE id = $1 AND status = 'sending' AND last_processed_contact_id = $2`,
		id, expected, next, processed,
	)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return broadcast.ErrCursorConflict
	}
	return nil
}

func (r *Repository) missingOrStatus(ctx context.Context, id int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM broadcasts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check broadcast: %w", err)
	}
	if !exists {
		return broadcast.ErrBroadcastNotFound
	}
	return broadcast.ErrInvalidStatus
}

// CreateBroadcast inserts a draft broadcast with its tags and sets b.ID.
func (r *Repository) CreateBroadcast(ctx context.Context, b *broadcast.Broadcast) error {
	if b.Status == "" {
		b.Status = broadcast.StatusDraft
	}
	if b.To == "" {
		b.To = broadcast.AudienceAll
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO broadcasts (name, subject, preview_text, from_name, from_address, reply_to, content, audience, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`,
			b.Name, b.Subject, b.PreviewText, b.FromName, b.FromAddress, b.ReplyTo, b.Content, b.To, b.Status,
		).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert broadcast: %w", err)
		}
		if len(b.TagIDs) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO broadcast_tags (broadcast_id, tag_id) SELECT $1, unnest($2::bigint[])`,
			b.ID, b.TagIDs,
		); err != nil {
			return fmt.Errorf("insert broadcast tags: %w", err)
		}
		return nil
	})
}
