package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/pkg/db"
)

const emailConstraint = "emails_broadcast_contact_key"

const emailColumns = `
	id, broadcast_id, contact_id, from_address, to_address, reply_to, subject, html, text,
	COALESCE(provider_id, ''), status, activity, sent_at, created_at`

func scanEmail(row pgx.Row) (*broadcast.Email, error) {
	var e broadcast.Email
	err := row.Scan(
		&e.ID, &e.BroadcastID, &e.ContactID, &e.From, &e.To, &e.ReplyTo, &e.Subject, &e.HTML, &e.Text,
		&e.ProviderID, &e.Status, &e.Activity, &e.SentAt, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, broadcast.ErrEmailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan email: %w", err)
	}
	return &e, nil
}

// FindEmail implements broadcast.EmailStore.
func (r *Repository) FindEmail(ctx context.Context, broadcastID, contactID int64) (*broadcast.Email, error) {
	return scanEmail(r.pool.QueryRow(ctx,
		`SELECT`+emailColumns+` FROM emails WHERE broadcast_id = $1 AND contact_id = $2`,
		broadcastID, contactID,
	))
}

// CreateEmailWithToken implements broadcast.EmailStore.
func (r *Repository) CreateEmailWithToken(ctx context.Context, e *broadcast.Email, t *broadcast.UnsubscribeToken) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertEmail(ctx, tx, e); err != nil {
			return err
		}
		t.EmailID = e.ID
		return insertToken(ctx, tx, t)
	})
}

func insertEmail(ctx context.Context, q queryRower, e *broadcast.Email) error {
	if e.Status == "" {
		e.Status = broadcast.EmailQueued
	}
	if e.Activity == nil {
		e.Activity = []broadcast.Activity{}
	}
	err := q.QueryRow(ctx, `
		INSERT INTO emails (broadcast_id, contact_id, from_address, to_address, reply_to, subject, html, text, provider_id, status, activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
		RETURNING id, created_at`,
		e.BroadcastID, e.ContactID, e.From, e.To, e.ReplyTo, e.Subject, e.HTML, e.Text, e.ProviderID, e.Status, e.Activity,
	).Scan(&e.ID, &e.CreatedAt)
	if isUniqueViolation(err, emailConstraint) {
		return broadcast.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert email: %w", err)
	}
	return nil
}

// GetEmail implements broadcast.EmailStore.
func (r *Repository) GetEmail(ctx context.Context, id int64) (*broadcast.Email, error) {
	return scanEmail(r.pool.QueryRow(ctx, `SELECT`+emailColumns+` FROM emails WHERE id = $1`, id))
}

// FindEmailByProviderID implements broadcast.EmailStore.
func (r *Repository) FindEmailByProviderID(ctx context.Context, providerID string) (*broadcast.Email, error) {
	if providerID == "" {
		return nil, broadcast.ErrEmailNotFound
	}
	return scanEmail(r.pool.QueryRow(ctx, `SELECT`+emailColumns+` FROM emails WHERE provider_id = $1`, providerID))
}

// MarkEmailSent implements broadcast.EmailStore.
func (r *Repository) MarkEmailSent(ctx context.Context, id int64, providerID string, at time.Time) error {
	_, err := r.updateEmail(ctx, id, func(e *broadcast.Email) {
		e.ProviderID = providerID
		e.SentAt = &at
		e.ApplyActivity(broadcast.Activity{Type: broadcast.ActivitySent, Timestamp: at})
	})
	return err
}

// MarkEmailFailed implements broadcast.EmailStore.
func (r *Repository) MarkEmailFailed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.updateEmail(ctx, id, func(e *broadcast.Email) {
		e.Activity = append(e.Activity, broadcast.Activity{Type: broadcast.ActivityFailed, Timestamp: at})
		e.Status = broadcast.EmailFailed
	})
	return err
}

// AppendActivity implements broadcast.EmailStore.
func (r *Repository) AppendActivity(ctx context.Context, id int64, a broadcast.Activity) (broadcast.EmailStatus, error) {
	e, err := r.updateEmail(ctx, id, func(e *broadcast.Email) {
		e.ApplyActivity(a)
	})
	if err != nil {
		return "", err
	}
	return e.Status, nil
}

// updateEmail locks the row, applies fn and writes the mutable columns back
// in one transaction, so concurrent activity appends serialize per email.
func (r *Repository) updateEmail(ctx context.Context, id int64, fn func(*broadcast.Email)) (*broadcast.Email, error) {
	var out *broadcast.Email
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		e, err := scanEmail(tx.QueryRow(ctx, `SELECT`+emailColumns+` FROM emails WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		fn(e)

		if _, err := tx.Exec(ctx, `
			UPDATE emails
			SET provider_id = NULLIF($2, ''), status = $3, activity = $4, sent_at = $5, updated_at = now()
			WHERE id = $1`,
			e.ID, e.ProviderID, e.Status, e.Activity, e.SentAt,
		); err != nil {
			return fmt.Errorf("update email: %w", err)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
