package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
)

// insertToken stores t. A zero ExpiresAt takes the column default of thirty
// days.
func insertToken(ctx context.Context, q queryRower, t *broadcast.UnsubscribeToken) error {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return fmt.Errorf("unsubscribe token id: %w", err)
	}

	var expires *time.Time
	if !t.ExpiresAt.IsZero() {
		expires = &t.ExpiresAt
	}

	err = q.QueryRow(ctx, `
		INSERT INTO unsubscribe_tokens (id, email_id, expires_at)
		VALUES ($1, $2, COALESCE($3, now() + interval '30 days'))
		RETURNING expires_at, created_at`,
		id, t.EmailID, expires,
	).Scan(&t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert unsubscribe token: %w", err)
	}
	return nil
}

// GetUnsubscribeToken implements broadcast.TokenStore. An id that is not a
// UUID cannot exist and reports ErrTokenNotFound.
func (r *Repository) GetUnsubscribeToken(ctx context.Context, id string) (*broadcast.UnsubscribeToken, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, broadcast.ErrTokenNotFound
	}

	var t broadcast.UnsubscribeToken
	var raw uuid.UUID
	err = r.pool.QueryRow(ctx,
		`SELECT id, email_id, expires_at, created_at FROM unsubscribe_tokens WHERE id = $1`, parsed,
	).Scan(&raw, &t.EmailID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, broadcast.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get unsubscribe token: %w", err)
	}
	t.ID = raw.String()
	return &t, nil
}
