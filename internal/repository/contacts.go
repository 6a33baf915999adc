package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/pkg/db"
)

const contactColumns = `
	c.id, c.email, c.first_name, c.last_name, c.email_opt_in, c.mobile_opt_in, c.created_at,
	COALESCE((SELECT array_agg(ct.tag_id ORDER BY ct.tag_id) FROM contact_tags ct WHERE ct.contact_id = c.id), '{}')`

// recipientWhere matches opted-in contacts past the cursor; $2 switches the
// tag filter on and $3 holds the tag ids.
const recipientWhere = `
	WHERE c.email_opt_in
		AND c.id > $1
		AND (NOT $2::boolean OR EXISTS (
			SELECT 1 FROM contact_tags ct WHERE ct.contact_id = c.id AND ct.tag_id = ANY($3::bigint[])
		))`

func scanContact(row pgx.Row) (*broadcast.Contact, error) {
	var c broadcast.Contact
	err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.EmailOptIn, &c.MobileOptIn, &c.CreatedAt, &c.TagIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, broadcast.ErrContactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	return &c, nil
}

// NextRecipients implements broadcast.ContactStore.
func (r *Repository) NextRecipients(ctx context.Context, f broadcast.RecipientFilter, limit int) ([]broadcast.Contact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+contactColumns+` FROM contacts c`+recipientWhere+` ORDER BY c.id LIMIT $4`,
		f.After, f.TagsOnly, f.TagIDs, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var out []broadcast.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return out, nil
}

// CountRecipients implements broadcast.ContactStore.
func (r *Repository) CountRecipients(ctx context.Context, f broadcast.RecipientFilter) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contacts c`+recipientWhere,
		f.After, f.TagsOnly, f.TagIDs,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return n, nil
}

// GetContact implements broadcast.ContactStore.
func (r *Repository) GetContact(ctx context.Context, id int64) (*broadcast.Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `SELECT`+contactColumns+` FROM contacts c WHERE c.id = $1`, id))
}

// FindContactByEmail implements broadcast.ContactStore.
func (r *Repository) FindContactByEmail(ctx context.Context, address string) (*broadcast.Contact, error) {
	return scanContact(r.pool.QueryRow(ctx,
		`SELECT`+contactColumns+` FROM contacts c WHERE c.email = $1 LIMIT 1`, address,
	))
}

// SetEmailOptIn implements broadcast.ContactStore.
func (r *Repository) SetEmailOptIn(ctx context.Context, id int64, optIn bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts SET email_opt_in = $2, updated_at = now() WHERE id = $1`, id, optIn,
	)
	if err != nil {
		return fmt.Errorf("update contact opt-in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return broadcast.ErrContactNotFound
	}
	return nil
}

// CreateContact inserts a contact with its tags and sets c.ID.
func (r *Repository) CreateContact(ctx context.Context, c *broadcast.Contact) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO contacts (email, first_name, last_name, email_opt_in, mobile_opt_in)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			c.Email, c.FirstName, c.LastName, c.EmailOptIn, c.MobileOptIn,
		).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert contact: %w", err)
		}
		if len(c.TagIDs) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO contact_tags (contact_id, tag_id) SELECT $1, unnest($2::bigint[])`,
			c.ID, c.TagIDs,
		); err != nil {
			return fmt.Errorf("insert contact tags: %w", err)
		}
		return nil
	})
}

// CreateTag inserts a tag and returns its id.
func (r *Repository) CreateTag(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, `INSERT INTO tags (name) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert tag: %w", err)
	}
	return id, nil
}
