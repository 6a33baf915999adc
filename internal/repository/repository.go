package repository

import (
	"context"
	"embed"
	"errors"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the goose migrations of the schema.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const codeUniqueViolation = "23505"

// Repository implements broadcast.Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

var _ broadcast.Store = (*Repository)(nil)

// New returns a repository backed by pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// queryRower is satisfied by *pgxpool.Pool and pgx.Tx.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
