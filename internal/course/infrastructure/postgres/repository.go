package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/settlement/internal/course/domain"
)

// Repository is a read-only view over the catalog service's courses table.
// Course CRUD lives elsewhere; checkout only needs the purchase preconditions.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Course, error) {
	var c domain.Course
	var instructorID *string
	err := r.pool.QueryRow(ctx, `SELECT id, title, price_cents, instructor_id, published, blocked FROM courses WHERE id=$1`, id).
		Scan(&c.ID, &c.Title, &c.PriceCents, &instructorID, &c.Published, &c.Blocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Course{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Course{}, err
	}
	if instructorID != nil {
		c.InstructorID = *instructorID
	}
	return c, nil
}
