package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/settlement/internal/enrollment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Create inserts the enrollment, treating the (user_id, course_id)
// uniqueness conflict as an existing enrollment rather than an error.
func (r *Repository) Create(ctx context.Context, e domain.Enrollment) (bool, error) {
	ct, err := r.pool.Exec(ctx, `INSERT INTO enrollments (user_id, course_id, status, progress_percent, enrolled_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, course_id) DO NOTHING`,
		e.UserID, e.CourseID, e.Status, e.ProgressPercent, e.EnrolledAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repository) Get(ctx context.Context, userID, courseID string) (domain.Enrollment, error) {
	var e domain.Enrollment
	err := r.pool.QueryRow(ctx, `SELECT user_id, course_id, status, progress_percent, enrolled_at
		FROM enrollments WHERE user_id=$1 AND course_id=$2`, userID, courseID).
		Scan(&e.UserID, &e.CourseID, &e.Status, &e.ProgressPercent, &e.EnrolledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Enrollment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Enrollment{}, err
	}
	return e, nil
}
