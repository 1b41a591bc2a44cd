package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/settlement/internal/payment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) CreatePending(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payments
		(id, user_id, course_id, instructor_id, amount_cents, instructor_share_cents, admin_share_cents, status, external_session_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.UserID, p.CourseID, p.InstructorID, p.AmountCents, p.InstructorShareCents, p.AdminShareCents,
		p.Status, p.ExternalSessionID, p.CreatedAt, p.UpdatedAt)
	return err
}

const paymentColumns = `id, user_id, course_id, instructor_id, amount_cents, instructor_share_cents, admin_share_cents, status, external_session_id, created_at, updated_at`

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
}

func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (domain.Payment, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE external_session_id=$1`, sessionID))
}

func (r *Repository) scanOne(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.CourseID, &p.InstructorID, &p.AmountCents, &p.InstructorShareCents,
		&p.AdminShareCents, &p.Status, &p.ExternalSessionID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

// CompleteWithOutbox is the idempotency gate. The conditional update and
// the outbox insert commit together, so exactly one caller per session
// observes rows_affected=1, and the settlement event exists the moment the
// status flips. Losers see rows_affected=0 and write nothing.
func (r *Repository) CompleteWithOutbox(ctx context.Context, sessionID, eventType string, payload []byte, headers map[string]string, traceparent string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var paymentID uuid.UUID
	err = tx.QueryRow(ctx, `UPDATE payments SET status=$2, updated_at=$3
		WHERE external_session_id=$1 AND status=$4
		RETURNING id`,
		sessionID, domain.StatusCompleted, time.Now().UTC(), domain.StatusPending).Scan(&paymentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"payment", paymentID.String(), eventType, payload, headers, traceparent)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *Repository) FailIfPending(ctx context.Context, sessionID string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE payments SET status=$2, updated_at=$3
		WHERE external_session_id=$1 AND status=$4`,
		sessionID, domain.StatusFailed, time.Now().UTC(), domain.StatusPending)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE external_session_id=$1)`, sessionID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// Rearm re-points the payment at a fresh checkout session for a retry.
// Conditional on the status still being retryable, so a concurrent gate
// winner cannot be overwritten back to pending.
func (r *Repository) Rearm(ctx context.Context, id uuid.UUID, sessionID string, amount, instructorShare, adminShare int64) (bool, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE payments
		SET external_session_id=$2, amount_cents=$3, instructor_share_cents=$4, admin_share_cents=$5, status=$6, updated_at=$7
		WHERE id=$1 AND status IN ($8, $9)`,
		id, sessionID, amount, instructorShare, adminShare, domain.StatusPending, time.Now().UTC(),
		domain.StatusPending, domain.StatusFailed)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
