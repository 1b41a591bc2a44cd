package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/settlement/internal/wallet/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Apply credits a wallet in one transaction: lazily create the wallet row,
// append the transaction, bump the balance. The unique (owner_id, payment_id)
// index on wallet_transactions makes replays a no-op, and the relative
// balance update (balance = balance + x) withstands concurrent settlements
// crediting the same owner from unrelated payments.
func (r *Repository) Apply(ctx context.Context, c domain.Credit) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `INSERT INTO wallets (owner_id, owner_type, balance_cents, created_at, updated_at)
		VALUES ($1,$2,0,$3,$3)
		ON CONFLICT (owner_id) DO NOTHING`, c.OwnerID, c.OwnerType, now)
	if err != nil {
		return false, err
	}

	ct, err := tx.Exec(ctx, `INSERT INTO wallet_transactions (owner_id, payment_id, amount_cents, kind, description, course_id, created_at)
		VALUES ($1,$2,$3,'credit',$4,$5,$6)
		ON CONFLICT (owner_id, payment_id) DO NOTHING`,
		c.OwnerID, c.PaymentID, c.AmountCents, c.Description, c.CourseID, now)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		// Already credited for this payment; leave the balance alone.
		return false, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `UPDATE wallets SET balance_cents = balance_cents + $2, updated_at=$3 WHERE owner_id=$1`,
		c.OwnerID, c.AmountCents, now)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, ownerID string) (domain.Wallet, []domain.Transaction, error) {
	var w domain.Wallet
	err := r.pool.QueryRow(ctx, `SELECT owner_id, owner_type, balance_cents, created_at, updated_at FROM wallets WHERE owner_id=$1`, ownerID).
		Scan(&w.OwnerID, &w.OwnerType, &w.BalanceCents, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wallet{}, nil, domain.ErrNotFound
	}
	if err != nil {
		return domain.Wallet{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, payment_id, amount_cents, kind, description, course_id, created_at
		FROM wallet_transactions WHERE owner_id=$1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return domain.Wallet{}, nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{OwnerID: ownerID}
		var courseID *string
		if err := rows.Scan(&t.ID, &t.PaymentID, &t.AmountCents, &t.Kind, &t.Description, &courseID, &t.CreatedAt); err != nil {
			return domain.Wallet{}, nil, err
		}
		if courseID != nil {
			t.CourseID = *courseID
		}
		txs = append(txs, t)
	}
	return w, txs, rows.Err()
}
