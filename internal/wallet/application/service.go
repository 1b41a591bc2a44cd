package application

import (
	"context"
	"fmt"
	"log/slog"

	paymentdomain "github.com/learnhub/settlement/internal/payment/domain"
	"github.com/learnhub/settlement/internal/wallet/domain"
)

// Service is the settlement engine: it splits a completed payment into the
// instructor credit and the platform credit. It only ever runs for gate
// winners or worker replays, both of which may repeat, so every write goes
// through the idempotent Ledger.Apply.
type Service struct {
	log    *slog.Logger
	ledger Ledger
}

func NewService(log *slog.Logger, ledger Ledger) *Service {
	return &Service{log: log, ledger: ledger}
}

func (s *Service) Settle(ctx context.Context, p paymentdomain.Payment) error {
	credits := []domain.Credit{
		{
			OwnerID:     p.InstructorID,
			OwnerType:   domain.OwnerInstructor,
			PaymentID:   p.ID.String(),
			AmountCents: p.InstructorShareCents,
			Description: "course sale revenue",
			CourseID:    p.CourseID,
		},
		{
			OwnerID:     domain.PlatformOwnerID,
			OwnerType:   domain.OwnerPlatform,
			PaymentID:   p.ID.String(),
			AmountCents: p.AdminShareCents,
			Description: "platform commission",
			CourseID:    p.CourseID,
		},
	}

	for _, c := range credits {
		applied, err := s.ledger.Apply(ctx, c)
		if err != nil {
			return fmt.Errorf("credit %s wallet %s for payment %s: %w", c.OwnerType, c.OwnerID, c.PaymentID, err)
		}
		if !applied {
			s.log.Info("wallet already credited", "owner_id", c.OwnerID, "payment_id", c.PaymentID)
			continue
		}
		s.log.Info("wallet credited",
			"owner_id", c.OwnerID, "owner_type", c.OwnerType,
			"payment_id", c.PaymentID, "amount_cents", c.AmountCents)
	}
	return nil
}

// WalletView is the owner-facing read model, transactions newest first.
type WalletView struct {
	OwnerID      string
	BalanceCents int64
	Transactions []domain.Transaction
}

func (s *Service) Wallet(ctx context.Context, ownerID string) (WalletView, error) {
	w, txs, err := s.ledger.Get(ctx, ownerID)
	if err != nil {
		return WalletView{}, err
	}
	return WalletView{
		OwnerID:      w.OwnerID,
		BalanceCents: w.BalanceCents,
		Transactions: txs,
	}, nil
}
