package application

import (
	"context"

	"github.com/learnhub/settlement/internal/wallet/domain"
)

// Ledger is the persistence port for wallets. Apply must be atomic
// (find-or-create, append, increment in one step) and idempotent per
// (owner, payment) so concurrent and replayed settlements are safe.
type Ledger interface {
	Apply(ctx context.Context, c domain.Credit) (bool, error)
	Get(ctx context.Context, ownerID string) (domain.Wallet, []domain.Transaction, error)
}
