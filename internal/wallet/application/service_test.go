package application

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentdomain "github.com/learnhub/settlement/internal/payment/domain"
	"github.com/learnhub/settlement/internal/wallet/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger mirrors the postgres semantics: lazy wallet creation, one
// credit per (owner, payment), balance updated with the transaction.
type fakeLedger struct {
	mu      sync.Mutex
	wallets map[string]*domain.Wallet
	txs     []domain.Transaction
	nextID  int64
	err     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{wallets: map[string]*domain.Wallet{}}
}

func (l *fakeLedger) Apply(ctx context.Context, c domain.Credit) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	w, ok := l.wallets[c.OwnerID]
	if !ok {
		w = &domain.Wallet{OwnerID: c.OwnerID, OwnerType: c.OwnerType, CreatedAt: time.Now().UTC()}
		l.wallets[c.OwnerID] = w
	}
	for _, tx := range l.txs {
		if tx.OwnerID == c.OwnerID && tx.PaymentID == c.PaymentID {
			return false, nil
		}
	}
	l.nextID++
	l.txs = append(l.txs, domain.Transaction{
		ID:          l.nextID,
		OwnerID:     c.OwnerID,
		PaymentID:   c.PaymentID,
		AmountCents: c.AmountCents,
		Kind:        domain.KindCredit,
		Description: c.Description,
		CourseID:    c.CourseID,
		CreatedAt:   time.Now().UTC(),
	})
	w.BalanceCents += c.AmountCents
	return true, nil
}

func (l *fakeLedger) Get(ctx context.Context, ownerID string) (domain.Wallet, []domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[ownerID]
	if !ok {
		return domain.Wallet{}, nil, domain.ErrNotFound
	}
	var txs []domain.Transaction
	for _, tx := range l.txs {
		if tx.OwnerID == ownerID {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID > txs[j].ID })
	return *w, txs, nil
}

func (l *fakeLedger) checkInvariant(t *testing.T) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	sums := map[string]int64{}
	for _, tx := range l.txs {
		amount := tx.AmountCents
		if tx.Kind == domain.KindDebit {
			amount = -amount
		}
		sums[tx.OwnerID] += amount
	}
	for ownerID, w := range l.wallets {
		assert.Equal(t, sums[ownerID], w.BalanceCents, "balance must equal signed transaction sum for %s", ownerID)
	}
}

func completedPayment(instructorShare, adminShare int64) paymentdomain.Payment {
	return paymentdomain.Payment{
		ID:                   uuid.New(),
		UserID:               "user-1",
		CourseID:             "course-1",
		InstructorID:         "instr-1",
		AmountCents:          instructorShare + adminShare,
		InstructorShareCents: instructorShare,
		AdminShareCents:      adminShare,
		Status:               paymentdomain.StatusCompleted,
	}
}

func TestSettleCreditsBothWallets(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewService(testLogger(), ledger)

	require.NoError(t, svc.Settle(context.Background(), completedPayment(600, 400)))

	instr, err := svc.Wallet(context.Background(), "instr-1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), instr.BalanceCents)
	require.Len(t, instr.Transactions, 1)
	assert.Equal(t, "course sale revenue", instr.Transactions[0].Description)
	assert.Equal(t, "course-1", instr.Transactions[0].CourseID)

	platform, err := svc.Wallet(context.Background(), domain.PlatformOwnerID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), platform.BalanceCents)
	require.Len(t, platform.Transactions, 1)
	assert.Equal(t, "platform commission", platform.Transactions[0].Description)

	ledger.checkInvariant(t)
}

func TestSettleIsIdempotentPerPayment(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewService(testLogger(), ledger)
	p := completedPayment(600, 400)

	require.NoError(t, svc.Settle(context.Background(), p))
	require.NoError(t, svc.Settle(context.Background(), p))
	require.NoError(t, svc.Settle(context.Background(), p))

	instr, err := svc.Wallet(context.Background(), "instr-1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), instr.BalanceCents)
	assert.Len(t, instr.Transactions, 1)

	platform, err := svc.Wallet(context.Background(), domain.PlatformOwnerID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), platform.BalanceCents)
	assert.Len(t, platform.Transactions, 1)

	ledger.checkInvariant(t)
}

func TestConcurrentSettlementsSameOwner(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewService(testLogger(), ledger)

	// Unrelated payments crediting the same instructor concurrently.
	const sales = 20
	var wg sync.WaitGroup
	for i := 0; i < sales; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Settle(context.Background(), completedPayment(600, 400)))
		}()
	}
	wg.Wait()

	instr, err := svc.Wallet(context.Background(), "instr-1")
	require.NoError(t, err)
	assert.Equal(t, int64(600*sales), instr.BalanceCents)
	assert.Len(t, instr.Transactions, sales)

	platform, err := svc.Wallet(context.Background(), domain.PlatformOwnerID)
	require.NoError(t, err)
	assert.Equal(t, int64(400*sales), platform.BalanceCents)

	ledger.checkInvariant(t)
}

func TestSettleLedgerFailureSurfaces(t *testing.T) {
	ledger := newFakeLedger()
	ledger.err = assert.AnError
	svc := NewService(testLogger(), ledger)

	err := svc.Settle(context.Background(), completedPayment(600, 400))
	require.Error(t, err, "persistence failures must never be swallowed")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWalletTransactionsNewestFirst(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewService(testLogger(), ledger)

	first := completedPayment(600, 400)
	second := completedPayment(1200, 800)
	require.NoError(t, svc.Settle(context.Background(), first))
	require.NoError(t, svc.Settle(context.Background(), second))

	instr, err := svc.Wallet(context.Background(), "instr-1")
	require.NoError(t, err)
	require.Len(t, instr.Transactions, 2)
	assert.Equal(t, second.ID.String(), instr.Transactions[0].PaymentID)
	assert.Equal(t, first.ID.String(), instr.Transactions[1].PaymentID)
}
