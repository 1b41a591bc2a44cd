package domain

import (
	"errors"
	"time"
)

type OwnerType string

const (
	OwnerInstructor OwnerType = "instructor"
	OwnerPlatform   OwnerType = "platform"
)

// PlatformOwnerID is the reserved owner id of the single platform-wide
// wallet that collects the admin share of every sale.
const PlatformOwnerID = "platform"

var ErrNotFound = errors.New("wallet not found")

// Wallet is a per-owner balance backed by an append-only transaction log.
// Invariant: BalanceCents equals the signed sum of all transactions.
type Wallet struct {
	OwnerID      string
	OwnerType    OwnerType
	BalanceCents int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TransactionKind string

const (
	KindCredit TransactionKind = "credit"
	KindDebit  TransactionKind = "debit"
)

type Transaction struct {
	ID          int64
	OwnerID     string
	PaymentID   string
	AmountCents int64
	Kind        TransactionKind
	Description string
	CourseID    string
	CreatedAt   time.Time
}

// Credit is one ledger entry to apply. PaymentID deduplicates: a wallet is
// credited at most once per payment no matter how often settlement retries.
type Credit struct {
	OwnerID     string
	OwnerType   OwnerType
	PaymentID   string
	AmountCents int64
	Description string
	CourseID    string
}
