package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Payment tracks one logical course purchase. The row survives retries:
// a retried payment gets a fresh external session id on the same record.
type Payment struct {
	ID                   uuid.UUID
	UserID               string
	CourseID             string
	InstructorID         string
	AmountCents          int64
	InstructorShareCents int64
	AdminShareCents      int64
	Status               Status
	ExternalSessionID    string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

var (
	ErrInvalidSplitRatio = errors.New("split ratio out of range")

	// ErrNotFound is returned by stores when no Payment matches the lookup.
	ErrNotFound = errors.New("payment not found")
)

// ComputeSplit divides amountCents between instructor and platform.
// instructorBps is the instructor's cut in basis points (6000 = 60%).
// The platform takes the integer remainder, so the two shares always
// sum to amountCents exactly.
func ComputeSplit(amountCents, instructorBps int64) (instructorCents, adminCents int64, err error) {
	if instructorBps < 0 || instructorBps > 10_000 {
		return 0, 0, ErrInvalidSplitRatio
	}
	instructorCents = amountCents * instructorBps / 10_000
	adminCents = amountCents - instructorCents
	return instructorCents, adminCents, nil
}

func NewPending(userID, courseID, instructorID, sessionID string, amount, instructorShare, adminShare int64) Payment {
	now := time.Now().UTC()
	return Payment{
		ID:                   uuid.New(),
		UserID:               userID,
		CourseID:             courseID,
		InstructorID:         instructorID,
		AmountCents:          amount,
		InstructorShareCents: instructorShare,
		AdminShareCents:      adminShare,
		Status:               StatusPending,
		ExternalSessionID:    sessionID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Retryable reports whether the payment may be re-armed with a new
// checkout session. Completed and refunded payments never go back.
func (p Payment) Retryable() bool {
	return p.Status == StatusPending || p.Status == StatusFailed
}
