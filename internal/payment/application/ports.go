package application

import (
	"context"

	"github.com/google/uuid"

	coursedomain "github.com/learnhub/settlement/internal/course/domain"
	"github.com/learnhub/settlement/internal/payment/domain"
)

// PaymentStore persists Payment rows keyed uniquely by external session id.
// All status transitions are conditional writes so that concurrent callers
// on independent processes cannot both observe a transition as theirs.
type PaymentStore interface {
	CreatePending(ctx context.Context, p domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	GetBySessionID(ctx context.Context, sessionID string) (domain.Payment, error)

	// CompleteWithOutbox flips pending→completed for the session and writes
	// the settlement event to the outbox in the same transaction. It reports
	// whether this call performed the transition (the gate winner).
	CompleteWithOutbox(ctx context.Context, sessionID, eventType string, payload []byte, headers map[string]string, traceparent string) (bool, error)

	// FailIfPending flips pending→failed; no-op when the payment already
	// reached a terminal status. Returns domain.ErrNotFound when no row
	// references the session at all.
	FailIfPending(ctx context.Context, sessionID string) (bool, error)

	// Rearm points the row at a fresh checkout session and resets it to
	// pending, only while the current status still allows a retry.
	Rearm(ctx context.Context, id uuid.UUID, sessionID string, amount, instructorShare, adminShare int64) (bool, error)
}

// SessionRequest carries the trusted purchase metadata into the processor.
// The verifier and webhook paths read these values back from our own
// Payment row, never from client input.
type SessionRequest struct {
	UserID       string
	CourseID     string
	InstructorID string
	CourseTitle  string
	AmountCents  int64
}

type Session struct {
	ID          string
	RedirectURL string
}

// SessionState is the processor's view of a checkout session.
// Status is open|complete|expired; Paid is only trustworthy when true.
type SessionState struct {
	ID     string
	Status string
	Paid   bool
}

type ProcessorClient interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	GetSession(ctx context.Context, sessionID string) (SessionState, error)
}

type CourseCatalog interface {
	Get(ctx context.Context, courseID string) (coursedomain.Course, error)
}

// Settler credits the instructor and platform wallets for a completed
// payment. Implementations must be idempotent per payment.
type Settler interface {
	Settle(ctx context.Context, p domain.Payment) error
}

// Granter creates the course enrollment. Implementations must treat a
// pre-existing enrollment as success.
type Granter interface {
	Grant(ctx context.Context, userID, courseID string) error
}
