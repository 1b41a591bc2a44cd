package domain

// PaymentCompleted is written to the outbox in the same transaction that
// wins the idempotency gate. The settlement worker replays it until both
// ledger credits and the enrollment are durably recorded.
type PaymentCompleted struct {
	PaymentID            string
	UserID               string
	CourseID             string
	InstructorID         string
	AmountCents          int64
	InstructorShareCents int64
	AdminShareCents      int64
}

type PaymentFailed struct {
	PaymentID string
	SessionID string
	Reason    string
}
