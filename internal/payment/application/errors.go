package application

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionUnknown means no Payment row references the session. On the
	// webhook path this usually means the event outran our local commit.
	ErrSessionUnknown = errors.New("unknown checkout session")

	// ErrPaymentNotCompleted is the generic buyer-facing verify failure.
	ErrPaymentNotCompleted = errors.New("payment not completed")

	// ErrProcessorUnavailable classifies processor timeouts and outages.
	// The payment stays pending; the caller may try again.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")

	ErrNotPaymentOwner = errors.New("payment does not belong to user")
	ErrRetryNotAllowed = errors.New("payment is not retryable")
	ErrPaymentNotFound = errors.New("payment not found")
)

// ValidationError rejects a checkout before anything is written.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout rejected: %s", e.Reason)
}
