package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/learnhub/settlement/internal/payment/domain"
)

// Processor event kinds this core cares about. Everything else is
// acknowledged and dropped.
const (
	EventSessionCompleted   = "checkout.session.completed"
	EventSessionExpired     = "checkout.session.expired"
	EventAsyncPaymentFailed = "checkout.session.async_payment_failed"
)

// WebhookEvent is a processor push, already authenticated by the transport
// layer before it reaches the dispatcher.
type WebhookEvent struct {
	Type      string
	SessionID string
	Paid      bool
}

const (
	// OutcomeFailedPayment: the event moved a pending payment to failed.
	OutcomeFailedPayment Outcome = "payment_failed"

	// OutcomeIgnored: unknown event kind, unpaid completion, or an event
	// that outran our local Payment commit. Acknowledged so the processor
	// does not redeliver; a reconciliation sweep has to pick up the
	// outran-commit case.
	OutcomeIgnored Outcome = "ignored"
)

// Dispatcher routes authenticated processor events into the verifier gate.
// Every routed event must be acknowledged quickly, winners and losers
// alike, to avoid processor-side redelivery storms.
type Dispatcher struct {
	log      *slog.Logger
	store    PaymentStore
	verifier *Verifier
}

func NewDispatcher(log *slog.Logger, store PaymentStore, verifier *Verifier) *Dispatcher {
	return &Dispatcher{log: log, store: store, verifier: verifier}
}

func (d *Dispatcher) Handle(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	switch ev.Type {
	case EventSessionCompleted:
		if !ev.Paid {
			// Async payment methods complete the session before the money
			// clears; a later event reports the outcome.
			d.log.Info("session completed but unpaid, waiting", "session_id", ev.SessionID)
			return OutcomeIgnored, nil
		}
		res, err := d.verifier.ConfirmPaid(ctx, ev.SessionID)
		if errors.Is(err, ErrSessionUnknown) {
			d.log.Warn("webhook for unknown session, dropping", "session_id", ev.SessionID, "type", ev.Type)
			return OutcomeIgnored, nil
		}
		if err != nil {
			return "", err
		}
		return res.Outcome, nil

	case EventSessionExpired, EventAsyncPaymentFailed:
		failed, err := d.store.FailIfPending(ctx, ev.SessionID)
		if errors.Is(err, domain.ErrNotFound) {
			d.log.Warn("webhook for unknown session, dropping", "session_id", ev.SessionID, "type", ev.Type)
			return OutcomeIgnored, nil
		}
		if err != nil {
			return "", err
		}
		if !failed {
			d.log.Info("failure event for non-pending payment", "session_id", ev.SessionID, "type", ev.Type)
			return OutcomeAlreadyHandled, nil
		}
		d.log.Info("payment marked failed by webhook", "session_id", ev.SessionID, "type", ev.Type)
		return OutcomeFailedPayment, nil

	default:
		d.log.Info("irrelevant webhook event ignored", "type", ev.Type)
		return OutcomeIgnored, nil
	}
}
