package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/learnhub/settlement/internal/payment/domain"
	"github.com/learnhub/settlement/pkg/tracing"
)

// Outcome classifies how a verify or webhook call resolved. Only the gate
// winner runs settlement; everyone else reports what they observed.
type Outcome string

const (
	// OutcomeSettled: this call won the gate and settlement + enrollment
	// were recorded inline.
	OutcomeSettled Outcome = "settled"

	// OutcomeAlreadyHandled: a concurrent caller won the gate first. This
	// is a successful no-op, not an error.
	OutcomeAlreadyHandled Outcome = "already_handled"

	// OutcomeDeferred: this call won the gate but an inline settlement or
	// enrollment write failed. The payment is completed; the outbox event
	// written by the gate transaction guarantees the ledger catches up.
	OutcomeDeferred Outcome = "settlement_deferred"
)

const EventPaymentCompleted = "PaymentCompleted"

// VerifyResult carries the purchase metadata stored at checkout time.
type VerifyResult struct {
	UserID       string
	CourseID     string
	InstructorID string
	Outcome      Outcome
}

// Verifier is the idempotency gate between the synchronous redirect-verify
// path and the asynchronous webhook path. Correctness rests on a single
// conditional update in the store, never on in-process locking: the two
// paths may run on different processes.
type Verifier struct {
	log       *slog.Logger
	store     PaymentStore
	processor ProcessorClient
	settler   Settler
	granter   Granter
}

func NewVerifier(log *slog.Logger, store PaymentStore, processor ProcessorClient, settler Settler, granter Granter) *Verifier {
	return &Verifier{
		log:       log,
		store:     store,
		processor: processor,
		settler:   settler,
		granter:   granter,
	}
}

// Verify handles the buyer's redirect back from the processor. It asks the
// processor for the session's state; an unpaid session never mutates
// anything except the pending→failed transition on expiry.
func (v *Verifier) Verify(ctx context.Context, sessionID string) (VerifyResult, error) {
	p, err := v.store.GetBySessionID(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return VerifyResult{}, ErrSessionUnknown
	}
	if err != nil {
		return VerifyResult{}, err
	}

	state, err := v.processor.GetSession(ctx, sessionID)
	if err != nil {
		return VerifyResult{}, err
	}

	if !state.Paid {
		// An open session may still be paid later; leave it pending.
		if state.Status == "expired" {
			if failed, err := v.store.FailIfPending(ctx, sessionID); err != nil {
				return VerifyResult{}, err
			} else if failed {
				v.log.Info("payment marked failed", "payment_id", p.ID, "session_id", sessionID)
			}
		}
		return VerifyResult{}, fmt.Errorf("%w: session status %q", ErrPaymentNotCompleted, state.Status)
	}

	return v.confirmPaid(ctx, p)
}

// ConfirmPaid runs the gate for a session whose paid state was asserted by
// an authenticated webhook, skipping the processor round trip.
func (v *Verifier) ConfirmPaid(ctx context.Context, sessionID string) (VerifyResult, error) {
	p, err := v.store.GetBySessionID(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return VerifyResult{}, ErrSessionUnknown
	}
	if err != nil {
		return VerifyResult{}, err
	}
	return v.confirmPaid(ctx, p)
}

func (v *Verifier) confirmPaid(ctx context.Context, p domain.Payment) (VerifyResult, error) {
	res := VerifyResult{
		UserID:       p.UserID,
		CourseID:     p.CourseID,
		InstructorID: p.InstructorID,
	}

	payload, err := json.Marshal(domain.PaymentCompleted{
		PaymentID:            p.ID.String(),
		UserID:               p.UserID,
		CourseID:             p.CourseID,
		InstructorID:         p.InstructorID,
		AmountCents:          p.AmountCents,
		InstructorShareCents: p.InstructorShareCents,
		AdminShareCents:      p.AdminShareCents,
	})
	if err != nil {
		return VerifyResult{}, err
	}

	headers := map[string]string{"source": "checkout-service"}
	won, err := v.store.CompleteWithOutbox(ctx, p.ExternalSessionID, EventPaymentCompleted, payload, headers, traceparentFrom(ctx))
	if err != nil {
		return VerifyResult{}, err
	}
	if !won {
		res.Outcome = OutcomeAlreadyHandled
		v.log.Info("payment already handled", "payment_id", p.ID, "session_id", p.ExternalSessionID)
		return res, nil
	}

	// Winner path. The payment is durably completed and the outbox event is
	// committed, so inline failures below are deferred to the settlement
	// worker, never rolled back and never swallowed.
	p.Status = domain.StatusCompleted
	res.Outcome = OutcomeSettled

	if err := v.settler.Settle(ctx, p); err != nil {
		v.log.Error("inline settlement failed, deferred to worker",
			"payment_id", p.ID, "session_id", p.ExternalSessionID,
			"instructor_id", p.InstructorID, "instructor_share_cents", p.InstructorShareCents,
			"admin_share_cents", p.AdminShareCents, "err", err)
		res.Outcome = OutcomeDeferred
		return res, nil
	}
	if err := v.granter.Grant(ctx, p.UserID, p.CourseID); err != nil {
		v.log.Error("inline enrollment failed, deferred to worker",
			"payment_id", p.ID, "user_id", p.UserID, "course_id", p.CourseID, "err", err)
		res.Outcome = OutcomeDeferred
		return res, nil
	}

	v.log.Info("payment settled",
		"payment_id", p.ID, "session_id", p.ExternalSessionID,
		"instructor_share_cents", p.InstructorShareCents, "admin_share_cents", p.AdminShareCents)
	return res, nil
}

func traceparentFrom(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier[tracing.TraceparentHeader]
}
