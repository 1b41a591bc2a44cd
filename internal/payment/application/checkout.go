package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	coursedomain "github.com/learnhub/settlement/internal/course/domain"
	"github.com/learnhub/settlement/internal/payment/domain"
)

// Initiator opens checkout sessions against the external processor and
// records the matching pending Payment. Validation happens before any
// write, so a rejected checkout leaves no orphan rows.
type Initiator struct {
	log       *slog.Logger
	store     PaymentStore
	catalog   CourseCatalog
	processor ProcessorClient
	splitBps  int64
}

func NewInitiator(log *slog.Logger, store PaymentStore, catalog CourseCatalog, processor ProcessorClient, splitBps int64) *Initiator {
	return &Initiator{
		log:       log,
		store:     store,
		catalog:   catalog,
		processor: processor,
		splitBps:  splitBps,
	}
}

func (i *Initiator) CreateCheckoutSession(ctx context.Context, courseID, userID string) (Session, error) {
	course, err := i.catalog.Get(ctx, courseID)
	if errors.Is(err, coursedomain.ErrNotFound) {
		return Session{}, &ValidationError{Reason: "course does not exist"}
	}
	if err != nil {
		return Session{}, err
	}
	if ok, reason := course.Purchasable(); !ok {
		return Session{}, &ValidationError{Reason: reason}
	}

	instructorShare, adminShare, err := domain.ComputeSplit(course.PriceCents, i.splitBps)
	if err != nil {
		return Session{}, err
	}

	sess, err := i.processor.CreateSession(ctx, SessionRequest{
		UserID:       userID,
		CourseID:     course.ID,
		InstructorID: course.InstructorID,
		CourseTitle:  course.Title,
		AmountCents:  course.PriceCents,
	})
	if err != nil {
		return Session{}, err
	}

	p := domain.NewPending(userID, course.ID, course.InstructorID, sess.ID, course.PriceCents, instructorShare, adminShare)
	if err := i.store.CreatePending(ctx, p); err != nil {
		return Session{}, err
	}

	i.log.Info("checkout session created",
		"payment_id", p.ID, "session_id", sess.ID, "course_id", courseID, "user_id", userID, "amount_cents", course.PriceCents)
	return sess, nil
}

// RetryPayment re-arms an existing pending or failed payment with a new
// checkout session. Shares are recomputed from the current course price,
// and the conditional Rearm write keeps the idempotency gate sound: the
// row is back to pending strictly before the new session can report paid.
func (i *Initiator) RetryPayment(ctx context.Context, paymentID uuid.UUID, userID string) (Session, error) {
	p, err := i.store.GetByID(ctx, paymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, ErrPaymentNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if p.UserID != userID {
		return Session{}, ErrNotPaymentOwner
	}
	if !p.Retryable() {
		return Session{}, ErrRetryNotAllowed
	}

	course, err := i.catalog.Get(ctx, p.CourseID)
	if err != nil {
		return Session{}, err
	}
	if ok, reason := course.Purchasable(); !ok {
		return Session{}, &ValidationError{Reason: reason}
	}
	instructorShare, adminShare, err := domain.ComputeSplit(course.PriceCents, i.splitBps)
	if err != nil {
		return Session{}, err
	}

	sess, err := i.processor.CreateSession(ctx, SessionRequest{
		UserID:       p.UserID,
		CourseID:     course.ID,
		InstructorID: course.InstructorID,
		CourseTitle:  course.Title,
		AmountCents:  course.PriceCents,
	})
	if err != nil {
		return Session{}, err
	}

	ok, err := i.store.Rearm(ctx, p.ID, sess.ID, course.PriceCents, instructorShare, adminShare)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		// A concurrent verify or webhook moved the payment to a terminal
		// status between the read and the re-arm.
		return Session{}, ErrRetryNotAllowed
	}

	i.log.Info("payment re-armed",
		"payment_id", p.ID, "session_id", sess.ID, "amount_cents", course.PriceCents)
	return sess, nil
}
