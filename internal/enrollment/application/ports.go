package application

import (
	"context"

	"github.com/learnhub/settlement/internal/enrollment/domain"
)

// EnrollmentStore persists enrollments unique per (user, course). Create
// reports false instead of erroring when the pair already exists, since
// verify and webhook may both attempt the grant.
type EnrollmentStore interface {
	Create(ctx context.Context, e domain.Enrollment) (bool, error)
	Get(ctx context.Context, userID, courseID string) (domain.Enrollment, error)
}

// ChatClient adds the buyer to the course discussion room. A failure here
// never affects payment, settlement, or enrollment state.
type ChatClient interface {
	AddParticipant(ctx context.Context, courseID, userID string) error
}
