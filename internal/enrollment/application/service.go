package application

import (
	"context"
	"log/slog"

	"github.com/learnhub/settlement/internal/enrollment/domain"
)

// Service grants course access after a payment completes. Granting is
// idempotent: a duplicate attempt for the same (user, course) is success.
type Service struct {
	log   *slog.Logger
	store EnrollmentStore
	chat  ChatClient
}

func NewService(log *slog.Logger, store EnrollmentStore, chat ChatClient) *Service {
	return &Service{log: log, store: store, chat: chat}
}

func (s *Service) Grant(ctx context.Context, userID, courseID string) error {
	created, err := s.store.Create(ctx, domain.New(userID, courseID))
	if err != nil {
		return err
	}
	if created {
		s.log.Info("enrollment created", "user_id", userID, "course_id", courseID)
	} else {
		s.log.Info("enrollment already exists", "user_id", userID, "course_id", courseID)
	}

	// The financial and entitlement state is authoritative regardless of
	// the chat side effect; chat membership is reconciled out of band.
	if err := s.chat.AddParticipant(ctx, courseID, userID); err != nil {
		s.log.Error("chat participant add failed", "user_id", userID, "course_id", courseID, "err", err)
	}
	return nil
}
