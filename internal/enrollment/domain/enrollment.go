package domain

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("enrollment not found")

type CompletionStatus string

const (
	StatusEnrolled  CompletionStatus = "enrolled"
	StatusCompleted CompletionStatus = "completed"
)

// Enrollment is unique per (UserID, CourseID) and exists only as the
// consequence of exactly one completed payment for that pair.
type Enrollment struct {
	UserID          string
	CourseID        string
	Status          CompletionStatus
	ProgressPercent int
	EnrolledAt      time.Time
}

func New(userID, courseID string) Enrollment {
	return Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		Status:     StatusEnrolled,
		EnrolledAt: time.Now().UTC(),
	}
}
