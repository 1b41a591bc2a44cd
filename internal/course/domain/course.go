package domain

import "errors"

var ErrNotFound = errors.New("course not found")

type Course struct {
	ID           string
	Title        string
	PriceCents   int64
	InstructorID string
	Published    bool
	Blocked      bool
}

// Purchasable reports whether a checkout session may be opened for the
// course. The reason string feeds the validation error shown to the buyer.
func (c Course) Purchasable() (bool, string) {
	switch {
	case !c.Published:
		return false, "course is not published"
	case c.Blocked:
		return false, "course is blocked"
	case c.PriceCents <= 0:
		return false, "course has no valid price"
	case c.InstructorID == "":
		return false, "course has no assigned instructor"
	}
	return true, ""
}
