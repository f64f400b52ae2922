// Egen Lista | 2026
// entity.go

package subscription

import (
	"time"
)

const (
	PlanFree = "FREE"
	PlanPro  = "PRO"

	StatusActive   = "ACTIVE"
	StatusTrialing = "TRIALING"
	StatusCanceled = "CANCELED"
	StatusPastDue  = "PAST_DUE"
)

// Note length caps per plan, measured in characters.
const (
	FreeNoteLimit = 1000
	ProNoteLimit  = 10000
)

type Subscription struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Plan      string    `db:"plan"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsPro gates the paid features. A canceled or past-due PRO row falls
// back to free behavior.
func (s *Subscription) IsPro() bool {
	return s.Plan == PlanPro &&
		(s.Status == StatusActive || s.Status == StatusTrialing)
}

// EffectivePlan is what goes into token claims and feature gates.
func (s *Subscription) EffectivePlan() string {
	if s.IsPro() {
		return PlanPro
	}
	return PlanFree
}

func (s *Subscription) NoteLimit() int {
	if s.IsPro() {
		return ProNoteLimit
	}
	return FreeNoteLimit
}

func ValidPlan(plan string) bool {
	return plan == PlanFree || plan == PlanPro
}

func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusTrialing, StatusCanceled, StatusPastDue:
		return true
	}
	return false
}
