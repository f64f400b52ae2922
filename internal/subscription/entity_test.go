// Egen Lista | 2026
// entity_test.go

package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPro(t *testing.T) {
	tests := []struct {
		plan   string
		status string
		want   bool
	}{
		{PlanPro, StatusActive, true},
		{PlanPro, StatusTrialing, true},
		{PlanPro, StatusCanceled, false},
		{PlanPro, StatusPastDue, false},
		{PlanFree, StatusActive, false},
		{PlanFree, StatusCanceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.plan+"/"+tt.status, func(t *testing.T) {
			s := Subscription{Plan: tt.plan, Status: tt.status}
			assert.Equal(t, tt.want, s.IsPro())
		})
	}
}

func TestEffectivePlanFallsBackToFree(t *testing.T) {
	lapsed := Subscription{Plan: PlanPro, Status: StatusPastDue}
	assert.Equal(t, PlanFree, lapsed.EffectivePlan())

	active := Subscription{Plan: PlanPro, Status: StatusActive}
	assert.Equal(t, PlanPro, active.EffectivePlan())
}

func TestNoteLimit(t *testing.T) {
	free := Subscription{Plan: PlanFree, Status: StatusActive}
	assert.Equal(t, FreeNoteLimit, free.NoteLimit())

	pro := Subscription{Plan: PlanPro, Status: StatusActive}
	assert.Equal(t, ProNoteLimit, pro.NoteLimit())

	canceled := Subscription{Plan: PlanPro, Status: StatusCanceled}
	assert.Equal(t, FreeNoteLimit, canceled.NoteLimit())
}

func TestValidPlanAndStatus(t *testing.T) {
	assert.True(t, ValidPlan(PlanFree))
	assert.True(t, ValidPlan(PlanPro))
	assert.False(t, ValidPlan("ENTERPRISE"))

	assert.True(t, ValidStatus(StatusActive))
	assert.True(t, ValidStatus(StatusPastDue))
	assert.False(t, ValidStatus("PAUSED"))
}
