// Egen Lista | 2026
// service.go

package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/egenlista/api/internal/auth"
	"github.com/egenlista/api/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnsureForUser guarantees a free subscription row exists for the
// user. Safe to call repeatedly.
func (s *Service) EnsureForUser(ctx context.Context, userID string) error {
	sub := &Subscription{
		ID:     uuid.New().String(),
		UserID: userID,
		Plan:   PlanFree,
		Status: StatusActive,
	}

	return s.repo.Create(ctx, sub)
}

// PlanForUser resolves the effective plan for token claims. A missing
// row reads as free rather than an error; rows predating the
// subscriptions table behave like never-upgraded accounts.
func (s *Service) PlanForUser(
	ctx context.Context,
	userID string,
) (string, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return PlanFree, nil
		}
		return "", err
	}

	return sub.EffectivePlan(), nil
}

func (s *Service) GetForUser(
	ctx context.Context,
	userID string,
) (*Subscription, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			if ensureErr := s.EnsureForUser(ctx, userID); ensureErr != nil {
				return nil, ensureErr
			}
			return s.repo.GetByUserID(ctx, userID)
		}
		return nil, err
	}

	return sub, nil
}

func (s *Service) IsPro(ctx context.Context, userID string) (bool, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return sub.IsPro(), nil
}

// NoteLimitForUser returns the note character cap for the user's
// current plan.
func (s *Service) NoteLimitForUser(
	ctx context.Context,
	userID string,
) (int, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return FreeNoteLimit, nil
		}
		return 0, err
	}

	return sub.NoteLimit(), nil
}

// SetPlan is the admin override; there is no payment provider, so
// plan changes arrive through the admin surface.
func (s *Service) SetPlan(
	ctx context.Context,
	userID, plan, status string,
) (*Subscription, error) {
	if !ValidPlan(plan) {
		return nil, fmt.Errorf(
			"set plan: invalid plan %q: %w",
			plan,
			core.ErrInvalidInput,
		)
	}

	if status == "" {
		status = StatusActive
	}
	if !ValidStatus(status) {
		return nil, fmt.Errorf(
			"set plan: invalid status %q: %w",
			status,
			core.ErrInvalidInput,
		)
	}

	sub, err := s.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub.Plan = plan
	sub.Status = status

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

var _ auth.PlanProvider = (*Service)(nil)
