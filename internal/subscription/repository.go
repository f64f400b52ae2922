// Egen Lista | 2026
// repository.go

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egenlista/api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Create is a no-op when the user already has a row, so callers can
// run it at every registration path without checking first.
func (r *repository) Create(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, plan, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Plan,
		sub.Status,
	)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	return nil
}

func (r *repository) GetByUserID(
	ctx context.Context,
	userID string,
) (*Subscription, error) {
	query := `
		SELECT id, user_id, plan, status, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return &sub, nil
}

func (r *repository) Update(ctx context.Context, sub *Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan = $2, status = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &sub.UpdatedAt, query,
		sub.UserID,
		sub.Plan,
		sub.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	return nil
}
