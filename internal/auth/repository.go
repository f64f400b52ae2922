// Egen Lista | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/egenlista/api/internal/core"
)

type Repository interface {
	// Refresh tokens.
	CreateRefreshToken(ctx context.Context, token *RefreshToken) error
	FindRefreshByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	FindRefreshByID(ctx context.Context, id string) (*RefreshToken, error)
	MarkRefreshUsed(ctx context.Context, id, replacedByID string) error
	RevokeRefreshByID(ctx context.Context, id string) error
	RevokeRefreshByFamilyID(ctx context.Context, familyID string) error
	RevokeAllRefreshForUser(
		ctx context.Context,
		db core.DBTX,
		userID string,
	) error
	GetActiveSessionsForUser(
		ctx context.Context,
		userID string,
	) ([]RefreshToken, error)

	// Email verification tokens.
	ReplaceVerificationToken(
		ctx context.Context,
		token *VerificationToken,
	) error
	FindVerificationToken(
		ctx context.Context,
		tokenHash string,
	) (*VerificationToken, error)
	DeleteVerificationToken(
		ctx context.Context,
		db core.DBTX,
		tokenHash string,
	) (int64, error)
	ListExpiredVerificationTokens(
		ctx context.Context,
		now time.Time,
		limit int,
	) ([]VerificationToken, error)

	// Password reset tokens.
	CreatePasswordResetToken(
		ctx context.Context,
		token *PasswordResetToken,
	) error
	ListActivePasswordResetTokens(
		ctx context.Context,
		now time.Time,
	) ([]PasswordResetToken, error)
	DeletePasswordResetToken(
		ctx context.Context,
		db core.DBTX,
		id string,
	) (int64, error)
	DeleteExpiredPasswordResetTokens(
		ctx context.Context,
		now time.Time,
	) (int64, error)

	// Linked OAuth accounts.
	CreateOAuthAccount(ctx context.Context, account *OAuthAccount) error
	FindOAuthAccount(
		ctx context.Context,
		provider, providerAccountID string,
	) (*OAuthAccount, error)
	UserHasOAuthAccount(ctx context.Context, userID string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) CreateRefreshToken(
	ctx context.Context,
	token *RefreshToken,
) error {
	query := `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, family_id, expires_at,
			user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.FamilyID,
		token.ExpiresAt,
		token.UserAgent,
		token.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindRefreshByHash(
	ctx context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	query := `
		SELECT
			id, user_id, token_hash, family_id, expires_at, created_at,
			is_used, used_at, revoked_at, replaced_by_id, user_agent, ip_address
		FROM refresh_tokens
		WHERE token_hash = $1`

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

func (r *repository) FindRefreshByID(
	ctx context.Context,
	id string,
) (*RefreshToken, error) {
	query := `
		SELECT
			id, user_id, token_hash, family_id, expires_at, created_at,
			is_used, used_at, revoked_at, replaced_by_id, user_agent, ip_address
		FROM refresh_tokens
		WHERE id = $1`

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

func (r *repository) MarkRefreshUsed(
	ctx context.Context,
	id, replacedByID string,
) error {
	query := `
		UPDATE refresh_tokens
		SET is_used = true, used_at = NOW(), replaced_by_id = $2
		WHERE id = $1 AND is_used = false`

	result, err := r.db.ExecContext(ctx, query, id, replacedByID)
	if err != nil {
		return fmt.Errorf("mark refresh token as used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark refresh token as used: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("mark refresh token as used: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RevokeRefreshByID(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("revoke refresh token: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RevokeRefreshByFamilyID(
	ctx context.Context,
	familyID string,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE family_id = $1 AND revoked_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, familyID)
	if err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}

	return nil
}

// RevokeAllRefreshForUser takes the executor explicitly so a password
// reset can sign out every session in the same transaction that
// consumes the token and changes the hash.
func (r *repository) RevokeAllRefreshForUser(
	ctx context.Context,
	db core.DBTX,
	userID string,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL`

	_, err := db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("revoke all user tokens: %w", err)
	}

	return nil
}

func (r *repository) GetActiveSessionsForUser(
	ctx context.Context,
	userID string,
) ([]RefreshToken, error) {
	query := `
		SELECT
			id, user_id, token_hash, family_id, expires_at, created_at,
			is_used, used_at, revoked_at, replaced_by_id, user_agent, ip_address
		FROM refresh_tokens
		WHERE user_id = $1
			AND revoked_at IS NULL
			AND is_used = false
			AND expires_at > NOW()
		ORDER BY created_at DESC`

	var tokens []RefreshToken
	err := r.db.SelectContext(ctx, &tokens, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get active sessions: %w", err)
	}

	return tokens, nil
}

// ReplaceVerificationToken drops any outstanding token for the email
// before inserting, so only the most recent link is redeemable.
func (r *repository) ReplaceVerificationToken(
	ctx context.Context,
	token *VerificationToken,
) error {
	deleteQuery := `DELETE FROM verification_tokens WHERE email = $1`
	if _, err := r.db.ExecContext(ctx, deleteQuery, token.Email); err != nil {
		return fmt.Errorf("delete old verification tokens: %w", err)
	}

	insertQuery := `
		INSERT INTO verification_tokens (token_hash, email, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, insertQuery,
		token.TokenHash,
		token.Email,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create verification token: %w", err)
	}

	return nil
}

func (r *repository) FindVerificationToken(
	ctx context.Context,
	tokenHash string,
) (*VerificationToken, error) {
	query := `
		SELECT token_hash, email, expires_at, created_at
		FROM verification_tokens
		WHERE token_hash = $1`

	var token VerificationToken
	err := r.db.GetContext(ctx, &token, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find verification token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find verification token: %w", err)
	}

	return &token, nil
}

func (r *repository) DeleteVerificationToken(
	ctx context.Context,
	db core.DBTX,
	tokenHash string,
) (int64, error) {
	query := `DELETE FROM verification_tokens WHERE token_hash = $1`

	result, err := db.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return 0, fmt.Errorf("delete verification token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete verification token: %w", err)
	}

	return rows, nil
}

func (r *repository) ListExpiredVerificationTokens(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]VerificationToken, error) {
	query := `
		SELECT token_hash, email, expires_at, created_at
		FROM verification_tokens
		WHERE expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	var tokens []VerificationToken
	err := r.db.SelectContext(ctx, &tokens, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired verification tokens: %w", err)
	}

	return tokens, nil
}

func (r *repository) CreatePasswordResetToken(
	ctx context.Context,
	token *PasswordResetToken,
) error {
	query := `
		INSERT INTO password_reset_tokens (id, email, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, query,
		token.ID,
		token.Email,
		token.TokenHash,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create password reset token: %w", err)
	}

	return nil
}

func (r *repository) ListActivePasswordResetTokens(
	ctx context.Context,
	now time.Time,
) ([]PasswordResetToken, error) {
	query := `
		SELECT id, email, token_hash, expires_at, created_at
		FROM password_reset_tokens
		WHERE expires_at > $1
		ORDER BY created_at DESC`

	var tokens []PasswordResetToken
	err := r.db.SelectContext(ctx, &tokens, query, now)
	if err != nil {
		return nil, fmt.Errorf("list active reset tokens: %w", err)
	}

	return tokens, nil
}

func (r *repository) DeletePasswordResetToken(
	ctx context.Context,
	db core.DBTX,
	id string,
) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE id = $1`

	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete reset token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete reset token: %w", err)
	}

	return rows, nil
}

func (r *repository) DeleteExpiredPasswordResetTokens(
	ctx context.Context,
	now time.Time,
) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}

	return rows, nil
}

func (r *repository) CreateOAuthAccount(
	ctx context.Context,
	account *OAuthAccount,
) error {
	query := `
		INSERT INTO oauth_accounts (id, user_id, provider, provider_account_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &account.CreatedAt, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
	)
	if err != nil {
		return fmt.Errorf("create oauth account: %w", err)
	}

	return nil
}

func (r *repository) FindOAuthAccount(
	ctx context.Context,
	provider, providerAccountID string,
) (*OAuthAccount, error) {
	query := `
		SELECT id, user_id, provider, provider_account_id, created_at
		FROM oauth_accounts
		WHERE provider = $1 AND provider_account_id = $2`

	var account OAuthAccount
	err := r.db.GetContext(ctx, &account, query, provider, providerAccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find oauth account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find oauth account: %w", err)
	}

	return &account, nil
}

func (r *repository) UserHasOAuthAccount(
	ctx context.Context,
	userID string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM oauth_accounts WHERE user_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, fmt.Errorf("check oauth account: %w", err)
	}

	return exists, nil
}
