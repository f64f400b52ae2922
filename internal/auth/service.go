// Egen Lista | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/egenlista/api/internal/core"
	"github.com/egenlista/api/internal/mail"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
	ErrOAuthOnlyAccount   = errors.New("account uses google sign-in")
	ErrEmailNotVerified   = errors.New("email not verified")
)

type UserInfo struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  *string
	Role          string
	EmailVerified bool
	CreatedAt     time.Time
}

func (u *UserInfo) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email string,
		passwordHash *string,
		name string,
		emailVerified bool,
	) (*UserInfo, error)
	UpdatePassword(
		ctx context.Context,
		db core.DBTX,
		userID, passwordHash string,
	) error
	MarkEmailVerified(ctx context.Context, db core.DBTX, email string) error
	DeleteUnverified(
		ctx context.Context,
		db core.DBTX,
		email string,
	) (int64, error)
}

// PlanProvider resolves the subscription plan that goes into the
// access token claims.
type PlanProvider interface {
	EnsureForUser(ctx context.Context, userID string) error
	PlanForUser(ctx context.Context, userID string) (string, error)
}

const cleanupBatchSize = 500

type Service struct {
	db           *sqlx.DB
	repo         Repository
	jwt          *JWTManager
	userProvider UserProvider
	planProvider PlanProvider
	mailer       mail.Mailer
}

func NewService(
	db *sqlx.DB,
	repo Repository,
	jwt *JWTManager,
	userProvider UserProvider,
	planProvider PlanProvider,
	mailer mail.Mailer,
) *Service {
	return &Service{
		db:           db,
		repo:         repo,
		jwt:          jwt,
		userProvider: userProvider,
		planProvider: planProvider,
		mailer:       mailer,
	}
}

// Register creates an unverified account and mails a verification
// link. No tokens are issued until the email is confirmed.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*RegisterResponse, error) {
	existing, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if existing != nil {
		if !existing.HasPassword() {
			return nil, ErrOAuthOnlyAccount
		}
		return nil, ErrEmailExists
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(
		ctx,
		req.Email,
		&passwordHash,
		req.Name,
		false,
	)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.planProvider.EnsureForUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	s.issueVerification(ctx, user.Email)

	return &RegisterResponse{
		User: UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			Name:          user.Name,
			Role:          user.Role,
			Plan:          "FREE",
			EmailVerified: false,
			CreatedAt:     user.CreatedAt,
		},
		Message: "Verification email sent",
	}, nil
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.HasPassword() {
		//nolint:errcheck // timing attack prevention
		_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
		return nil, ErrInvalidCredentials
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.userProvider.UpdatePassword(ctx, s.db, user.ID, newHash)
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
}

// ResendVerification responds identically whether or not the address
// belongs to an account, so it cannot be used for enumeration.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userProvider.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	if user.EmailVerified {
		return nil
	}

	s.issueVerification(ctx, user.Email)

	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	tokenHash := core.HashToken(token)

	stored, err := s.repo.FindVerificationToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("verify email: %w", core.ErrTokenInvalid)
		}
		return fmt.Errorf("find verification token: %w", err)
	}

	// Expired reads the same as unknown so the response never reveals
	// whether a token ever existed.
	if stored.IsExpired() {
		return fmt.Errorf("verify email: %w", core.ErrTokenInvalid)
	}

	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		rows, txErr := s.repo.DeleteVerificationToken(ctx, tx, tokenHash)
		if txErr != nil {
			return txErr
		}
		if rows == 0 {
			return core.ErrTokenInvalid
		}

		return s.userProvider.MarkEmailVerified(ctx, tx, stored.Email)
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) ||
			errors.Is(err, core.ErrTokenInvalid) {
			return fmt.Errorf("verify email: %w", core.ErrTokenInvalid)
		}
		return fmt.Errorf("verify email: %w", err)
	}

	return nil
}

// ForgotPassword always reports success. The token itself is stored
// only as an argon2id hash.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userProvider.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	if !user.HasPassword() {
		return nil
	}

	token, err := core.GenerateVerificationToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	tokenHash, err := core.HashPassword(token)
	if err != nil {
		return fmt.Errorf("hash reset token: %w", err)
	}

	reset := &PasswordResetToken{
		ID:        uuid.New().String(),
		Email:     user.Email,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(PasswordResetTokenTTL),
	}

	if err := s.repo.CreatePasswordResetToken(ctx, reset); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	mail.LogOnError(
		s.mailer.SendPasswordReset(ctx, user.Email, token),
		"password_reset",
		user.Email,
	)

	return nil
}

// ResetPassword scans every live reset token because the salted
// hashes cannot be looked up directly. Token consumption, the
// password change, and the session revocation run in one transaction:
// a token redeems at most once and is never spent without the
// password actually changing.
func (s *Service) ResetPassword(
	ctx context.Context,
	req ResetPasswordRequest,
) error {
	candidates, err := s.repo.ListActivePasswordResetTokens(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("list reset tokens: %w", err)
	}

	var matched *PasswordResetToken
	for i := range candidates {
		ok, verifyErr := core.VerifyPassword(
			req.Token,
			candidates[i].TokenHash,
		)
		if verifyErr == nil && ok {
			matched = &candidates[i]
			break
		}
	}

	if matched == nil {
		return fmt.Errorf("reset password: %w", core.ErrTokenInvalid)
	}

	user, err := s.userProvider.GetByEmail(ctx, matched.Email)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	newHash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		rows, txErr := s.repo.DeletePasswordResetToken(ctx, tx, matched.ID)
		if txErr != nil {
			return txErr
		}
		if rows == 0 {
			return core.ErrTokenInvalid
		}

		if txErr := s.userProvider.UpdatePassword(
			ctx,
			tx,
			user.ID,
			newHash,
		); txErr != nil {
			return txErr
		}

		return s.repo.RevokeAllRefreshForUser(ctx, tx, user.ID)
	})
	if err != nil {
		if errors.Is(err, core.ErrTokenInvalid) {
			return fmt.Errorf("reset password: %w", core.ErrTokenInvalid)
		}
		return fmt.Errorf("reset password: %w", err)
	}

	return nil
}

// CleanupUnverified removes expired verification tokens together with
// the unverified accounts they belong to, one transaction per token
// so a failure never blocks the rest of the sweep.
func (s *Service) CleanupUnverified(
	ctx context.Context,
) (*CleanupResponse, error) {
	now := time.Now()

	expired, err := s.repo.ListExpiredVerificationTokens(
		ctx,
		now,
		cleanupBatchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired tokens: %w", err)
	}

	resp := &CleanupResponse{}

	for i := range expired {
		token := expired[i]

		err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
			tokenRows, txErr := s.repo.DeleteVerificationToken(
				ctx,
				tx,
				token.TokenHash,
			)
			if txErr != nil {
				return txErr
			}

			userRows, txErr := s.userProvider.DeleteUnverified(
				ctx,
				tx,
				token.Email,
			)
			if txErr != nil {
				return txErr
			}

			resp.TokensDeleted += int(tokenRows)
			resp.UsersDeleted += int(userRows)
			return nil
		})
		if err != nil {
			slog.Warn("cleanup record failed",
				"email", token.Email,
				"error", err,
			)
		}
	}

	if _, err := s.repo.DeleteExpiredPasswordResetTokens(ctx, now); err != nil {
		slog.Warn("cleanup reset tokens failed", "error", err)
	}

	return resp, nil
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindRefreshByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if storedToken.IsUsed {
		//nolint:errcheck // security revocation continues regardless
		_ = s.repo.RevokeRefreshByFamilyID(ctx, storedToken.FamilyID)
		return nil, ErrTokenReuse
	}

	if !storedToken.IsValid() {
		if storedToken.IsRevoked() {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.userProvider.GetByID(ctx, storedToken.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return s.createAuthResponse(
		ctx,
		user,
		userAgent,
		ipAddress,
		storedToken.FamilyID,
		&storedToken.ID,
	)
}

func (s *Service) Logout(
	ctx context.Context,
	refreshToken, userID string,
) error {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindRefreshByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if storedToken.UserID != userID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeRefreshByID(ctx, storedToken.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllRefreshForUser(ctx, s.db, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	return nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID string,
) error {
	token, err := s.repo.FindRefreshByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if token.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeRefreshByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if !user.HasPassword() {
		return ErrOAuthOnlyAccount
	}

	valid, _, err := core.VerifyPasswordWithRehash(
		currentPassword,
		*user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.UpdatePassword(ctx, s.db, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.LogoutAll(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan, err := s.planProvider.PlanForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		Plan:          plan,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}, nil
}

func (s *Service) issueVerification(ctx context.Context, email string) {
	token, err := core.GenerateVerificationToken()
	if err != nil {
		slog.Error("generate verification token", "error", err)
		return
	}

	verification := &VerificationToken{
		TokenHash: core.HashToken(token),
		Email:     email,
		ExpiresAt: time.Now().Add(VerificationTokenTTL),
	}

	if err := s.repo.ReplaceVerificationToken(ctx, verification); err != nil {
		slog.Error("store verification token", "error", err)
		return
	}

	mail.LogOnError(
		s.mailer.SendAccountVerification(ctx, email, token),
		"account_verification",
		email,
	)
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	plan, err := s.planProvider.PlanForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	accessToken, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID: user.ID,
		Role:   user.Role,
		Plan:   plan,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(user.ID, familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	newTokenID := uuid.New().String()

	refreshTokenEntity := &RefreshToken{
		ID:        newTokenID,
		UserID:    user.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.repo.CreateRefreshToken(ctx, refreshTokenEntity); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if oldTokenID != nil {
		//nolint:errcheck // best-effort token chain tracking
		_ = s.repo.MarkRefreshUsed(ctx, *oldTokenID, newTokenID)
	}

	expiresIn := s.jwt.AccessTokenExpire()

	return &AuthResponse{
		User: UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			Name:          user.Name,
			Role:          user.Role,
			Plan:          plan,
			EmailVerified: user.EmailVerified,
			CreatedAt:     user.CreatedAt,
		},
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(expiresIn / time.Second),
			ExpiresAt:    time.Now().Add(expiresIn),
		},
	}, nil
}
