// Egen Lista | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egenlista/api/internal/core"
)

type fakeUserProvider struct {
	byEmail map[string]*UserInfo
	byID    map[string]*UserInfo

	passwordUpdates   map[string]string
	updatePasswordErr error
	verifiedEmails    []string
	deletedEmails     []string
}

func newFakeUserProvider() *fakeUserProvider {
	return &fakeUserProvider{
		byEmail:         make(map[string]*UserInfo),
		byID:            make(map[string]*UserInfo),
		passwordUpdates: make(map[string]string),
	}
}

func (f *fakeUserProvider) add(u *UserInfo) {
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
}

func (f *fakeUserProvider) GetByEmail(
	_ context.Context,
	email string,
) (*UserInfo, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserProvider) GetByID(
	_ context.Context,
	id string,
) (*UserInfo, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserProvider) Create(
	_ context.Context,
	email string,
	passwordHash *string,
	name string,
	emailVerified bool,
) (*UserInfo, error) {
	if _, exists := f.byEmail[email]; exists {
		return nil, core.ErrDuplicateKey
	}
	u := &UserInfo{
		ID:            "user-" + email,
		Email:         email,
		Name:          name,
		PasswordHash:  passwordHash,
		Role:          "USER",
		EmailVerified: emailVerified,
		CreatedAt:     time.Now(),
	}
	f.add(u)
	return u, nil
}

func (f *fakeUserProvider) UpdatePassword(
	_ context.Context,
	_ core.DBTX,
	userID, passwordHash string,
) error {
	if f.updatePasswordErr != nil {
		return f.updatePasswordErr
	}
	f.passwordUpdates[userID] = passwordHash
	if u, ok := f.byID[userID]; ok {
		u.PasswordHash = &passwordHash
	}
	return nil
}

func (f *fakeUserProvider) MarkEmailVerified(
	_ context.Context,
	_ core.DBTX,
	email string,
) error {
	f.verifiedEmails = append(f.verifiedEmails, email)
	if u, ok := f.byEmail[email]; ok {
		u.EmailVerified = true
	}
	return nil
}

func (f *fakeUserProvider) DeleteUnverified(
	_ context.Context,
	_ core.DBTX,
	email string,
) (int64, error) {
	u, ok := f.byEmail[email]
	if !ok || u.EmailVerified {
		return 0, nil
	}
	delete(f.byEmail, email)
	delete(f.byID, u.ID)
	f.deletedEmails = append(f.deletedEmails, email)
	return 1, nil
}

type fakePlanProvider struct {
	ensured []string
	plan    string
}

func (f *fakePlanProvider) EnsureForUser(
	_ context.Context,
	userID string,
) error {
	f.ensured = append(f.ensured, userID)
	return nil
}

func (f *fakePlanProvider) PlanForUser(
	_ context.Context,
	_ string,
) (string, error) {
	if f.plan == "" {
		return "FREE", nil
	}
	return f.plan, nil
}

type sentMail struct {
	kind  string
	to    string
	token string
}

type fakeMailer struct {
	sent []sentMail
}

func (f *fakeMailer) SendAccountVerification(
	_ context.Context,
	to, token string,
) error {
	f.sent = append(f.sent, sentMail{"account_verification", to, token})
	return nil
}

func (f *fakeMailer) SendPasswordReset(
	_ context.Context,
	to, token string,
) error {
	f.sent = append(f.sent, sentMail{"password_reset", to, token})
	return nil
}

func (f *fakeMailer) SendContactVerification(
	_ context.Context,
	to, token string,
) error {
	f.sent = append(f.sent, sentMail{"contact_verification", to, token})
	return nil
}

// fakeRepo keeps tokens in memory and ignores the transaction handles,
// which the service only threads through for the real implementation.
type fakeRepo struct {
	refreshTokens      map[string]*RefreshToken
	verificationTokens map[string]*VerificationToken
	resetTokens        map[string]*PasswordResetToken
	oauthAccounts      map[string]*OAuthAccount

	revokedFamilies []string
	revokedUsers    []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		refreshTokens:      make(map[string]*RefreshToken),
		verificationTokens: make(map[string]*VerificationToken),
		resetTokens:        make(map[string]*PasswordResetToken),
		oauthAccounts:      make(map[string]*OAuthAccount),
	}
}

func (f *fakeRepo) CreateRefreshToken(
	_ context.Context,
	token *RefreshToken,
) error {
	f.refreshTokens[token.ID] = token
	return nil
}

func (f *fakeRepo) FindRefreshByHash(
	_ context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	for _, t := range f.refreshTokens {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepo) FindRefreshByID(
	_ context.Context,
	id string,
) (*RefreshToken, error) {
	t, ok := f.refreshTokens[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) MarkRefreshUsed(
	_ context.Context,
	id, replacedByID string,
) error {
	t, ok := f.refreshTokens[id]
	if !ok {
		return core.ErrNotFound
	}
	now := time.Now()
	t.IsUsed = true
	t.UsedAt = &now
	t.ReplacedByID = &replacedByID
	return nil
}

func (f *fakeRepo) RevokeRefreshByID(_ context.Context, id string) error {
	t, ok := f.refreshTokens[id]
	if !ok {
		return core.ErrNotFound
	}
	now := time.Now()
	t.RevokedAt = &now
	return nil
}

func (f *fakeRepo) RevokeRefreshByFamilyID(
	_ context.Context,
	familyID string,
) error {
	f.revokedFamilies = append(f.revokedFamilies, familyID)
	now := time.Now()
	for _, t := range f.refreshTokens {
		if t.FamilyID == familyID {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeRepo) RevokeAllRefreshForUser(
	_ context.Context,
	_ core.DBTX,
	userID string,
) error {
	f.revokedUsers = append(f.revokedUsers, userID)
	now := time.Now()
	for _, t := range f.refreshTokens {
		if t.UserID == userID {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeRepo) GetActiveSessionsForUser(
	_ context.Context,
	userID string,
) ([]RefreshToken, error) {
	var out []RefreshToken
	for _, t := range f.refreshTokens {
		if t.UserID == userID && t.IsValid() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepo) ReplaceVerificationToken(
	_ context.Context,
	token *VerificationToken,
) error {
	for hash, t := range f.verificationTokens {
		if t.Email == token.Email {
			delete(f.verificationTokens, hash)
		}
	}
	f.verificationTokens[token.TokenHash] = token
	return nil
}

func (f *fakeRepo) FindVerificationToken(
	_ context.Context,
	tokenHash string,
) (*VerificationToken, error) {
	t, ok := f.verificationTokens[tokenHash]
	if !ok {
		return nil, core.ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) DeleteVerificationToken(
	_ context.Context,
	_ core.DBTX,
	tokenHash string,
) (int64, error) {
	if _, ok := f.verificationTokens[tokenHash]; !ok {
		return 0, nil
	}
	delete(f.verificationTokens, tokenHash)
	return 1, nil
}

func (f *fakeRepo) ListExpiredVerificationTokens(
	_ context.Context,
	now time.Time,
	_ int,
) ([]VerificationToken, error) {
	var out []VerificationToken
	for _, t := range f.verificationTokens {
		if t.ExpiresAt.Before(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreatePasswordResetToken(
	_ context.Context,
	token *PasswordResetToken,
) error {
	f.resetTokens[token.ID] = token
	return nil
}

func (f *fakeRepo) ListActivePasswordResetTokens(
	_ context.Context,
	now time.Time,
) ([]PasswordResetToken, error) {
	var out []PasswordResetToken
	for _, t := range f.resetTokens {
		if t.ExpiresAt.After(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeletePasswordResetToken(
	_ context.Context,
	_ core.DBTX,
	id string,
) (int64, error) {
	if _, ok := f.resetTokens[id]; !ok {
		return 0, nil
	}
	delete(f.resetTokens, id)
	return 1, nil
}

func (f *fakeRepo) DeleteExpiredPasswordResetTokens(
	_ context.Context,
	now time.Time,
) (int64, error) {
	var n int64
	for id, t := range f.resetTokens {
		if t.ExpiresAt.Before(now) {
			delete(f.resetTokens, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateOAuthAccount(
	_ context.Context,
	account *OAuthAccount,
) error {
	f.oauthAccounts[account.Provider+":"+account.ProviderAccountID] = account
	return nil
}

func (f *fakeRepo) FindOAuthAccount(
	_ context.Context,
	provider, providerAccountID string,
) (*OAuthAccount, error) {
	a, ok := f.oauthAccounts[provider+":"+providerAccountID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) UserHasOAuthAccount(
	_ context.Context,
	userID string,
) (bool, error) {
	for _, a := range f.oauthAccounts {
		if a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

type serviceFixture struct {
	service *Service
	repo    *fakeRepo
	users   *fakeUserProvider
	plans   *fakePlanProvider
	mailer  *fakeMailer
}

func newServiceFixture(t *testing.T, db *sqlx.DB) *serviceFixture {
	t.Helper()

	repo := newFakeRepo()
	users := newFakeUserProvider()
	plans := &fakePlanProvider{}
	m := &fakeMailer{}

	return &serviceFixture{
		service: NewService(db, repo, nil, users, plans, m),
		repo:    repo,
		users:   users,
		plans:   plans,
		mailer:  m,
	}
}

func hashOf(t *testing.T, password string) *string {
	t.Helper()
	h, err := core.HashPassword(password)
	require.NoError(t, err)
	return &h
}

func TestRegisterCreatesUnverifiedAccount(t *testing.T) {
	f := newServiceFixture(t, nil)

	resp, err := f.service.Register(context.Background(), RegisterRequest{
		Email:    "anna@example.se",
		Password: "hemligt lösenord",
		Name:     "Anna Andersson",
	})
	require.NoError(t, err)

	assert.False(t, resp.User.EmailVerified)
	assert.Equal(t, "FREE", resp.User.Plan)
	assert.Equal(t, []string{"user-anna@example.se"}, f.plans.ensured)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "account_verification", f.mailer.sent[0].kind)
	assert.Equal(t, "anna@example.se", f.mailer.sent[0].to)

	assert.Len(t, f.repo.verificationTokens, 1)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:           "u1",
		Email:        "anna@example.se",
		PasswordHash: hashOf(t, "befintligt"),
	})

	_, err := f.service.Register(context.Background(), RegisterRequest{
		Email:    "anna@example.se",
		Password: "nytt lösenord",
		Name:     "Anna",
	})

	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRegisterOAuthOnlyAccount(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:            "u1",
		Email:         "anna@example.se",
		EmailVerified: true,
	})

	_, err := f.service.Register(context.Background(), RegisterRequest{
		Email:    "anna@example.se",
		Password: "nytt lösenord",
		Name:     "Anna",
	})

	assert.ErrorIs(t, err, ErrOAuthOnlyAccount,
		"password-less accounts report the google link, not a plain duplicate")
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "ingen@example.se",
		Password: "vad som helst",
	}, "", "")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:            "u1",
		Email:         "anna@example.se",
		PasswordHash:  hashOf(t, "rätt lösenord"),
		EmailVerified: true,
	})

	_, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "anna@example.se",
		Password: "fel lösenord",
	}, "", "")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginOAuthOnlyAccount(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:            "u1",
		Email:         "anna@example.se",
		EmailVerified: true,
	})

	_, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "anna@example.se",
		Password: "vad som helst",
	}, "", "")

	assert.ErrorIs(t, err, ErrInvalidCredentials,
		"google-only accounts look like a bad password, not a separate case")
}

func TestLoginUnverifiedEmail(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:           "u1",
		Email:        "anna@example.se",
		PasswordHash: hashOf(t, "rätt lösenord"),
	})

	_, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "anna@example.se",
		Password: "rätt lösenord",
	}, "", "")

	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestLoginUnverifiedWrongPasswordStaysGeneric(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:           "u1",
		Email:        "anna@example.se",
		PasswordHash: hashOf(t, "rätt lösenord"),
	})

	_, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "anna@example.se",
		Password: "fel lösenord",
	}, "", "")

	assert.ErrorIs(t, err, ErrInvalidCredentials,
		"the verification state only leaks after a correct password")
}

func TestResendVerificationIsSilentForUnknownAndVerified(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:            "u1",
		Email:         "klar@example.se",
		PasswordHash:  hashOf(t, "lösenord"),
		EmailVerified: true,
	})

	require.NoError(t,
		f.service.ResendVerification(context.Background(), "ingen@example.se"))
	require.NoError(t,
		f.service.ResendVerification(context.Background(), "klar@example.se"))

	assert.Empty(t, f.mailer.sent)
}

func TestForgotPasswordGenericForUnknownEmail(t *testing.T) {
	f := newServiceFixture(t, nil)

	err := f.service.ForgotPassword(context.Background(), "ingen@example.se")

	require.NoError(t, err)
	assert.Empty(t, f.mailer.sent)
	assert.Empty(t, f.repo.resetTokens)
}

func TestForgotPasswordGenericForOAuthOnly(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:            "u1",
		Email:         "anna@example.se",
		EmailVerified: true,
	})

	err := f.service.ForgotPassword(context.Background(), "anna@example.se")

	require.NoError(t, err)
	assert.Empty(t, f.mailer.sent)
}

func TestForgotPasswordStoresHashedToken(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:            "u1",
		Email:         "anna@example.se",
		PasswordHash:  hashOf(t, "lösenord"),
		EmailVerified: true,
	})

	err := f.service.ForgotPassword(context.Background(), "anna@example.se")
	require.NoError(t, err)

	require.Len(t, f.mailer.sent, 1)
	require.Len(t, f.repo.resetTokens, 1)

	for _, stored := range f.repo.resetTokens {
		assert.NotEqual(t, f.mailer.sent[0].token, stored.TokenHash,
			"the mailed token is never stored in plaintext")
		ok, err := core.VerifyPassword(f.mailer.sent[0].token, stored.TokenHash)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestResetPasswordConsumesTokenOnce(t *testing.T) {
	db, mock := newMockDB(t)
	f := newServiceFixture(t, db)
	f.users.add(&UserInfo{
		ID:            "u1",
		Email:         "anna@example.se",
		PasswordHash:  hashOf(t, "gammalt lösenord"),
		EmailVerified: true,
	})

	require.NoError(t,
		f.service.ForgotPassword(context.Background(), "anna@example.se"))
	token := f.mailer.sent[0].token

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := f.service.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:       token,
		NewPassword: "nytt lösenord",
	})
	require.NoError(t, err)

	assert.Contains(t, f.users.passwordUpdates, "u1")
	assert.Equal(t, []string{"u1"}, f.repo.revokedUsers,
		"a reset signs out every session")

	err = f.service.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:       token,
		NewPassword: "ännu ett lösenord",
	})
	assert.ErrorIs(t, err, core.ErrTokenInvalid, "tokens are single use")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordFailedUpdateRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	f := newServiceFixture(t, db)
	f.users.add(&UserInfo{
		ID:            "u1",
		Email:         "anna@example.se",
		PasswordHash:  hashOf(t, "gammalt lösenord"),
		EmailVerified: true,
	})
	f.users.updatePasswordErr = errors.New("connection reset")

	require.NoError(t,
		f.service.ForgotPassword(context.Background(), "anna@example.se"))
	token := f.mailer.sent[0].token

	// The failing password update must roll the whole transaction
	// back, token consumption included, so the user is not left with
	// a spent token and the old password.
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := f.service.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:       token,
		NewPassword: "nytt lösenord",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrTokenInvalid,
		"an infrastructure failure is not reported as a bad token")

	assert.Empty(t, f.users.passwordUpdates)
	assert.Empty(t, f.repo.revokedUsers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	f := newServiceFixture(t, nil)

	err := f.service.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:       "påhittad",
		NewPassword: "nytt lösenord",
	})

	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	f := newServiceFixture(t, nil)

	err := f.service.VerifyEmail(context.Background(), "okänd")

	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.repo.verificationTokens[core.HashToken("gammal")] = &VerificationToken{
		TokenHash: core.HashToken("gammal"),
		Email:     "anna@example.se",
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	err := f.service.VerifyEmail(context.Background(), "gammal")

	assert.ErrorIs(t, err, core.ErrTokenInvalid,
		"expired and unknown tokens fail identically")
	assert.NotErrorIs(t, err, core.ErrTokenExpired)
}

func TestVerifyEmailMarksAccountVerified(t *testing.T) {
	db, mock := newMockDB(t)
	f := newServiceFixture(t, db)
	f.users.add(&UserInfo{
		ID:           "u1",
		Email:        "anna@example.se",
		PasswordHash: hashOf(t, "lösenord"),
	})
	f.repo.verificationTokens[core.HashToken("giltig")] = &VerificationToken{
		TokenHash: core.HashToken("giltig"),
		Email:     "anna@example.se",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := f.service.VerifyEmail(context.Background(), "giltig")
	require.NoError(t, err)

	assert.Equal(t, []string{"anna@example.se"}, f.users.verifiedEmails)
	assert.Empty(t, f.repo.verificationTokens, "the token is consumed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordOAuthOnlyAccount(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.users.add(&UserInfo{
		ID:            "u1",
		Email:         "anna@example.se",
		EmailVerified: true,
	})

	err := f.service.ChangePassword(
		context.Background(),
		"u1",
		"nuvarande",
		"nytt lösenord",
	)

	assert.ErrorIs(t, err, ErrOAuthOnlyAccount)
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestCleanupUnverifiedSweep(t *testing.T) {
	db, mock := newMockDB(t)
	f := newServiceFixture(t, db)

	f.users.add(&UserInfo{
		ID:    "u-stale",
		Email: "stale@example.se",
	})
	f.users.add(&UserInfo{
		ID:            "u-late",
		Email:         "late@example.se",
		EmailVerified: true,
	})

	// One token for an account that never verified, one whose owner
	// verified after the token lapsed.
	f.repo.verificationTokens["hash-stale"] = &VerificationToken{
		TokenHash: "hash-stale",
		Email:     "stale@example.se",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	f.repo.verificationTokens["hash-late"] = &VerificationToken{
		TokenHash: "hash-late",
		Email:     "late@example.se",
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := f.service.CleanupUnverified(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, resp.TokensDeleted)
	assert.Equal(t, 1, resp.UsersDeleted,
		"accounts verified after expiry are kept")
	assert.Equal(t, []string{"stale@example.se"}, f.users.deletedEmails)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupUnverifiedIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	f := newServiceFixture(t, db)

	resp, err := f.service.CleanupUnverified(context.Background())
	require.NoError(t, err)

	assert.Zero(t, resp.TokensDeleted)
	assert.Zero(t, resp.UsersDeleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
