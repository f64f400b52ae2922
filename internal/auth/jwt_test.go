// Egen Lista | 2026
// jwt_test.go

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egenlista/api/internal/config"
	"github.com/egenlista/api/internal/core"
)

func newTestJWTManager(t *testing.T, accessExpire time.Duration) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")

	require.NoError(t, GenerateKeyPair(privatePath, publicPath))

	manager, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     privatePath,
		PublicKeyPath:      publicPath,
		AccessTokenExpire:  accessExpire,
		RefreshTokenExpire: 168 * time.Hour,
		Issuer:             "egenlista",
		Audience:           "egenlista-api",
	})
	require.NoError(t, err)

	return manager
}

func TestAccessTokenRoundTrip(t *testing.T) {
	manager := newTestJWTManager(t, 15*time.Minute)

	token, err := manager.CreateAccessToken(AccessTokenClaims{
		UserID: "u1",
		Role:   "USER",
		Plan:   "PRO",
	})
	require.NoError(t, err)

	claims, err := manager.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "USER", claims.Role)
	assert.Equal(t, "PRO", claims.Plan)
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	manager := newTestJWTManager(t, -time.Minute)

	token, err := manager.CreateAccessToken(AccessTokenClaims{
		UserID: "u1",
		Role:   "USER",
		Plan:   "FREE",
	})
	require.NoError(t, err)

	_, err = manager.VerifyAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestVerifyAccessTokenWrongKey(t *testing.T) {
	issuer := newTestJWTManager(t, 15*time.Minute)
	verifier := newTestJWTManager(t, 15*time.Minute)

	token, err := issuer.CreateAccessToken(AccessTokenClaims{
		UserID: "u1",
		Role:   "USER",
		Plan:   "FREE",
	})
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	manager := newTestJWTManager(t, 15*time.Minute)

	_, err := manager.VerifyAccessToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestCreateRefreshTokenKeepsFamily(t *testing.T) {
	manager := newTestJWTManager(t, 15*time.Minute)

	first, err := manager.CreateRefreshToken("u1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, first.FamilyID, "a fresh login starts a new family")
	assert.Equal(t, core.HashToken(first.Token), first.Hash)

	rotated, err := manager.CreateRefreshToken("u1", first.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, first.FamilyID, rotated.FamilyID,
		"rotation stays inside the family")
	assert.NotEqual(t, first.Token, rotated.Token)
}

func TestJWKSHandlerServesPublicKey(t *testing.T) {
	manager := newTestJWTManager(t, 15*time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	rec := httptest.NewRecorder()

	manager.GetJWKSHandler()(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"keys"`)
	assert.Contains(t, rec.Body.String(), manager.GetKeyID())
}
