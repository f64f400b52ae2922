// Egen Lista | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("korrekt häst batteri")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyPassword("korrekt häst batteri", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("fel lösenord", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	h1, err := HashPassword("same password")
	require.NoError(t, err)
	h2, err := HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	_, err := VerifyPassword("anything", "not-a-hash")
	assert.Error(t, err)
}

func TestVerifyPasswordTimingSafeNilHash(t *testing.T) {
	ok, _, err := VerifyPasswordTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, ok, "accounts without a password hash never match")
}

func TestGenerateVerificationTokenUnique(t *testing.T) {
	t1, err := GenerateVerificationToken()
	require.NoError(t, err)
	t2, err := GenerateVerificationToken()
	require.NoError(t, err)

	assert.NotEmpty(t, t1)
	assert.NotEqual(t, t1, t2)
}

func TestHashTokenDeterministic(t *testing.T) {
	token, err := GenerateVerificationToken()
	require.NoError(t, err)

	h := HashToken(token)
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken(token))
	assert.True(t, CompareTokenHash(token, h))
	assert.False(t, CompareTokenHash("other", h))
}

func TestCompareSecret(t *testing.T) {
	assert.True(t, CompareSecret("s3cret", "s3cret"))
	assert.False(t, CompareSecret("s3cret", "other"))
	assert.False(t, CompareSecret("", "s3cret"))
}
