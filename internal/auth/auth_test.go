package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) *Keys {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys, err := NewKeys(privateKey)
	require.NoError(t, err)
	return keys
}

func TestTokenRoundTrip(t *testing.T) {
	keys := testKeys(t)

	token, err := keys.GenerateToken("user-123", RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := keys.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, RoleUser, claims.Role)
}

func TestGenerateTokenRejectsUnknownRole(t *testing.T) {
	keys := testKeys(t)

	_, err := keys.GenerateToken("user-123", "SUPERUSER")
	assert.Error(t, err)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	keys := testKeys(t)

	token, err := keys.GenerateToken("user-123", RoleAdmin)
	require.NoError(t, err)

	_, err = keys.ValidateToken(token + "x")
	assert.Error(t, err)

	_, err = keys.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestValidateTokenRejectsForeignKey(t *testing.T) {
	signer := testKeys(t)
	verifier := testKeys(t)

	token, err := signer.GenerateToken("user-123", RoleUser)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestIsAllowed(t *testing.T) {
	assert.True(t, IsAllowed(RoleAdmin, RoleAdmin, RolePharmacist))
	assert.True(t, IsAllowed(RolePharmacist, RoleAdmin, RolePharmacist))
	assert.False(t, IsAllowed(RoleUser, RoleAdmin, RolePharmacist))
	assert.False(t, IsAllowed(RoleUser))
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(RoleAdmin))
	assert.True(t, IsValidRole(RolePharmacist))
	assert.True(t, IsValidRole(RoleUser))
	assert.False(t, IsValidRole("admin"))
	assert.False(t, IsValidRole(""))
}
