package security

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optifolio/src/config"
)

func TestMain(m *testing.M) {
	config.LoadConfig()
	os.Exit(m.Run())
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret-at-least-32-bytes-long!!")

	token, err := svc.GenerateToken("42", "alpha", false)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, "alpha", claims.ClientName)
	assert.False(t, claims.IsAdmin)
}

func TestTokenCarriesAdminFlag(t *testing.T) {
	svc := NewAuthService("test-secret-at-least-32-bytes-long!!")

	token, err := svc.GenerateToken("1", "ops", true)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAuthService("test-secret-at-least-32-bytes-long!!").GenerateToken("42", "alpha", false)
	require.NoError(t, err)

	_, err = NewAuthService("a-completely-different-signing-key!!").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := NewAuthService("test-secret-at-least-32-bytes-long!!").ValidateToken("not.a.jwt")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	svc := NewAuthService("unused")

	hash, err := svc.HashPassword("hunter2!")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2!", hash)

	assert.NoError(t, svc.CompareHashAndPassword(hash, "hunter2!"))
	assert.Error(t, svc.CompareHashAndPassword(hash, "wrong"))
}
