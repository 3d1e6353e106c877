package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthenticator(t *testing.T) {
	a := NewJWTAuthenticator("access-secret", "refresh-secret", "souq", "souq")

	access, refresh, err := a.GenerateTokens("user-1", "wholesale", false)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	t.Run("AccessClaims", func(t *testing.T) {
		token, err := a.ValidateAccessToken(access)
		require.NoError(t, err)

		claims, ok := token.Claims.(jwt.MapClaims)
		require.True(t, ok)
		assert.Equal(t, "user-1", claims["sub"])
		assert.Equal(t, "wholesale", claims["role"])
		assert.Equal(t, false, claims["admin"])
	})

	t.Run("RefreshClaims", func(t *testing.T) {
		token, err := a.ValidateRefreshToken(refresh)
		require.NoError(t, err)

		claims, ok := token.Claims.(jwt.MapClaims)
		require.True(t, ok)
		assert.Equal(t, "user-1", claims["sub"])
	})

	t.Run("SecretsAreNotInterchangeable", func(t *testing.T) {
		_, err := a.ValidateAccessToken(refresh)
		assert.Error(t, err)

		_, err = a.ValidateRefreshToken(access)
		assert.Error(t, err)
	})

	t.Run("TamperedTokenRejected", func(t *testing.T) {
		other := NewJWTAuthenticator("other-secret", "other-refresh", "souq", "souq")
		forged, _, err := other.GenerateTokens("user-1", "customer", true)
		require.NoError(t, err)

		_, err = a.ValidateAccessToken(forged)
		assert.Error(t, err)
	})
}
