package identity_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceGenerate(t *testing.T) {
	signingKey := []byte("test-signing-key")
	service := identity.NewTokenService(signingKey, time.Hour, "identity-core", nil)

	t.Run("generates a valid signed token", func(t *testing.T) {
		tokenString, err := service.Generate("user-123")
		require.NoError(t, err)
		require.NotEmpty(t, tokenString)

		token, err := jwt.ParseWithClaims(tokenString, &identity.AccessClaims{}, func(token *jwt.Token) (any, error) {
			return signingKey, nil
		})
		require.NoError(t, err)
		assert.True(t, token.Valid)

		claims, ok := token.Claims.(*identity.AccessClaims)
		require.True(t, ok)
		assert.Equal(t, "user-123", claims.SubjectID())
		assert.Equal(t, "identity-core", claims.Issuer)
		assert.NotNil(t, claims.IssuedAt)
		assert.NotNil(t, claims.ExpiresAt)
		assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	})

	t.Run("rejects an empty subject", func(t *testing.T) {
		_, err := service.Generate("")
		assert.Error(t, err)
	})
}

func TestTokenServiceValidate(t *testing.T) {
	signingKey := []byte("test-signing-key")
	service := identity.NewTokenService(signingKey, time.Hour, "identity-core", nil)

	t.Run("round trips claims", func(t *testing.T) {
		tokenString, err := service.Generate("user-123")
		require.NoError(t, err)

		claims, err := service.Validate(tokenString)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.SubjectID())
	})

	t.Run("fails expired tokens with token expired", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		issuer := identity.NewTokenService(signingKey, time.Hour, "identity-core", nil).
			WithNow(func() time.Time { return past })

		tokenString, err := issuer.Generate("user-123")
		require.NoError(t, err)

		_, err = service.Validate(tokenString)
		assert.ErrorIs(t, err, identity.ErrTokenExpired)
	})

	t.Run("fails tokens signed with another key", func(t *testing.T) {
		other := identity.NewTokenService([]byte("other-key"), time.Hour, "identity-core", nil)
		tokenString, err := other.Generate("user-123")
		require.NoError(t, err)

		_, err = service.Validate(tokenString)
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, identity.TextCodeTokenMalformed, richErr.TextCode)
	})

	t.Run("fails tokens from another issuer", func(t *testing.T) {
		other := identity.NewTokenService(signingKey, time.Hour, "someone-else", nil)
		tokenString, err := other.Generate("user-123")
		require.NoError(t, err)

		_, err = service.Validate(tokenString)
		assert.Error(t, err)
	})

	t.Run("fails garbage input", func(t *testing.T) {
		_, err := service.Validate("not.a.token")
		assert.Error(t, err)
	})

	t.Run("fails unsigned algorithm none tokens", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "identity-core",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.Validate(tokenString)
		assert.Error(t, err)
	})
}
