package oidc_test

import (
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierVerify(t *testing.T) {
	keypair := newSigningKeypair(t)
	verifier := oidc.NewVerifierWithKeyfunc(testClientID, nil, keypair.keyFunc)

	t.Run("accepts a well formed token", func(t *testing.T) {
		idToken := keypair.signIDToken(t, idTokenOverrides{
			email:         "pepe@example.com",
			emailVerified: true,
			nonce:         "nonce-1",
		})

		claims, err := verifier.Verify(idToken, "nonce-1")
		require.NoError(t, err)
		assert.Equal(t, "google-subject-1", claims.Subject)
		assert.Equal(t, "pepe@example.com", claims.Email)
		assert.True(t, claims.EmailVerified)
	})

	t.Run("accepts the bare issuer form", func(t *testing.T) {
		idToken := keypair.signIDToken(t, idTokenOverrides{
			issuer:        "accounts.google.com",
			email:         "pepe@example.com",
			emailVerified: true,
			nonce:         "nonce-1",
		})

		_, err := verifier.Verify(idToken, "nonce-1")
		assert.NoError(t, err)
	})

	t.Run("rejects a nonce mismatch", func(t *testing.T) {
		idToken := keypair.signIDToken(t, idTokenOverrides{
			email: "pepe@example.com",
			nonce: "nonce-1",
		})

		_, err := verifier.Verify(idToken, "nonce-2")
		assert.ErrorIs(t, err, oidc.ErrNonceMismatch)
	})

	t.Run("rejects a token without an email claim", func(t *testing.T) {
		idToken := keypair.signIDToken(t, idTokenOverrides{
			email:         "",
			emailVerified: true,
			nonce:         "nonce-1",
		})

		_, err := verifier.Verify(idToken, "nonce-1")
		assert.ErrorIs(t, err, oidc.ErrInvalidIDToken)
	})

	t.Run("rejects an untrusted issuer", func(t *testing.T) {
		idToken := keypair.signIDToken(t, idTokenOverrides{
			issuer: "https://evil.example.com",
			email:  "pepe@example.com",
			nonce:  "nonce-1",
		})

		_, err := verifier.Verify(idToken, "nonce-1")
		assert.ErrorIs(t, err, oidc.ErrIssuerMismatch)
	})

	t.Run("rejects a wrong audience", func(t *testing.T) {
		idToken := keypair.signIDToken(t, idTokenOverrides{
			audience: "another-client",
			nonce:    "nonce-1",
		})

		_, err := verifier.Verify(idToken, "nonce-1")
		assert.Error(t, err)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		idToken := keypair.signIDToken(t, idTokenOverrides{
			nonce:     "nonce-1",
			expiresAt: time.Now().Add(-time.Minute),
		})

		_, err := verifier.Verify(idToken, "nonce-1")
		assert.ErrorIs(t, err, identity.ErrTokenExpired)
	})

	t.Run("rejects a token signed with another key", func(t *testing.T) {
		other := newSigningKeypair(t)
		idToken := other.signIDToken(t, idTokenOverrides{nonce: "nonce-1"})

		_, err := verifier.Verify(idToken, "nonce-1")
		assert.Error(t, err)
	})

	t.Run("rejects HS256 tokens signed with key material", func(t *testing.T) {
		// an attacker must not be able to downgrade to a symmetric scheme
		state := oidc.NewStateManager("any-key", time.Minute)
		hsToken, _, err := state.Issue("")
		require.NoError(t, err)

		_, err = verifier.Verify(hsToken, "nonce-1")
		assert.Error(t, err)
	})
}
