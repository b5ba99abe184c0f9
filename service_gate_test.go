package identity_test

import (
	"context"
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceKeyGateAuthenticate(t *testing.T) {
	service := &identity.Service{ID: uuid.New(), Name: "storefront", Active: true}
	rawKey := "svc-key-raw-value"

	newGate := func(keyActive, serviceActive bool) (*identity.ServiceKeyGate, *memServiceKeyStore) {
		svc := *service
		svc.Active = serviceActive
		keys := newMemServiceKeyStore(&identity.ServiceAPIKey{
			ServiceID: service.ID,
			KeyHash:   identity.HashToken(rawKey),
			Active:    keyActive,
		})
		return identity.NewServiceKeyGate(keys, newMemServiceResolver(&svc)), keys
	}

	t.Run("resolves the tenant for a valid key", func(t *testing.T) {
		gate, keys := newGate(true, true)

		resolved, err := gate.Authenticate(context.Background(), rawKey)
		require.NoError(t, err)
		assert.Equal(t, service.ID, resolved.ID)
		assert.Equal(t, "storefront", resolved.Name)
		assert.Len(t, keys.touched, 1)
	})

	t.Run("rejects a missing key", func(t *testing.T) {
		gate, _ := newGate(true, true)

		_, err := gate.Authenticate(context.Background(), "")
		assert.ErrorIs(t, err, identity.ErrKeyRequired)
	})

	t.Run("rejects an unknown key", func(t *testing.T) {
		gate, _ := newGate(true, true)

		_, err := gate.Authenticate(context.Background(), "some-other-key")
		assert.ErrorIs(t, err, identity.ErrInvalidKey)
	})

	t.Run("rejects a deactivated key", func(t *testing.T) {
		gate, keys := newGate(false, true)

		_, err := gate.Authenticate(context.Background(), rawKey)
		assert.ErrorIs(t, err, identity.ErrInvalidKey)
		assert.Empty(t, keys.touched)
	})

	t.Run("rejects a key for a deactivated tenant", func(t *testing.T) {
		gate, _ := newGate(true, false)

		_, err := gate.Authenticate(context.Background(), rawKey)
		assert.ErrorIs(t, err, identity.ErrInvalidKey)
	})
}

func TestServiceKeyGateExemptPaths(t *testing.T) {
	gate := identity.NewServiceKeyGate(newMemServiceKeyStore(), newMemServiceResolver())

	t.Run("defaults cover browser facing surfaces", func(t *testing.T) {
		assert.True(t, gate.Exempt("/verify-email"))
		assert.True(t, gate.Exempt("/password/reset"))
		assert.True(t, gate.Exempt("/admin"))
		assert.True(t, gate.Exempt("/admin/users"))
		assert.True(t, gate.Exempt("/static/app.css"))
	})

	t.Run("everything else requires a key", func(t *testing.T) {
		assert.False(t, gate.Exempt("/auth/login"))
		assert.False(t, gate.Exempt("/verify-email/extra"))
		assert.False(t, gate.Exempt("/"))
	})

	t.Run("exemptions are replaceable", func(t *testing.T) {
		gate := identity.NewServiceKeyGate(newMemServiceKeyStore(), newMemServiceResolver()).
			WithExemptPaths(identity.NewExemptPaths([]string{"/healthz"}, nil))

		assert.True(t, gate.Exempt("/healthz"))
		assert.False(t, gate.Exempt("/admin"))
	})
}
