package oidc

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
)

// DefaultStateTTL bounds how long a login redirect may sit unfinished.
const DefaultStateTTL = 10 * time.Minute

const nonceEntropy = 16

// StateClaims binds a one-time nonce and the originating tenant to a signed
// state value. The nonce must surface again inside the provider's ID token.
type StateClaims struct {
	Nonce     string `json:"nonce"`
	ServiceID string `json:"service_id,omitempty"`
	jwt.RegisteredClaims
}

// StateManager mints and verifies signed state values for the login redirect.
// State is self-contained: nothing is persisted between Issue and Verify.
type StateManager struct {
	signingKey []byte
	ttl        time.Duration
	nowFn      func() time.Time
}

// NewStateManager returns a new StateManager signing with the given key.
func NewStateManager(signingKey string, ttl time.Duration) *StateManager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateManager{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		nowFn:      time.Now,
	}
}

// WithNow overrides the clock, mainly for tests.
func (m *StateManager) WithNow(nowFn func() time.Time) *StateManager {
	if nowFn != nil {
		m.nowFn = nowFn
	}
	return m
}

// Issue mints a signed state carrying a fresh nonce and the tenant that
// started the flow. It returns the state and the nonce it carries.
func (m *StateManager) Issue(serviceID string) (string, string, error) {
	nonce, err := identity.GenerateToken(nonceEntropy)
	if err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate nonce")
	}

	now := m.nowFn()
	claims := StateClaims{
		Nonce:     nonce,
		ServiceID: serviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign state")
	}

	return state, nonce, nil
}

// Verify checks the state signature and expiry and returns its claims.
func (m *StateManager) Verify(state string) (*StateClaims, error) {
	claims := &StateClaims{}

	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidState
		}
		return m.signingKey, nil
	}, jwt.WithTimeFunc(m.nowFn))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrStateExpired
		}
		return nil, ErrInvalidState
	}

	if !token.Valid || claims.Nonce == "" {
		return nil, ErrInvalidState
	}

	return claims, nil
}
