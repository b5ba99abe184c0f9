package oidc

import (
	"errors"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	identity "github.com/goliatone/go-identity"
)

// IDClaims are the ID token claims the flow cares about.
type IDClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Nonce         string `json:"nonce"`
	jwt.RegisteredClaims
}

// Verifier validates provider ID tokens: signature against the provider's
// published key set, audience, issuer, expiry, and nonce binding.
type Verifier struct {
	clientID string
	issuers  map[string]struct{}
	keyFunc  jwt.Keyfunc
	jwks     *keyfunc.JWKS
	nowFn    func() time.Time
}

// NewVerifier builds a Verifier that fetches signing keys from the JWKS
// endpoint. Unknown key IDs trigger a rate-limited refresh, so provider key
// rotation does not require a restart.
func NewVerifier(clientID, jwksURL string, issuers []string) (*Verifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWK set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, err
	}

	v := NewVerifierWithKeyfunc(clientID, issuers, jwks.Keyfunc)
	v.jwks = jwks
	return v, nil
}

// NewVerifierWithKeyfunc builds a Verifier around an existing key function,
// mainly for tests and pre-shared keys.
func NewVerifierWithKeyfunc(clientID string, issuers []string, keyFunc jwt.Keyfunc) *Verifier {
	if len(issuers) == 0 {
		issuers = DefaultIssuers()
	}

	trusted := make(map[string]struct{}, len(issuers))
	for _, issuer := range issuers {
		trusted[issuer] = struct{}{}
	}

	return &Verifier{
		clientID: clientID,
		issuers:  trusted,
		keyFunc:  keyFunc,
		nowFn:    time.Now,
	}
}

// WithNow overrides the clock, mainly for tests.
func (v *Verifier) WithNow(nowFn func() time.Time) *Verifier {
	if nowFn != nil {
		v.nowFn = nowFn
	}
	return v
}

// Close stops the background key refresh, if one is running.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// Verify validates an ID token and its nonce binding.
func (v *Verifier) Verify(idToken, nonce string) (*IDClaims, error) {
	claims := &IDClaims{}

	token, err := jwt.ParseWithClaims(idToken, claims, v.keyFunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithTimeFunc(v.nowFn),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, identity.ErrTokenExpired
		}
		return nil, ErrInvalidIDToken.Clone().WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}

	if !token.Valid || claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidIDToken
	}

	if _, ok := v.issuers[claims.Issuer]; !ok {
		return nil, ErrIssuerMismatch
	}

	if nonce == "" || claims.Nonce != nonce {
		return nil, ErrNonceMismatch
	}

	return claims, nil
}
