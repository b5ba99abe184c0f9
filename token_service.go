package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// AccessClaims are the claims carried by an access token. Tokens are
// stateless: the subject is re-resolved against the store only at the
// refresh/reissue boundary.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// SubjectID returns the token subject.
func (c *AccessClaims) SubjectID() string {
	return c.Subject
}

// TokenServiceImpl implements the TokenService interface using HS256 and a
// shared signing key.
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	logger     Logger
	nowFn      func() time.Time
}

// NewTokenService creates a new TokenService instance.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	if ttl == 0 {
		ttl = 60 * time.Minute
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		logger:     logger,
		nowFn:      time.Now,
	}
}

// WithNow overrides the clock, mainly for tests.
func (ts *TokenServiceImpl) WithNow(nowFn func() time.Time) *TokenServiceImpl {
	if nowFn != nil {
		ts.nowFn = nowFn
	}
	return ts
}

// Generate creates a signed access token for the given subject.
func (ts *TokenServiceImpl) Generate(subjectID string) (string, error) {
	if subjectID == "" {
		return "", errors.New("subject must not be empty", errors.CategoryInternal)
	}

	now := ts.nowFn()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign access token")
	}

	return signed, nil
}

// Validate parses and validates a token string, returning its claims.
// Expired tokens fail with ErrTokenExpired; anything structurally or
// cryptographically wrong fails with ErrTokenMalformed.
func (ts *TokenServiceImpl) Validate(tokenString string) (*AccessClaims, error) {
	parserOptions := []jwt.ParserOption{jwt.WithTimeFunc(ts.nowFn)}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode claims")
		return nil, ErrTokenMalformed
	}

	if claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

var _ TokenService = (*TokenServiceImpl)(nil)
