package oidc_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	identity "github.com/goliatone/go-identity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const testClientID = "test-client-id"

type passthroughTxm struct{}

func (passthroughTxm) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

type memUserStore struct {
	users map[uuid.UUID]*identity.User
}

func newMemUserStore(users ...*identity.User) *memUserStore {
	s := &memUserStore{users: map[uuid.UUID]*identity.User{}}
	for _, user := range users {
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		clone := *user
		s.users[user.ID] = &clone
	}
	return s
}

func (s *memUserStore) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*identity.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	clone := *user
	return &clone, nil
}

func (s *memUserStore) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*identity.User, error) {
	for _, user := range s.users {
		if user.Email == identifier {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memUserStore) RegisterTx(ctx context.Context, tx bun.IDB, user *identity.User) (*identity.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	clone := *user
	s.users[user.ID] = &clone
	return user, nil
}

func (s *memUserStore) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	user, ok := s.users[id]
	if !ok {
		return repository.NewRecordNotFound()
	}
	user.EmailVerified = true
	return nil
}

type memAccountStore struct {
	accounts []*identity.OAuthAccount
}

func newMemAccountStore(accounts ...*identity.OAuthAccount) *memAccountStore {
	return &memAccountStore{accounts: accounts}
}

func (s *memAccountStore) GetByProviderSubjectTx(ctx context.Context, tx bun.IDB, provider, subject string) (*identity.OAuthAccount, error) {
	for _, account := range s.accounts {
		if account.Provider == provider && account.Subject == subject {
			clone := *account
			return &clone, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memAccountStore) CreateTx(ctx context.Context, tx bun.IDB, record *identity.OAuthAccount, criteria ...repository.InsertCriteria) (*identity.OAuthAccount, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	clone := *record
	s.accounts = append(s.accounts, &clone)
	return record, nil
}

type memRefreshTokenStore struct {
	records map[uuid.UUID]*identity.RefreshToken
}

func newMemRefreshTokenStore() *memRefreshTokenStore {
	return &memRefreshTokenStore{records: map[uuid.UUID]*identity.RefreshToken{}}
}

func (s *memRefreshTokenStore) Create(ctx context.Context, record *identity.RefreshToken, criteria ...repository.InsertCriteria) (*identity.RefreshToken, error) {
	return s.CreateTx(ctx, bun.Tx{}, record, criteria...)
}

func (s *memRefreshTokenStore) CreateTx(ctx context.Context, tx bun.IDB, record *identity.RefreshToken, criteria ...repository.InsertCriteria) (*identity.RefreshToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	clone := *record
	s.records[record.ID] = &clone
	return record, nil
}

func (s *memRefreshTokenStore) GetByHash(ctx context.Context, hash string) (*identity.RefreshToken, error) {
	return s.GetByHashTx(ctx, bun.Tx{}, hash)
}

func (s *memRefreshTokenStore) GetByHashTx(ctx context.Context, tx bun.IDB, hash string) (*identity.RefreshToken, error) {
	for _, record := range s.records {
		if record.TokenHash == hash {
			clone := *record
			return &clone, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memRefreshTokenStore) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.RevokeTx(ctx, bun.Tx{}, id)
}

func (s *memRefreshTokenStore) RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	record, ok := s.records[id]
	if !ok || record.Revoked {
		return false, nil
	}
	record.Revoked = true
	return true, nil
}

// signingKeypair holds an RSA key for minting provider-style ID tokens.
type signingKeypair struct {
	key *rsa.PrivateKey
	kid string
}

func newSigningKeypair(t *testing.T) *signingKeypair {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return &signingKeypair{key: key, kid: "test-kid"}
}

func (k *signingKeypair) keyFunc(token *jwt.Token) (any, error) {
	return &k.key.PublicKey, nil
}

type idTokenOverrides struct {
	issuer        string
	audience      string
	subject       string
	email         string
	emailVerified bool
	nonce         string
	expiresAt     time.Time
}

func (k *signingKeypair) signIDToken(t *testing.T, o idTokenOverrides) string {
	t.Helper()

	if o.issuer == "" {
		o.issuer = "https://accounts.google.com"
	}
	if o.audience == "" {
		o.audience = testClientID
	}
	if o.subject == "" {
		o.subject = "google-subject-1"
	}
	if o.expiresAt.IsZero() {
		o.expiresAt = time.Now().Add(time.Hour)
	}

	claims := jwt.MapClaims{
		"iss":            o.issuer,
		"aud":            o.audience,
		"sub":            o.subject,
		"email":          o.email,
		"email_verified": o.emailVerified,
		"nonce":          o.nonce,
		"iat":            time.Now().Unix(),
		"exp":            o.expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = k.kid

	signed, err := token.SignedString(k.key)
	require.NoError(t, err)
	return signed
}
