package identity

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TransactionManager runs a function inside one transactional unit of work.
type TransactionManager interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

// RefreshTokenStore is the slice of the store the refresh manager needs.
type RefreshTokenStore interface {
	Create(ctx context.Context, record *RefreshToken, criteria ...repository.InsertCriteria) (*RefreshToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *RefreshToken, criteria ...repository.InsertCriteria) (*RefreshToken, error)
	GetByHash(ctx context.Context, hash string) (*RefreshToken, error)
	GetByHashTx(ctx context.Context, tx bun.IDB, hash string) (*RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID) (bool, error)
	RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error)
}

// TokenRotation is the outcome of a successful redemption: the presented
// token is revoked and a replacement issued for the same user.
type TokenRotation struct {
	UserID   uuid.UUID
	RawToken string
	Record   *RefreshToken
}

// RefreshTokenManager issues opaque refresh tokens, enforces
// single-active-use-then-rotate semantics, and supports revocation.
type RefreshTokenManager struct {
	txm    TransactionManager
	tokens RefreshTokenStore
	ttl    time.Duration
	logger Logger
	nowFn  func() time.Time
}

// NewRefreshTokenManager returns a new RefreshTokenManager.
func NewRefreshTokenManager(txm TransactionManager, tokens RefreshTokenStore, opts Config) *RefreshTokenManager {
	return &RefreshTokenManager{
		txm:    txm,
		tokens: tokens,
		ttl:    opts.GetRefreshTokenTTL(),
		logger: defLogger{},
		nowFn:  time.Now,
	}
}

func (m *RefreshTokenManager) WithLogger(logger Logger) *RefreshTokenManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithNow overrides the clock, mainly for tests.
func (m *RefreshTokenManager) WithNow(nowFn func() time.Time) *RefreshTokenManager {
	if nowFn != nil {
		m.nowFn = nowFn
	}
	return m
}

// Issue generates a new refresh token. The raw value is returned exactly
// once; only its hash persists.
func (m *RefreshTokenManager) Issue(ctx context.Context, userID uuid.UUID) (string, *RefreshToken, error) {
	raw, err := GenerateRefreshToken()
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
	}

	now := m.nowFn()
	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: HashToken(raw),
		CreatedAt: &now,
		ExpiresAt: now.Add(m.ttl),
	}

	created, err := m.tokens.Create(ctx, record)
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store refresh token")
	}

	return raw, created, nil
}

// IssueTx is Issue inside an existing transaction.
func (m *RefreshTokenManager) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (string, *RefreshToken, error) {
	raw, err := GenerateRefreshToken()
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
	}

	now := m.nowFn()
	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: HashToken(raw),
		CreatedAt: &now,
		ExpiresAt: now.Add(m.ttl),
	}

	created, err := m.tokens.CreateTx(ctx, tx, record)
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store refresh token")
	}

	return raw, created, nil
}

// Redeem consumes a refresh token and rotates it: the presented token is
// revoked and a replacement issued for the same user, atomically. Reuse of a
// rotated value fails with ErrTokenRevoked; an expired token is proactively
// revoked and fails with ErrTokenExpired.
func (m *RefreshTokenManager) Redeem(ctx context.Context, raw string) (*TokenRotation, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	hash := HashToken(raw)
	rotation := &TokenRotation{}

	err := m.txm.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := m.tokens.GetByHashTx(ctx, tx, hash)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
		}

		if record.Revoked {
			return ErrTokenRevoked
		}

		if record.Expired(m.nowFn()) {
			// expired tokens are closed out, not left dangling
			if _, err := m.tokens.RevokeTx(ctx, tx, record.ID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke expired refresh token")
			}
			return ErrTokenExpired
		}

		ok, err := m.tokens.RevokeTx(ctx, tx, record.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh token")
		}
		if !ok {
			// a concurrent redemption won the guarded update
			return ErrTokenRevoked
		}

		replacement, replacementRecord, err := m.IssueTx(ctx, tx, record.UserID)
		if err != nil {
			return err
		}

		rotation.UserID = record.UserID
		rotation.RawToken = replacement
		rotation.Record = replacementRecord
		return nil
	})

	if err != nil {
		return nil, err
	}

	return rotation, nil
}

// Revoke invalidates a refresh token, typically on logout. Unknown values
// fail ErrTokenInvalid; values already revoked fail ErrTokenRevoked.
func (m *RefreshTokenManager) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return ErrTokenInvalid
	}

	record, err := m.tokens.GetByHash(ctx, HashToken(raw))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrTokenInvalid
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
	}

	if record.Revoked {
		return ErrTokenRevoked
	}

	ok, err := m.tokens.Revoke(ctx, record.ID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh token")
	}
	if !ok {
		return ErrTokenRevoked
	}

	return nil
}
