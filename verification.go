package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationTokenStore is the slice of the store the verification manager
// needs.
type VerificationTokenStore interface {
	Create(ctx context.Context, record *VerificationToken, criteria ...repository.InsertCriteria) (*VerificationToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *VerificationToken, criteria ...repository.InsertCriteria) (*VerificationToken, error)
	GetByHashTx(ctx context.Context, tx bun.IDB, purpose TokenPurpose, hash string) (*VerificationToken, error)
	GetByUserAndHashTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, purpose TokenPurpose, hash string) (*VerificationToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, now time.Time) (bool, error)
}

// VerificationUserStore applies the effect of a consumed token to its user.
type VerificationUserStore interface {
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetPasswordHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

// TokenInput identifies a presented verification credential. Link values are
// looked up globally by hash; codes are scoped to a user so identical codes
// issued to different users cannot cross-redeem.
type TokenInput struct {
	Raw    string
	Method VerificationMethod
	UserID uuid.UUID
}

// VerificationTokenManager issues and consumes single-use expiring tokens
// for email verification and password reset. Both link and code values are
// hashed identically before storage.
type VerificationTokenManager struct {
	txm    TransactionManager
	tokens VerificationTokenStore
	users  VerificationUserStore
	verify time.Duration
	reset  time.Duration
	logger Logger
	nowFn  func() time.Time
}

// NewVerificationTokenManager returns a new VerificationTokenManager.
func NewVerificationTokenManager(txm TransactionManager, tokens VerificationTokenStore, users VerificationUserStore, opts Config) *VerificationTokenManager {
	return &VerificationTokenManager{
		txm:    txm,
		tokens: tokens,
		users:  users,
		verify: opts.GetEmailVerifyTTL(),
		reset:  opts.GetPasswordResetTTL(),
		logger: defLogger{},
		nowFn:  time.Now,
	}
}

func (m *VerificationTokenManager) WithLogger(logger Logger) *VerificationTokenManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithNow overrides the clock, mainly for tests.
func (m *VerificationTokenManager) WithNow(nowFn func() time.Time) *VerificationTokenManager {
	if nowFn != nil {
		m.nowFn = nowFn
	}
	return m
}

// Issue creates a token for the given user, purpose, and delivery method and
// returns the raw value exactly once.
func (m *VerificationTokenManager) Issue(ctx context.Context, userID uuid.UUID, purpose TokenPurpose, method VerificationMethod) (string, *VerificationToken, error) {
	var raw string
	var err error

	switch method {
	case VerificationMethodCode:
		raw, err = GenerateVerificationCode()
	default:
		raw, err = GenerateToken(VerificationTokenEntropy)
	}
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification token")
	}

	now := m.nowFn()
	record := &VerificationToken{
		ID:        uuid.New(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: HashToken(raw),
		CreatedAt: &now,
		ExpiresAt: now.Add(m.ttlFor(purpose)),
	}

	created, err := m.tokens.Create(ctx, record)
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification token")
	}

	return raw, created, nil
}

// ConsumeEmailVerification redeems an email verification token and marks the
// owning user's email verified, as one atomic transition.
func (m *VerificationTokenManager) ConsumeEmailVerification(ctx context.Context, input TokenInput) (uuid.UUID, error) {
	return m.consume(ctx, PurposeEmailVerify, input, func(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
		return m.users.MarkEmailVerifiedTx(ctx, tx, userID)
	})
}

// ConsumePasswordReset redeems a password reset token and replaces the
// owning user's password, as one atomic transition. The new password must
// satisfy the acceptance policy.
func (m *VerificationTokenManager) ConsumePasswordReset(ctx context.Context, input TokenInput, newPassword string) (uuid.UUID, error) {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return uuid.Nil, err
	}

	return m.consume(ctx, PurposePasswordReset, input, func(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
		return m.users.SetPasswordHashTx(ctx, tx, userID, hash)
	})
}

func (m *VerificationTokenManager) consume(ctx context.Context, purpose TokenPurpose, input TokenInput, effect func(ctx context.Context, tx bun.IDB, userID uuid.UUID) error) (uuid.UUID, error) {
	if input.Raw == "" {
		return uuid.Nil, ErrTokenInvalid
	}

	hash := HashToken(input.Raw)
	var userID uuid.UUID

	err := m.txm.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var record *VerificationToken
		var err error

		switch input.Method {
		case VerificationMethodCode:
			if input.UserID == uuid.Nil {
				return ErrTokenInvalid
			}
			record, err = m.tokens.GetByUserAndHashTx(ctx, tx, input.UserID, purpose, hash)
		default:
			record, err = m.tokens.GetByHashTx(ctx, tx, purpose, hash)
		}

		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification token")
		}

		if record.Used() {
			return ErrTokenAlreadyUsed
		}

		now := m.nowFn()
		if record.Expired(now) {
			return ErrTokenExpired
		}

		ok, err := m.tokens.ConsumeTx(ctx, tx, record.ID, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
		}
		if !ok {
			// a concurrent consumption won the guarded update
			return ErrTokenAlreadyUsed
		}

		if err := effect(ctx, tx, record.UserID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply verification effect")
		}

		userID = record.UserID
		return nil
	})

	if err != nil {
		return uuid.Nil, err
	}

	return userID, nil
}

func (m *VerificationTokenManager) ttlFor(purpose TokenPurpose) time.Duration {
	if purpose == PurposePasswordReset {
		return m.reset
	}
	return m.verify
}
