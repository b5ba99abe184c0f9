package identity

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokens persists refresh token records. Revocation is a guarded
// transition: RevokeTx only flips rows that are still unrevoked, so two
// concurrent redemptions cannot both win.
type RefreshTokens interface {
	repository.Repository[*RefreshToken]

	GetByHash(ctx context.Context, hash string) (*RefreshToken, error)
	GetByHashTx(ctx context.Context, tx bun.IDB, hash string) (*RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID) (bool, error)
	RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error)
	RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error)
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string { return "token_hash" },
	})

	return &refreshTokens{Repository: repo, db: db}
}

func (r *refreshTokens) GetByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	return r.GetByHashTx(ctx, r.db, hash)
}

func (r *refreshTokens) GetByHashTx(ctx context.Context, tx bun.IDB, hash string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", hash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}
	return record, nil
}

func (r *refreshTokens) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.RevokeTx(ctx, r.db, id)
}

func (r *refreshTokens) RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked = TRUE").
		Where("id = ?", id).
		Where("revoked = FALSE").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// RevokeAllForUserTx closes every live session for a user, e.g. after a
// password reset.
func (r *refreshTokens) RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked = TRUE").
		Where("user_id = ?", userID).
		Where("revoked = FALSE").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// VerificationTokens persists single-use tokens for email verification and
// password reset. ConsumeTx is the single-use gate: it only marks rows whose
// used_at is still NULL.
type VerificationTokens interface {
	repository.Repository[*VerificationToken]

	GetByHash(ctx context.Context, purpose TokenPurpose, hash string) (*VerificationToken, error)
	GetByHashTx(ctx context.Context, tx bun.IDB, purpose TokenPurpose, hash string) (*VerificationToken, error)
	GetByUserAndHashTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, purpose TokenPurpose, hash string) (*VerificationToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, now time.Time) (bool, error)
}

type verificationTokens struct {
	repository.Repository[*VerificationToken]
	db *bun.DB
}

var _ VerificationTokens = (*verificationTokens)(nil)

func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	repo := repository.NewRepository[*VerificationToken](db, repository.ModelHandlers[*VerificationToken]{
		NewRecord: func() *VerificationToken { return &VerificationToken{} },
		GetID: func(t *VerificationToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *VerificationToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string { return "token_hash" },
	})

	return &verificationTokens{Repository: repo, db: db}
}

func (r *verificationTokens) GetByHash(ctx context.Context, purpose TokenPurpose, hash string) (*VerificationToken, error) {
	return r.GetByHashTx(ctx, r.db, purpose, hash)
}

func (r *verificationTokens) GetByHashTx(ctx context.Context, tx bun.IDB, purpose TokenPurpose, hash string) (*VerificationToken, error) {
	record := &VerificationToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.purpose = ?", purpose).
		Where("?TableAlias.token_hash = ?", hash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}
	return record, nil
}

func (r *verificationTokens) GetByUserAndHashTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, purpose TokenPurpose, hash string) (*VerificationToken, error) {
	record := &VerificationToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.purpose = ?", purpose).
		Where("?TableAlias.token_hash = ?", hash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}
	return record, nil
}

func (r *verificationTokens) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, now time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*VerificationToken)(nil)).
		Set("used_at = ?", now).
		Where("id = ?", id).
		Where("used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}
