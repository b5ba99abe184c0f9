package identity

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Services persists client tenants. GetByID is uuid-typed, so the generic
// string-keyed repository surface is not part of the contract.
type Services interface {
	Create(ctx context.Context, record *Service, criteria ...repository.InsertCriteria) (*Service, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Service, criteria ...repository.InsertCriteria) (*Service, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Service, error)
	GetByName(ctx context.Context, name string) (*Service, error)
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

type services struct {
	repository.Repository[*Service]
	db *bun.DB
}

var _ Services = (*services)(nil)

func NewServicesRepository(db *bun.DB) Services {
	repo := repository.NewRepository[*Service](db, repository.ModelHandlers[*Service]{
		NewRecord: func() *Service { return &Service{} },
		GetID: func(s *Service) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Service, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string { return "name" },
	})

	return &services{Repository: repo, db: db}
}

func (r *services) GetByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	record := &Service{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
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

func (r *services) GetByName(ctx context.Context, name string) (*Service, error) {
	record := &Service{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
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

// DeleteCascade removes the tenant, its API keys, and clears the tenant tag
// on audit events in one transaction.
func (r *services) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*ServiceAPIKey)(nil)).
			Where("service_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*AuthEvent)(nil)).
			Set("service_id = NULL").
			Where("service_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewDelete().Model((*Service)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
}

// ServiceAPIKeys persists hashed API keys for client tenants.
type ServiceAPIKeys interface {
	repository.Repository[*ServiceAPIKey]

	GetByHash(ctx context.Context, hash string) (*ServiceAPIKey, error)
	Touch(ctx context.Context, id uuid.UUID, now time.Time) error
}

type serviceAPIKeys struct {
	repository.Repository[*ServiceAPIKey]
	db *bun.DB
}

var _ ServiceAPIKeys = (*serviceAPIKeys)(nil)

func NewServiceAPIKeysRepository(db *bun.DB) ServiceAPIKeys {
	repo := repository.NewRepository[*ServiceAPIKey](db, repository.ModelHandlers[*ServiceAPIKey]{
		NewRecord: func() *ServiceAPIKey { return &ServiceAPIKey{} },
		GetID: func(k *ServiceAPIKey) uuid.UUID {
			if k == nil {
				return uuid.Nil
			}
			return k.ID
		},
		SetID: func(k *ServiceAPIKey, id uuid.UUID) {
			if k != nil {
				k.ID = id
			}
		},
		GetIdentifier: func() string { return "key_hash" },
	})

	return &serviceAPIKeys{Repository: repo, db: db}
}

func (r *serviceAPIKeys) GetByHash(ctx context.Context, hash string) (*ServiceAPIKey, error) {
	record := &ServiceAPIKey{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.key_hash = ?", hash).
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

func (r *serviceAPIKeys) Touch(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*ServiceAPIKey)(nil)).
		Set("last_used_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// OAuthAccounts persists provider identity links.
type OAuthAccounts interface {
	repository.Repository[*OAuthAccount]

	GetByProviderSubject(ctx context.Context, provider, subject string) (*OAuthAccount, error)
	GetByProviderSubjectTx(ctx context.Context, tx bun.IDB, provider, subject string) (*OAuthAccount, error)
}

type oauthAccounts struct {
	repository.Repository[*OAuthAccount]
	db *bun.DB
}

var _ OAuthAccounts = (*oauthAccounts)(nil)

func NewOAuthAccountsRepository(db *bun.DB) OAuthAccounts {
	repo := repository.NewRepository[*OAuthAccount](db, repository.ModelHandlers[*OAuthAccount]{
		NewRecord: func() *OAuthAccount { return &OAuthAccount{} },
		GetID: func(a *OAuthAccount) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *OAuthAccount, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string { return "subject" },
	})

	return &oauthAccounts{Repository: repo, db: db}
}

func (r *oauthAccounts) GetByProviderSubject(ctx context.Context, provider, subject string) (*OAuthAccount, error) {
	return r.GetByProviderSubjectTx(ctx, r.db, provider, subject)
}

func (r *oauthAccounts) GetByProviderSubjectTx(ctx context.Context, tx bun.IDB, provider, subject string) (*OAuthAccount, error) {
	record := &OAuthAccount{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.provider = ?", provider).
		Where("?TableAlias.subject = ?", subject).
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

// AuthEvents persists the append-only audit trail. There is deliberately no
// update or single-row delete surface.
type AuthEvents interface {
	Create(ctx context.Context, event *AuthEvent) (*AuthEvent, error)
	CreateTx(ctx context.Context, tx bun.IDB, event *AuthEvent) (*AuthEvent, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*AuthEvent, error)
}

type authEvents struct {
	db *bun.DB
}

var _ AuthEvents = (*authEvents)(nil)

func NewAuthEventsRepository(db *bun.DB) AuthEvents {
	return &authEvents{db: db}
}

func (r *authEvents) Create(ctx context.Context, event *AuthEvent) (*AuthEvent, error) {
	return r.CreateTx(ctx, r.db, event)
}

func (r *authEvents) CreateTx(ctx context.Context, tx bun.IDB, event *AuthEvent) (*AuthEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
		return nil, err
	}
	return event, nil
}

func (r *authEvents) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*AuthEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []*AuthEvent
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
