package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories plus a transactional unit of
// work. Flows that combine a guarded transition with its effect run both
// inside RunInTx.
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error

	Users() Users
	RefreshTokens() RefreshTokens
	VerificationTokens() VerificationTokens
	Services() Services
	ServiceAPIKeys() ServiceAPIKeys
	OAuthAccounts() OAuthAccounts
	AuthEvents() AuthEvents
}

type mngr struct {
	db                 *bun.DB
	users              Users
	refreshTokens      RefreshTokens
	verificationTokens VerificationTokens
	services           Services
	serviceAPIKeys     ServiceAPIKeys
	oauthAccounts      OAuthAccounts
	authEvents         AuthEvents
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:                 db,
		users:              NewUsersRepository(db),
		refreshTokens:      NewRefreshTokensRepository(db),
		verificationTokens: NewVerificationTokensRepository(db),
		services:           NewServicesRepository(db),
		serviceAPIKeys:     NewServiceAPIKeysRepository(db),
		oauthAccounts:      NewOAuthAccountsRepository(db),
		authEvents:         NewAuthEventsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}
	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}
	if m.verificationTokens == nil {
		return errors.New("repository verificationTokens should be initialized")
	}
	if m.services == nil {
		return errors.New("repository services should be initialized")
	}
	if m.serviceAPIKeys == nil {
		return errors.New("repository serviceAPIKeys should be initialized")
	}
	if m.oauthAccounts == nil {
		return errors.New("repository oauthAccounts should be initialized")
	}
	if m.authEvents == nil {
		return errors.New("repository authEvents should be initialized")
	}
	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users { return m.users }

func (m mngr) RefreshTokens() RefreshTokens { return m.refreshTokens }

func (m mngr) VerificationTokens() VerificationTokens { return m.verificationTokens }

func (m mngr) Services() Services { return m.services }

func (m mngr) ServiceAPIKeys() ServiceAPIKeys { return m.serviceAPIKeys }

func (m mngr) OAuthAccounts() OAuthAccounts { return m.oauthAccounts }

func (m mngr) AuthEvents() AuthEvents { return m.authEvents }
