package oidc

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStore is the slice of the user store the flow needs.
type UserStore interface {
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*identity.User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*identity.User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *identity.User) (*identity.User, error)
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

// AccountStore is the slice of the provider link store the flow needs.
type AccountStore interface {
	GetByProviderSubjectTx(ctx context.Context, tx bun.IDB, provider, subject string) (*identity.OAuthAccount, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *identity.OAuthAccount, criteria ...repository.InsertCriteria) (*identity.OAuthAccount, error)
}

// CallbackResult is the outcome of a completed login.
type CallbackResult struct {
	User      *identity.User
	Tokens    *identity.TokenPair
	IsNewUser bool
	Linked    bool
}

// Flow orchestrates the full provider login: redirect, callback, ID token
// verification, account resolution, and session issuance.
type Flow struct {
	provider *Provider
	states   *StateManager
	verifier *Verifier
	txm      identity.TransactionManager
	users    UserStore
	accounts AccountStore
	access   identity.TokenService
	refresh  *identity.RefreshTokenManager
	ttl      time.Duration
	sink     identity.AuthEventSink
	logger   identity.Logger
}

// NewFlow returns a new Flow.
func NewFlow(
	provider *Provider,
	states *StateManager,
	verifier *Verifier,
	txm identity.TransactionManager,
	users UserStore,
	accounts AccountStore,
	access identity.TokenService,
	refresh *identity.RefreshTokenManager,
	opts identity.Config,
) *Flow {
	return &Flow{
		provider: provider,
		states:   states,
		verifier: verifier,
		txm:      txm,
		users:    users,
		accounts: accounts,
		access:   access,
		refresh:  refresh,
		ttl:      opts.GetAccessTokenTTL(),
		sink:     identity.AuthEventSinkFunc(nil),
		logger:   nil,
	}
}

// WithAuthEventSink wires an audit sink for completed logins.
func (f *Flow) WithAuthEventSink(sink identity.AuthEventSink) *Flow {
	f.sink = sink
	return f
}

func (f *Flow) WithLogger(logger identity.Logger) *Flow {
	f.logger = logger
	return f
}

// Initiate mints a signed state and returns the provider redirect URL. The
// tenant resolved on the request, if any, travels inside the state so the
// callback can attribute the login.
func (f *Flow) Initiate(ctx context.Context) (string, error) {
	serviceID := ""
	if service, ok := identity.ServiceFromContext(ctx); ok && service != nil {
		serviceID = service.ID.String()
	}

	state, nonce, err := f.states.Issue(serviceID)
	if err != nil {
		return "", err
	}

	return f.provider.AuthCodeURL(state, nonce), nil
}

// CallbackRequest carries the provider redirect parameters plus request
// metadata. Error is the provider's error parameter, set when the user
// denied consent or the provider rejected the request.
type CallbackRequest struct {
	Code      string
	State     string
	Error     string
	IPAddress string
}

// Callback completes the login: it verifies the state, exchanges the code,
// validates the ID token against the state's nonce, resolves or provisions
// the account, and issues a token pair.
func (f *Flow) Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	if req.Error != "" {
		return nil, ErrProviderDenied.Clone().WithMetadata(map[string]any{
			"error": req.Error,
		})
	}

	stateClaims, err := f.states.Verify(req.State)
	if err != nil {
		return nil, err
	}

	token, err := f.provider.Exchange(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	idClaims, err := f.verifier.Verify(token.IDToken, stateClaims.Nonce)
	if err != nil {
		return nil, err
	}

	if !idClaims.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	result := &CallbackResult{}

	err = f.txm.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, isNew, linked, err := f.resolveUser(ctx, tx, idClaims)
		if err != nil {
			return err
		}

		result.User = user
		result.IsNewUser = isNew
		result.Linked = linked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.User.Active {
		return nil, identity.ErrAccountInactive
	}

	accessToken, err := f.access.Generate(result.User.ID.String())
	if err != nil {
		return nil, err
	}

	rawRefresh, _, err := f.refresh.Issue(ctx, result.User.ID)
	if err != nil {
		return nil, err
	}

	result.Tokens = &identity.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		TokenType:    "bearer",
		ExpiresIn:    f.ttl,
	}

	f.recordLogin(ctx, result.User.ID, stateClaims.ServiceID, req.IPAddress)

	return result, nil
}

// resolveUser maps a verified provider identity onto a local account: an
// existing link wins, then an email match links in place, then a fresh
// account is provisioned. Provider-managed accounts have no usable password.
func (f *Flow) resolveUser(ctx context.Context, tx bun.Tx, claims *IDClaims) (*identity.User, bool, bool, error) {
	account, err := f.accounts.GetByProviderSubjectTx(ctx, tx, f.provider.Name(), claims.Subject)
	if err == nil {
		user, err := f.users.GetByIDTx(ctx, tx, account.UserID)
		if err != nil {
			return nil, false, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve linked user")
		}
		return user, false, false, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, false, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up provider link")
	}

	user, err := f.users.GetByIdentifierTx(ctx, tx, claims.Email)
	if err == nil {
		if err := f.link(ctx, tx, user.ID, claims); err != nil {
			return nil, false, false, err
		}
		if !user.EmailVerified {
			// the provider vouched for the address
			if err := f.users.MarkEmailVerifiedTx(ctx, tx, user.ID); err != nil {
				return nil, false, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
			}
			user.EmailVerified = true
		}
		return user, false, true, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, false, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user by email")
	}

	created, err := f.users.RegisterTx(ctx, tx, &identity.User{
		Email:         claims.Email,
		EmailVerified: true,
		Active:        true,
	})
	if err != nil {
		return nil, false, false, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	if err := f.link(ctx, tx, created.ID, claims); err != nil {
		return nil, false, false, err
	}

	return created, true, true, nil
}

func (f *Flow) link(ctx context.Context, tx bun.Tx, userID uuid.UUID, claims *IDClaims) error {
	_, err := f.accounts.CreateTx(ctx, tx, &identity.OAuthAccount{
		ID:       uuid.New(),
		UserID:   userID,
		Provider: f.provider.Name(),
		Subject:  claims.Subject,
		Email:    claims.Email,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link provider account")
	}
	return nil
}

func (f *Flow) recordLogin(ctx context.Context, userID uuid.UUID, serviceID, ipAddress string) {
	if f.sink == nil {
		return
	}

	event := identity.AuthEventRecord{
		EventType:  identity.AuthEventOAuthLogin,
		UserID:     userID,
		IPAddress:  ipAddress,
		OccurredAt: time.Now(),
	}

	if parsed, err := uuid.Parse(serviceID); err == nil {
		event.ServiceID = &parsed
	}

	if err := f.sink.Record(ctx, event); err != nil && f.logger != nil {
		f.logger.Warn("auth event sink error during oauth login: %v", err)
	}
}
