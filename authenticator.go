package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// UserStore is the slice of the user store the authenticator needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
}

// LoginRequest carries the credentials and request metadata for a password
// login.
type LoginRequest struct {
	Identifier string
	Password   string
	IPAddress  string
}

// TokenPair is the result of a successful authentication: a short-lived
// signed access token and an opaque rotating refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

// Auther orchestrates password logins, token refresh, and logout over the
// token services.
type Auther struct {
	users   UserStore
	access  TokenService
	refresh *RefreshTokenManager
	sink    AuthEventSink
	ttl     time.Duration
	logger  Logger
}

// NewAuthenticator returns a new Auther.
func NewAuthenticator(users UserStore, access TokenService, refresh *RefreshTokenManager, opts Config) *Auther {
	return &Auther{
		users:   users,
		access:  access,
		refresh: refresh,
		sink:    noopAuthEventSink{},
		ttl:     opts.GetAccessTokenTTL(),
		logger:  defLogger{},
	}
}

func (a *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithAuthEventSink wires an audit sink. Events are advisory; a failing sink
// never fails the authentication it describes.
func (a *Auther) WithAuthEventSink(sink AuthEventSink) *Auther {
	a.sink = normalizeAuthEventSink(sink)
	return a
}

// Login verifies an identifier/password pair and issues a token pair. Unknown
// identifiers and wrong passwords both fail ErrInvalidCredentials; a user with
// an unverified email fails ErrAccountUnverified and a deactivated account
// fails ErrAccountInactive, both checked only after the password matched.
func (a *Auther) Login(ctx context.Context, req LoginRequest) (*TokenPair, *User, error) {
	user, err := a.users.GetByIdentifier(ctx, req.Identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if err := ComparePasswordAndHash(req.Password, user.PasswordHash); err != nil {
		a.emitAuthEvent(ctx, AuthEventLoginFailure, user.ID, req.IPAddress)
		return nil, nil, ErrInvalidCredentials
	}

	if user.Email != "" && !user.EmailVerified {
		return nil, nil, ErrAccountUnverified
	}

	if !user.Active {
		return nil, nil, ErrAccountInactive
	}

	pair, err := a.issuePair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	a.emitAuthEvent(ctx, AuthEventLogin, user.ID, req.IPAddress)

	return pair, user, nil
}

// Refresh redeems a refresh token, rotating it and minting a fresh access
// token. The presented token is invalid afterwards whether or not the user
// still resolves.
func (a *Auther) Refresh(ctx context.Context, rawToken, ipAddress string) (*TokenPair, error) {
	rotation, err := a.refresh.Redeem(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetByID(ctx, rotation.UserID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnknownSubject
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve refresh subject")
	}

	if !user.Active {
		return nil, ErrAccountInactive
	}

	accessToken, err := a.access.Generate(user.ID.String())
	if err != nil {
		return nil, err
	}

	a.emitAuthEvent(ctx, AuthEventTokenRefresh, user.ID, ipAddress)

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rotation.RawToken,
		TokenType:    "bearer",
		ExpiresIn:    a.ttl,
	}, nil
}

// Logout revokes the presented refresh token. The audit event is recorded
// only once the revocation actually took effect.
func (a *Auther) Logout(ctx context.Context, rawToken, ipAddress string) error {
	record, lookupErr := a.refresh.tokens.GetByHash(ctx, HashToken(rawToken))

	if err := a.refresh.Revoke(ctx, rawToken); err != nil {
		return err
	}

	if lookupErr == nil {
		a.emitAuthEvent(ctx, AuthEventLogout, record.UserID, ipAddress)
	}

	return nil
}

// CurrentUser resolves the user behind a signed access token. Tokens whose
// subject no longer exists fail ErrUnknownSubject; deactivated accounts fail
// ErrAccountInactive even when the token itself is still valid.
func (a *Auther) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	claims, err := a.access.Validate(accessToken)
	if err != nil {
		return nil, err
	}

	subjectID, err := uuid.Parse(claims.SubjectID())
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := a.users.GetByID(ctx, subjectID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnknownSubject
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve token subject")
	}

	if !user.Active {
		return nil, ErrAccountInactive
	}

	return user, nil
}

func (a *Auther) issuePair(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	accessToken, err := a.access.Generate(userID.String())
	if err != nil {
		return nil, err
	}

	rawRefresh, _, err := a.refresh.Issue(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		TokenType:    "bearer",
		ExpiresIn:    a.ttl,
	}, nil
}

func (a *Auther) emitAuthEvent(ctx context.Context, eventType AuthEventType, userID uuid.UUID, ipAddress string) {
	event := AuthEventRecord{
		EventType:  eventType,
		UserID:     userID,
		IPAddress:  ipAddress,
		OccurredAt: time.Now(),
	}

	if service, ok := ServiceFromContext(ctx); ok && service != nil {
		event.ServiceID = &service.ID
	}

	if err := a.sink.Record(ctx, event); err != nil {
		a.logger.Warn("failed to record %s event: %v", eventType, err)
	}
}
