package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	IPAddress  string `json:"-"`
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User    *User
	Success bool
}

// RegisterUserHandler creates an account and kicks off email verification.
type RegisterUserHandler struct {
	repo         RepositoryManager
	verification *VerificationTokenManager
	mailer       *TokenMailer
	sink         AuthEventSink
	logger       Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, verification *VerificationTokenManager, mailer *TokenMailer) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:         repo,
		verification: verification,
		mailer:       mailer,
		sink:         noopAuthEventSink{},
		logger:       defLogger{},
	}
}

// WithAuthEventSink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithAuthEventSink(sink AuthEventSink) *RegisterUserHandler {
	h.sink = normalizeAuthEventSink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Email == "" && event.Phone == "" {
		return goerrors.New("either email or phone is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, identifier := range []string{event.Email, event.Phone} {
			if identifier == "" {
				continue
			}
			if _, err := h.repo.Users().GetByIdentifierTx(ctx, tx, identifier); err == nil {
				return ErrDuplicateIdentifier
			} else if !repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing identifier")
			}
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Email = event.Email
		user.Phone = event.Phone
		user.PasswordHash = hash
		user.Active = true

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if user.Email != "" {
		if err := h.sendVerification(ctx, user); err != nil {
			// the account exists; verification can be re-requested later
			h.logger.Warn("failed to send verification email: %v", err)
		}
	}

	h.recordActivity(ctx, user, event.IPAddress)

	resp.User = user
	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterUserHandler) sendVerification(ctx context.Context, user *User) error {
	method := verificationMethodFromContext(ctx)

	raw, _, err := h.verification.Issue(ctx, user.ID, PurposeEmailVerify, method)
	if err != nil {
		return err
	}

	return h.mailer.SendEmailVerification(ctx, user.Email, method, raw)
}

func (h *RegisterUserHandler) recordActivity(ctx context.Context, user *User, ipAddress string) {
	event := AuthEventRecord{
		EventType:  AuthEventRegister,
		UserID:     user.ID,
		IPAddress:  ipAddress,
		OccurredAt: time.Now(),
	}

	if service, ok := ServiceFromContext(ctx); ok && service != nil {
		event.ServiceID = &service.ID
	}

	if err := normalizeAuthEventSink(h.sink).Record(ctx, event); err != nil {
		h.logger.Warn("auth event sink error during registration: %v", err)
	}
}

// verificationMethodFromContext picks the tenant's configured delivery method,
// falling back to link when no tenant was resolved.
func verificationMethodFromContext(ctx context.Context) VerificationMethod {
	if service, ok := ServiceFromContext(ctx); ok && service != nil {
		if method, ok := ParseVerificationMethod(string(service.VerificationMethod)); ok {
			return method
		}
	}
	return VerificationMethodLink
}
