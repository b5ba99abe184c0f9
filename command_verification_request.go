package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type AccountVerificationRequestMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *AccountVerificationRequestResponse)
}

func (e AccountVerificationRequestMessage) Type() string { return "user.verification_request" }

// AccountVerificationRequestResponse is a generic acknowledgement: it reads
// the same whether or not the email resolved to an account, so the endpoint
// cannot be used to enumerate registered addresses.
type AccountVerificationRequestResponse struct {
	Acknowledged bool
}

// AccountVerificationRequestHandler re-sends an email verification token.
type AccountVerificationRequestHandler struct {
	repo         RepositoryManager
	verification *VerificationTokenManager
	mailer       *TokenMailer
	logger       Logger
}

// NewAccountVerificationRequestHandler creates a handler with sane defaults.
func NewAccountVerificationRequestHandler(repo RepositoryManager, verification *VerificationTokenManager, mailer *TokenMailer) *AccountVerificationRequestHandler {
	return &AccountVerificationRequestHandler{
		repo:         repo,
		verification: verification,
		mailer:       mailer,
		logger:       defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *AccountVerificationRequestHandler) WithLogger(logger Logger) *AccountVerificationRequestHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AccountVerificationRequestHandler) Execute(ctx context.Context, event AccountVerificationRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationRequestHandler) execute(ctx context.Context, event AccountVerificationRequestMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &AccountVerificationRequestResponse{Acknowledged: true}
	ack := func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// unknown addresses get the same acknowledgement
			ack()
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification request")
	}

	if user.EmailVerified {
		ack()
		return nil
	}

	method := verificationMethodFromContext(ctx)

	raw, _, err := h.verification.Issue(ctx, user.ID, PurposeEmailVerify, method)
	if err != nil {
		return err
	}

	if err := h.mailer.SendEmailVerification(ctx, user.Email, method, raw); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send verification email")
	}

	ack()
	return nil
}

type VerifyEmailMessage struct {
	Token      string    `json:"token"`
	Code       string    `json:"code"`
	UserID     uuid.UUID `json:"user_id"`
	IPAddress  string    `json:"-"`
	OnResponse func(resp *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "user.verify_email" }

type VerifyEmailResponse struct {
	UserID  uuid.UUID
	Success bool
}

// VerifyEmailHandler redeems a verification token, in either link or code
// form, and marks the account's email verified.
type VerifyEmailHandler struct {
	verification *VerificationTokenManager
	sink         AuthEventSink
	logger       Logger
}

// NewVerifyEmailHandler creates a handler with sane defaults.
func NewVerifyEmailHandler(verification *VerificationTokenManager) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		verification: verification,
		sink:         noopAuthEventSink{},
		logger:       defLogger{},
	}
}

// WithAuthEventSink sets the sink used to emit verification events.
func (h *VerifyEmailHandler) WithAuthEventSink(sink AuthEventSink) *VerifyEmailHandler {
	h.sink = normalizeAuthEventSink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	userID, err := h.verification.ConsumeEmailVerification(ctx, tokenInputFromMessage(event.Token, event.Code, event.UserID))
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify email")
	}

	h.recordActivity(ctx, userID, event.IPAddress)

	if event.OnResponse != nil {
		event.OnResponse(&VerifyEmailResponse{UserID: userID, Success: true})
	}

	return nil
}

func (h *VerifyEmailHandler) recordActivity(ctx context.Context, userID uuid.UUID, ipAddress string) {
	event := AuthEventRecord{
		EventType:  AuthEventEmailVerified,
		UserID:     userID,
		IPAddress:  ipAddress,
		OccurredAt: time.Now(),
	}

	if service, ok := ServiceFromContext(ctx); ok && service != nil {
		event.ServiceID = &service.ID
	}

	if err := normalizeAuthEventSink(h.sink).Record(ctx, event); err != nil {
		h.logger.Warn("auth event sink error during email verification: %v", err)
	}
}

// tokenInputFromMessage maps the wire fields onto a token input: a present
// code wins and scopes the lookup to the given user, otherwise the link value
// is used globally.
func tokenInputFromMessage(token, code string, userID uuid.UUID) TokenInput {
	if code != "" {
		return TokenInput{Raw: code, Method: VerificationMethodCode, UserID: userID}
	}
	return TokenInput{Raw: token, Method: VerificationMethodLink}
}
