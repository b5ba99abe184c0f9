package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// InitializePasswordResetResponse is a generic acknowledgement: the caller
// cannot tell whether the email resolved to an account.
type InitializePasswordResetResponse struct {
	Acknowledged bool
}

// InitializePasswordResetHandler issues a password reset token and mails it
// to the account holder.
type InitializePasswordResetHandler struct {
	repo         RepositoryManager
	verification *VerificationTokenManager
	mailer       *TokenMailer
	logger       Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, verification *VerificationTokenManager, mailer *TokenMailer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:         repo,
		verification: verification,
		mailer:       mailer,
		logger:       defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{Acknowledged: true}
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	method := verificationMethodFromContext(ctx)

	raw, _, err := h.verification.Issue(ctx, user.ID, PurposePasswordReset, method)
	if err != nil {
		return err
	}

	if err := h.mailer.SendPasswordReset(ctx, user.Email, method, raw); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send password reset email")
	}

	ack()
	return nil
}
