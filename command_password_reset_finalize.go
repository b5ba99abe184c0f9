package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token      string    `json:"token"`
	Code       string    `json:"code"`
	UserID     uuid.UUID `json:"user_id"`
	Password   string    `json:"password"`
	IPAddress  string    `json:"-"`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

type FinalizePasswordResetResponse struct {
	UserID  uuid.UUID
	Success bool
}

// FinalizePasswordResetHandler redeems a reset token, replaces the password,
// and closes the user's open sessions.
type FinalizePasswordResetHandler struct {
	repo         RepositoryManager
	verification *VerificationTokenManager
	sink         AuthEventSink
	logger       Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, verification *VerificationTokenManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:         repo,
		verification: verification,
		sink:         noopAuthEventSink{},
		logger:       defLogger{},
	}
}

// WithAuthEventSink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithAuthEventSink(sink AuthEventSink) *FinalizePasswordResetHandler {
	h.sink = normalizeAuthEventSink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	input := tokenInputFromMessage(event.Token, event.Code, event.UserID)

	userID, err := h.verification.ConsumePasswordReset(ctx, input, event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	// existing sessions no longer match the credential that minted them
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := h.repo.RefreshTokens().RevokeAllForUserTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		h.logger.Warn("failed to revoke sessions after password reset: %v", err)
	}

	h.recordActivity(ctx, userID, event.IPAddress)

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{UserID: userID, Success: true})
	}

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, userID uuid.UUID, ipAddress string) {
	event := AuthEventRecord{
		EventType:  AuthEventPasswordReset,
		UserID:     userID,
		IPAddress:  ipAddress,
		OccurredAt: time.Now(),
	}

	if service, ok := ServiceFromContext(ctx); ok && service != nil {
		event.ServiceID = &service.ID
	}

	if err := normalizeAuthEventSink(h.sink).Record(ctx, event); err != nil {
		h.logger.Warn("auth event sink error during password reset: %v", err)
	}
}
