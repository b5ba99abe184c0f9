package identity

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrMailerRequired is returned when a flow needs outbound email but no
// Mailer was configured.
var ErrMailerRequired = goerrors.New("no mailer configured", goerrors.CategoryInternal).
	WithTextCode("mailer_required")

// TokenMailer renders and sends verification and password reset messages.
// Link values land on the host application's pages under the configured base
// URL; codes are sent verbatim for in-app entry.
type TokenMailer struct {
	mailer  Mailer
	baseURL string
	logger  Logger
}

// NewTokenMailer returns a new TokenMailer.
func NewTokenMailer(mailer Mailer, opts Config) *TokenMailer {
	return &TokenMailer{
		mailer:  mailer,
		baseURL: strings.TrimRight(opts.GetBaseURL(), "/"),
		logger:  defLogger{},
	}
}

func (m *TokenMailer) WithLogger(logger Logger) *TokenMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// SendEmailVerification delivers an email verification token.
func (m *TokenMailer) SendEmailVerification(ctx context.Context, recipient string, method VerificationMethod, raw string) error {
	if m.mailer == nil {
		return ErrMailerRequired
	}

	subject := "Verify your email"
	var body string

	switch method {
	case VerificationMethodCode:
		body = fmt.Sprintf("Your verification code is %s. It expires shortly, enter it in the app to verify your email.", raw)
	default:
		body = fmt.Sprintf("Follow this link to verify your email: %s", m.link("/verify-email", raw))
	}

	return m.mailer.Send(ctx, recipient, subject, body)
}

// SendPasswordReset delivers a password reset token.
func (m *TokenMailer) SendPasswordReset(ctx context.Context, recipient string, method VerificationMethod, raw string) error {
	if m.mailer == nil {
		return ErrMailerRequired
	}

	subject := "Reset your password"
	var body string

	switch method {
	case VerificationMethodCode:
		body = fmt.Sprintf("Your password reset code is %s. If you did not request a reset you can ignore this message.", raw)
	default:
		body = fmt.Sprintf("Follow this link to reset your password: %s", m.link("/password/reset", raw))
	}

	return m.mailer.Send(ctx, recipient, subject, body)
}

func (m *TokenMailer) link(path, raw string) string {
	query := url.Values{"token": {raw}}
	return m.baseURL + path + "?" + query.Encode()
}
