package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds identity options. It is constructed once at startup and passed
// into each component's constructor; no component reads ambient state.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetEmailVerifyTTL() time.Duration
	GetPasswordResetTTL() time.Duration
	GetBaseURL() string
}

// Mailer delivers a message to a recipient. The core builds token content but
// never performs delivery itself.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// TokenService mints and validates signed access tokens.
type TokenService interface {
	Generate(subjectID string) (string, error)
	Validate(token string) (*AccessClaims, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
