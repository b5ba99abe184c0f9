package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthEventType enumerates supported audit categories.
type AuthEventType string

const (
	AuthEventRegister      AuthEventType = "register"
	AuthEventLogin         AuthEventType = "login"
	AuthEventLoginFailure  AuthEventType = "login_failed"
	AuthEventTokenRefresh  AuthEventType = "token_refresh"
	AuthEventLogout        AuthEventType = "logout"
	AuthEventEmailVerified AuthEventType = "email_verified"
	AuthEventPasswordReset AuthEventType = "password_reset"
	AuthEventOAuthLogin    AuthEventType = "oauth_login"
)

// AuthEventRecord captures audit-friendly information about an action.
type AuthEventRecord struct {
	EventType  AuthEventType
	UserID     uuid.UUID
	IPAddress  string
	ServiceID  *uuid.UUID
	OccurredAt time.Time
}

// AuthEventSink consumes auth events for auditing. It records outcomes and
// never makes decisions.
type AuthEventSink interface {
	Record(ctx context.Context, event AuthEventRecord) error
}

// AuthEventSinkFunc adapts a function to the AuthEventSink interface.
type AuthEventSinkFunc func(ctx context.Context, event AuthEventRecord) error

// Record implements AuthEventSink.
func (f AuthEventSinkFunc) Record(ctx context.Context, event AuthEventRecord) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopAuthEventSink struct{}

func (noopAuthEventSink) Record(context.Context, AuthEventRecord) error {
	return nil
}

func normalizeAuthEventSink(s AuthEventSink) AuthEventSink {
	if s == nil {
		return noopAuthEventSink{}
	}
	return s
}

// StoreAuthEventSink appends events to the auth_events table.
type StoreAuthEventSink struct {
	events AuthEvents
}

func NewStoreAuthEventSink(events AuthEvents) *StoreAuthEventSink {
	return &StoreAuthEventSink{events: events}
}

// Record implements AuthEventSink.
func (s *StoreAuthEventSink) Record(ctx context.Context, event AuthEventRecord) error {
	if s.events == nil {
		return nil
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	_, err := s.events.Create(ctx, &AuthEvent{
		UserID:    event.UserID,
		EventType: string(event.EventType),
		IPAddress: event.IPAddress,
		ServiceID: event.ServiceID,
		CreatedAt: &occurredAt,
	})
	return err
}
