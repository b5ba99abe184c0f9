package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationMethod selects how single-use tokens are delivered to a user:
// an opaque link value or a short numeric code.
type VerificationMethod string

const (
	VerificationMethodLink VerificationMethod = "link"
	VerificationMethodCode VerificationMethod = "code"
)

// TokenPurpose tags a verification token with the effect its consumption has.
type TokenPurpose string

const (
	PurposeEmailVerify   TokenPurpose = "email_verify"
	PurposePasswordReset TokenPurpose = "password_reset"
)

// User is the account model. At least one of Email or Phone is required;
// each is unique when present. Token records and auth events are owned by
// the user and cascade-deleted with it.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,unique,nullzero" json:"email,omitempty"`
	Phone         string     `bun:"phone_number,unique,nullzero" json:"phone_number,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	EmailVerified bool       `bun:"email_verified,notnull" json:"email_verified"`
	Active        bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Identifier returns the user's primary contact identifier.
func (u *User) Identifier() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Phone
}

// RefreshToken stores the hash of an opaque long-lived credential. The raw
// value exists only in the issuance response.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TokenHash     string     `bun:"token_hash,notnull,unique" json:"-"`
	Revoked       bool       `bun:"revoked,notnull" json:"revoked"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// VerificationToken is a single-use expiring credential for email
// verification or password reset. Valid iff used_at IS NULL and now is
// before expires_at.
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vt"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID    `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Purpose       TokenPurpose `bun:"purpose,notnull" json:"purpose"`
	TokenHash     string       `bun:"token_hash,notnull" json:"-"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	ExpiresAt     time.Time    `bun:"expires_at,notnull" json:"expires_at"`
	UsedAt        *time.Time   `bun:"used_at,nullzero" json:"used_at,omitempty"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Used reports whether the token was already consumed.
func (t *VerificationToken) Used() bool {
	return t.UsedAt != nil
}

// OAuthAccount links a (provider, subject) pair to exactly one user. The
// combination is unique; the provider-asserted email is cached.
type OAuthAccount struct {
	bun.BaseModel `bun:"table:oauth_accounts,alias:oa"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Provider      string     `bun:"provider,notnull,unique:uq_oauth_provider_subject" json:"provider"`
	Subject       string     `bun:"subject,notnull,unique:uq_oauth_provider_subject" json:"subject"`
	Email         string     `bun:"email,nullzero" json:"email,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Service is a registered client tenant consuming this identity provider.
type Service struct {
	bun.BaseModel      `bun:"table:services,alias:svc"`
	ID                 uuid.UUID          `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name               string             `bun:"name,notnull,unique" json:"name"`
	Domain             string             `bun:"domain,nullzero" json:"domain,omitempty"`
	Active             bool               `bun:"is_active,notnull,default:true" json:"is_active"`
	VerificationMethod VerificationMethod `bun:"verification_method,notnull,default:'link'" json:"verification_method"`
	CreatedAt          *time.Time         `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ServiceAPIKey stores the hash of a service's static API key. Many keys may
// belong to one service; at most one active identity per raw key value.
type ServiceAPIKey struct {
	bun.BaseModel `bun:"table:service_api_keys,alias:sak"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ServiceID     uuid.UUID  `bun:"service_id,notnull,type:uuid" json:"service_id,omitempty"`
	KeyHash       string     `bun:"key_hash,notnull,unique" json:"-"`
	Active        bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	LastUsedAt    *time.Time `bun:"last_used_at,nullzero" json:"last_used_at,omitempty"`
}

// AuthEvent is an append-only audit record. It is removed only via cascade
// from its owning user; deleting a service just clears the tenant tag.
type AuthEvent struct {
	bun.BaseModel `bun:"table:auth_events,alias:evt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	EventType     string     `bun:"event_type,notnull" json:"event_type"`
	IPAddress     string     `bun:"ip_address,nullzero" json:"ip_address,omitempty"`
	ServiceID     *uuid.UUID `bun:"service_id,nullzero,type:uuid" json:"service_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ParseVerificationMethod normalizes a stored method value, defaulting to link.
func ParseVerificationMethod(value string) (VerificationMethod, bool) {
	switch VerificationMethod(value) {
	case VerificationMethodLink, "":
		return VerificationMethodLink, true
	case VerificationMethodCode:
		return VerificationMethodCode, true
	default:
		return VerificationMethodLink, false
	}
}
