package identity

import "github.com/goliatone/go-errors"

const (
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeAccountUnverified  = "account_unverified"
	TextCodeAccountInactive    = "account_inactive"
	TextCodeTokenExpired       = "token_expired"
	TextCodeTokenAlreadyUsed   = "token_already_used"
	TextCodeTokenRevoked       = "token_revoked"
	TextCodeTokenInvalid       = "token_invalid"
	TextCodeTokenMalformed     = "token_malformed"
	TextCodeUnknownSubject     = "unknown_subject"
	TextCodeKeyRequired        = "api_key_required"
	TextCodeInvalidKey         = "api_key_invalid"
	TextCodePasswordPolicy     = "password_policy"
	TextCodeDuplicateUser      = "duplicate_identifier"
)

// ErrInvalidCredentials is returned for a bad identifier/password pair.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountUnverified blocks password logins until the email is verified.
var ErrAccountUnverified = errors.New("email not verified", errors.CategoryAuth).
	WithTextCode(TextCodeAccountUnverified).
	WithCode(errors.CodeForbidden)

// ErrAccountInactive is returned when the resolved user is deactivated.
var ErrAccountInactive = errors.New("account is inactive", errors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(errors.CodeForbidden)

// ErrTokenExpired is returned when a credential is past its expiry.
var ErrTokenExpired = errors.New("token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenAlreadyUsed is returned when a single-use token was consumed before.
var ErrTokenAlreadyUsed = errors.New("token already used", errors.CategoryAuth).
	WithTextCode(TextCodeTokenAlreadyUsed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRevoked is returned when a refresh token was revoked or rotated.
var ErrTokenRevoked = errors.New("token revoked", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalid is returned for unknown opaque tokens.
var ErrTokenInvalid = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a JWT fails structural or signature checks.
var ErrTokenMalformed = errors.New("malformed token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnknownSubject is returned when a token subject no longer resolves to an
// active user.
var ErrUnknownSubject = errors.New("token subject not found", errors.CategoryAuth).
	WithTextCode(TextCodeUnknownSubject).
	WithCode(errors.CodeUnauthorized)

// ErrKeyRequired is returned when a request carries no service API key.
var ErrKeyRequired = errors.New("API key required", errors.CategoryAuth).
	WithTextCode(TextCodeKeyRequired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidKey is returned for unknown, inactive, or tenant-disabled keys.
var ErrInvalidKey = errors.New("invalid API key", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidKey).
	WithCode(errors.CodeUnauthorized)

// ErrPasswordPolicy is returned when a password fails the acceptance policy.
var ErrPasswordPolicy = errors.New(
	"password must be at least 6 characters and include at least one letter, one number, and one symbol",
	errors.CategoryValidation,
).
	WithTextCode(TextCodePasswordPolicy).
	WithCode(errors.CodeBadRequest)

// ErrDuplicateIdentifier is returned when an email or phone is already taken.
var ErrDuplicateIdentifier = errors.New("identifier already registered", errors.CategoryValidation).
	WithTextCode(TextCodeDuplicateUser).
	WithCode(errors.CodeConflict)

// ErrNoEmptyString guards hashing of empty input.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the low-level verification mismatch; the
// authenticator maps it to ErrInvalidCredentials.
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)
