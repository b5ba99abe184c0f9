package oidc

import "github.com/goliatone/go-errors"

const (
	TextCodeInvalidState     = "oidc_invalid_state"
	TextCodeStateExpired     = "oidc_state_expired"
	TextCodeNonceMismatch    = "oidc_nonce_mismatch"
	TextCodeExchangeFail     = "oidc_token_exchange_failed"
	TextCodeMissingIDToken   = "oidc_missing_id_token"
	TextCodeProviderDenied   = "oidc_provider_denied"
	TextCodeInvalidIDToken   = "oidc_invalid_id_token"
	TextCodeIssuerMismatch   = "oidc_issuer_mismatch"
	TextCodeEmailNotVerified = "oidc_email_not_verified"
)

// ErrInvalidState is returned when the state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the state outlived its validity window.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrNonceMismatch is returned when the ID token nonce does not match the one
// bound to the state. It indicates a replayed or substituted token.
var ErrNonceMismatch = errors.New("nonce mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeNonceMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrProviderDenied is returned when the provider redirects back with an
// error parameter instead of an authorization code.
var ErrProviderDenied = errors.New("provider denied authorization", errors.CategoryAuth).
	WithTextCode(TextCodeProviderDenied).
	WithCode(errors.CodeUnauthorized)

// ErrExchangeFailed is returned when the provider code exchange fails.
var ErrExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrMissingIDToken is returned when the exchange response has no ID token.
var ErrMissingIDToken = errors.New("provider response missing id_token", errors.CategoryAuth).
	WithTextCode(TextCodeMissingIDToken).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidIDToken is returned when the ID token fails signature or claim
// validation.
var ErrInvalidIDToken = errors.New("invalid id token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidIDToken).
	WithCode(errors.CodeUnauthorized)

// ErrIssuerMismatch is returned when the ID token issuer is not trusted.
var ErrIssuerMismatch = errors.New("untrusted token issuer", errors.CategoryAuth).
	WithTextCode(TextCodeIssuerMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrEmailNotVerified is returned when the provider email is not verified.
var ErrEmailNotVerified = errors.New("email not verified", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)
