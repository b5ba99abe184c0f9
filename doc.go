// Package identity implements the credential and token-lifecycle core of a
// multi-tenant identity provider: password verification, JWT access tokens,
// rotating refresh tokens, single-use verification and password-reset tokens,
// and API-key gating for client services. The third-party OpenID Connect
// login flow lives in the oidc subpackage.
//
// The package exposes pure components wired together by the caller; HTTP
// routing, rate limiting, and mail delivery are collaborator concerns and
// live outside this module.
package identity
