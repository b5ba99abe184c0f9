package oidc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"
)

// DefaultIssuers returns the issuer values Google uses in ID tokens.
func DefaultIssuers() []string {
	return []string{"https://accounts.google.com", "accounts.google.com"}
}

// DefaultScopes returns the default OpenID Connect scopes.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Config holds provider configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	JWKSURL  string
	Issuers  []string

	HTTPClient *http.Client
}

// Token is the result of a successful code exchange.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
}

// Provider performs the OpenID Connect authorization code flow against
// Google.
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New creates a new Provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = defaultJWKSURL
	}
	if len(cfg.Issuers) == 0 {
		cfg.Issuers = DefaultIssuers()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		config:     cfg,
		httpClient: client,
	}
}

// Name identifies the provider in stored account links.
func (p *Provider) Name() string {
	return "google"
}

// AuthCodeURL builds the authorization redirect. The nonce is echoed back
// inside the ID token so the callback can bind token to flow.
func (p *Provider) AuthCodeURL(state, nonce string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.CallbackURL},
		"response_type": {"code"},
		"scope":         {strings.Join(p.config.Scopes, " ")},
		"state":         {state},
		"nonce":         {nonce},
	}

	return p.config.AuthURL + "?" + params.Encode()
}

// Exchange trades an authorization code for provider tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (*Token, error) {
	data := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.config.CallbackURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, ErrExchangeFailed.Clone().WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, ErrExchangeFailed.Clone().WithMetadata(map[string]any{
			"status": resp.StatusCode,
			"cause":  "failed to decode token response",
		})
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		return nil, ErrExchangeFailed.Clone().WithMetadata(map[string]any{
			"status":            resp.StatusCode,
			"error":             tokenResp.Error,
			"error_description": tokenResp.ErrorDesc,
		})
	}

	if tokenResp.IDToken == "" {
		return nil, ErrMissingIDToken
	}

	expiresAt := time.Time{}
	if tokenResp.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return &Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		IDToken:      tokenResp.IDToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// JWKSURL exposes the configured key set endpoint for the verifier.
func (p *Provider) JWKSURL() string {
	return p.config.JWKSURL
}

// Issuers exposes the trusted issuer values for the verifier.
func (p *Provider) Issuers() []string {
	return p.config.Issuers
}

// ClientID exposes the expected ID token audience for the verifier.
func (p *Provider) ClientID() string {
	return p.config.ClientID
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}
