package identity

import "time"

// SimpleConfig is a plain-struct Config implementation for callers that do
// not bring their own configuration layer.
type SimpleConfig struct {
	SigningKey       string
	Issuer           string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	EmailVerifyTTL   time.Duration
	PasswordResetTTL time.Duration
	BaseURL          string
}

func (c SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c SimpleConfig) GetIssuer() string { return c.Issuer }

func (c SimpleConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL == 0 {
		return 60 * time.Minute
	}
	return c.AccessTokenTTL
}

func (c SimpleConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL == 0 {
		return 30 * 24 * time.Hour
	}
	return c.RefreshTokenTTL
}

func (c SimpleConfig) GetEmailVerifyTTL() time.Duration {
	if c.EmailVerifyTTL == 0 {
		return 5 * time.Minute
	}
	return c.EmailVerifyTTL
}

func (c SimpleConfig) GetPasswordResetTTL() time.Duration {
	if c.PasswordResetTTL == 0 {
		return 30 * time.Minute
	}
	return c.PasswordResetTTL
}

func (c SimpleConfig) GetBaseURL() string { return c.BaseURL }

var _ Config = SimpleConfig{}
