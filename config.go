package auth

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds the process-wide auth options. It is constructed once at
// startup and passed by reference into the component constructors; request
// handling never reads the environment directly.
type Config struct {
	SigningKey       string        `env:"AUTH_SIGNING_KEY"`
	TokenTTL         time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
	CookieName       string        `env:"AUTH_COOKIE_NAME" envDefault:"session-token"`
	CookieExpiryDays int           `env:"AUTH_COOKIE_EXPIRES_DAYS" envDefault:"90"`
	ResetTokenTTL    time.Duration `env:"AUTH_RESET_TOKEN_TTL" envDefault:"10m"`
	BaseURL          string        `env:"AUTH_BASE_URL" envDefault:"http://localhost:3000"`
	Environment      string        `env:"APP_ENV" envDefault:"development"`
	SMTP             SMTPConfig    `envPrefix:"AUTH_SMTP_"`
}

// SMTPConfig holds the outbound mail options. Mail is disabled when the
// required credentials are missing.
type SMTPConfig struct {
	Host       string `env:"HOST"`
	User       string `env:"USER"`
	Password   string `env:"PASSWORD"`
	From       string `env:"FROM" envDefault:"Trailforge <noreply@trailforge.dev>"`
	SkipVerify bool   `env:"SKIP_VERIFY" envDefault:"false"`
}

// NewConfigFromEnv parses the configuration from environment variables
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse auth config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration invariants
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.TokenTTL, validation.Required),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.CookieExpiryDays, validation.Min(1)),
		validation.Field(&c.ResetTokenTTL, validation.Required),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid auth config")
	}
	return nil
}

// IsProduction reports whether we run with production hardening, which
// marks the session cookie Secure and hides internal error detail.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
