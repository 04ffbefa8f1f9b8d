package config

import (
	"fmt"
	"os"
	"strconv"

	"keygate/internal/reconcile"
)

const (
	defaultTokenMaxAge = 600
	defaultCookieName  = "keytoken"
)

type Config struct {
	AppPort string

	// Token verification
	TokenSecret     string
	TokenMaxAge     int
	TokenCookieName string

	// Access policy
	Restriction       reconcile.Restriction
	PrescreenedEmails string // newline-delimited
	PrescreenedRole   string
	Passcode          string
	PasscodeRole      string
	PasscodeEnabled   bool
	TrustTokenRole    bool

	RedisAddr     string
	RedisPassword string

	DatabaseDSN string
}

// Load reads configuration from the environment and validates the
// parts that are deployment misconfigurations rather than request
// failures: the shared secret length, the token max age and the
// restriction mode. Role names are validated at use time instead.
func Load() (Config, error) {

	cfg := Config{

		AppPort: os.Getenv("APP_PORT"),

		TokenSecret:     os.Getenv("TOKEN_SECRET"),
		TokenMaxAge:     defaultTokenMaxAge,
		TokenCookieName: os.Getenv("TOKEN_COOKIE_NAME"),

		Restriction:       reconcile.RestrictionOpen,
		PrescreenedEmails: os.Getenv("PRESCREENED_EMAILS"),
		PrescreenedRole:   os.Getenv("PRESCREENED_ROLE"),
		Passcode:          os.Getenv("PASSCODE"),
		PasscodeRole:      os.Getenv("PASSCODE_ROLE"),
		PasscodeEnabled:   boolEnv("PASSCODE_ENABLED"),
		TrustTokenRole:    boolEnv("TRUST_TOKEN_ROLE"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),
	}

	if raw := os.Getenv("TOKEN_MAX_AGE"); raw != "" {
		maxAge, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: TOKEN_MAX_AGE must be an integer: %w", err)
		}
		cfg.TokenMaxAge = maxAge
	}
	if cfg.TokenMaxAge < 0 {
		return Config{}, fmt.Errorf("config: TOKEN_MAX_AGE must be non-negative")
	}

	if len(cfg.TokenSecret) < 32 {
		return Config{}, fmt.Errorf("config: TOKEN_SECRET must be at least 32 bytes")
	}

	if cfg.TokenCookieName == "" {
		cfg.TokenCookieName = defaultCookieName
	}

	if raw := os.Getenv("RESTRICTION"); raw != "" {
		switch r := reconcile.Restriction(raw); r {
		case reconcile.RestrictionOpen,
			reconcile.RestrictionCommunityOnly,
			reconcile.RestrictionSiteUsersOnly:
			cfg.Restriction = r
		default:
			return Config{}, fmt.Errorf("config: unknown RESTRICTION %q", raw)
		}
	}

	return cfg, nil
}

// Policy assembles the reconciliation policy from the raw
// configuration values.
func (c Config) Policy() reconcile.Policy {
	return reconcile.Policy{
		Restriction:       c.Restriction,
		PrescreenedEmails: reconcile.ParseEmails(c.PrescreenedEmails),
		PrescreenedRole:   c.PrescreenedRole,
		PasscodeEnabled:   c.PasscodeEnabled,
		Passcode:          c.Passcode,
		PasscodeRole:      c.PasscodeRole,
		TrustTokenRole:    c.TrustTokenRole,
	}
}

func boolEnv(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes":
		return true
	}
	return false
}
