package config

import (
	"strings"
	"testing"

	"keygate/internal/reconcile"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_PORT", "8080")
	t.Setenv("TOKEN_SECRET", strings.Repeat("a", 32))
	t.Setenv("TOKEN_MAX_AGE", "")
	t.Setenv("TOKEN_COOKIE_NAME", "")
	t.Setenv("RESTRICTION", "")
	t.Setenv("PRESCREENED_EMAILS", "")
	t.Setenv("PRESCREENED_ROLE", "")
	t.Setenv("PASSCODE", "")
	t.Setenv("PASSCODE_ROLE", "")
	t.Setenv("PASSCODE_ENABLED", "")
	t.Setenv("TRUST_TOKEN_ROLE", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TokenMaxAge != defaultTokenMaxAge {
		t.Errorf("TokenMaxAge = %d, want %d", cfg.TokenMaxAge, defaultTokenMaxAge)
	}
	if cfg.TokenCookieName != defaultCookieName {
		t.Errorf("TokenCookieName = %q, want %q", cfg.TokenCookieName, defaultCookieName)
	}
	if cfg.Restriction != reconcile.RestrictionOpen {
		t.Errorf("Restriction = %q, want open", cfg.Restriction)
	}
	if cfg.PasscodeEnabled || cfg.TrustTokenRole {
		t.Error("boolean flags should default to false")
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TOKEN_SECRET", "tooshort")

	if _, err := Load(); err == nil {
		t.Error("short secret should fail load")
	}
}

func TestLoadRejectsBadMaxAge(t *testing.T) {
	setBaseEnv(t)

	t.Setenv("TOKEN_MAX_AGE", "-1")
	if _, err := Load(); err == nil {
		t.Error("negative max age should fail load")
	}

	t.Setenv("TOKEN_MAX_AGE", "soon")
	if _, err := Load(); err == nil {
		t.Error("non-integer max age should fail load")
	}

	t.Setenv("TOKEN_MAX_AGE", "0")
	if _, err := Load(); err != nil {
		t.Errorf("zero max age should be accepted: %v", err)
	}
}

func TestLoadRestriction(t *testing.T) {
	setBaseEnv(t)

	for _, mode := range []string{"open", "communityOnly", "siteUsersOnly"} {
		t.Setenv("RESTRICTION", mode)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("RESTRICTION=%s: %v", mode, err)
		}
		if string(cfg.Restriction) != mode {
			t.Errorf("Restriction = %q, want %q", cfg.Restriction, mode)
		}
	}

	t.Setenv("RESTRICTION", "lockdown")
	if _, err := Load(); err == nil {
		t.Error("unknown restriction should fail load")
	}
}

func TestPolicyAssembly(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RESTRICTION", "siteUsersOnly")
	t.Setenv("PRESCREENED_EMAILS", "a@example.edu\nb@example.edu")
	t.Setenv("PRESCREENED_ROLE", "contributor")
	t.Setenv("PASSCODE", "sesame")
	t.Setenv("PASSCODE_ROLE", "contributor")
	t.Setenv("PASSCODE_ENABLED", "true")
	t.Setenv("TRUST_TOKEN_ROLE", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	p := cfg.Policy()
	if p.Restriction != reconcile.RestrictionSiteUsersOnly {
		t.Errorf("Restriction = %q", p.Restriction)
	}
	if !p.Prescreened("a@example.edu") || !p.Prescreened("b@example.edu") {
		t.Error("prescreened emails not parsed")
	}
	if p.Prescreened("c@example.edu") {
		t.Error("unexpected prescreened email")
	}
	if p.PrescreenedRole != "contributor" {
		t.Errorf("PrescreenedRole = %q", p.PrescreenedRole)
	}
	if !p.PasscodeEnabled || p.Passcode != "sesame" || p.PasscodeRole != "contributor" {
		t.Errorf("passcode policy = %+v", p)
	}
	if !p.TrustTokenRole {
		t.Error("TrustTokenRole not carried over")
	}
}
