package adminauth

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Revocation.FailOpen {
		t.Fatal("denylist must fail closed by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "grace equal to twice interval",
			mutate:    func(c *Config) { c.Secret.GracePeriod = 48 * time.Hour },
			wantValid: true,
		},
		{
			name:      "grace above twice interval",
			mutate:    func(c *Config) { c.Secret.GracePeriod = 49 * time.Hour },
			wantValid: false,
		},
		{
			name:      "zero rotation interval",
			mutate:    func(c *Config) { c.Secret.RotationInterval = 0 },
			wantValid: false,
		},
		{
			name:      "short seed",
			mutate:    func(c *Config) { c.Secret.Seed = "short" },
			wantValid: false,
		},
		{
			name:      "same audiences",
			mutate:    func(c *Config) { c.Token.RefreshAudience = c.Token.AccessAudience },
			wantValid: false,
		},
		{
			name:      "refresh shorter than access",
			mutate:    func(c *Config) { c.Token.RefreshTTL = time.Minute },
			wantValid: false,
		},
		{
			name:      "leeway too large",
			mutate:    func(c *Config) { c.Token.Leeway = 3 * time.Minute },
			wantValid: false,
		},
		{
			name: "access outlives grace",
			mutate: func(c *Config) {
				c.Secret.GracePeriod = 10 * time.Minute
				c.Token.AccessTTL = 15 * time.Minute
			},
			wantValid: false,
		},
		{
			name:      "external without url",
			mutate:    func(c *Config) { c.External.Enabled = true },
			wantValid: false,
		},
		{
			name:      "unsupported mask width",
			mutate:    func(c *Config) { c.Permission.MaxBits = 100 },
			wantValid: false,
		},
		{
			name:      "watch without role file",
			mutate:    func(c *Config) { c.Permission.WatchRoleFile = true },
			wantValid: false,
		},
		{
			name:      "rate limit without budget",
			mutate:    func(c *Config) { c.RateLimit.MaxFailures = 0 },
			wantValid: false,
		},
		{
			name: "rate limit disabled ignores budget",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.MaxFailures = 0
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adminauth.yaml")
	data := []byte(`
secret:
  rotation_interval: 12h
  grace_period: 6h
token:
  issuer: ops-console
  access_ttl: 5m
revocation:
  fail_open: true
external:
  enabled: true
  userinfo_url: https://idp.example.com/userinfo
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Secret.RotationInterval != 12*time.Hour || cfg.Secret.GracePeriod != 6*time.Hour {
		t.Fatalf("secret durations not decoded: %+v", cfg.Secret)
	}
	if cfg.Token.Issuer != "ops-console" || cfg.Token.AccessTTL != 5*time.Minute {
		t.Fatalf("token section not decoded: %+v", cfg.Token)
	}
	if cfg.Token.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("expected default refresh ttl to survive, got %v", cfg.Token.RefreshTTL)
	}
	if !cfg.Revocation.FailOpen || !cfg.External.Enabled {
		t.Fatal("boolean overrides not applied")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("decoded config invalid: %v", err)
	}
}

func TestLoadConfigFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adminauth.yaml")
	if err := os.WriteFile(path, []byte("secret:\n  rotaton_interval: 1h\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvSecretSeed, "env-seed-0123456789abcdef")
	t.Setenv(EnvExternalUserInfoURL, "https://idp.example.com/me")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Secret.Seed != "env-seed-0123456789abcdef" {
		t.Fatalf("seed not applied: %q", cfg.Secret.Seed)
	}
	if !cfg.External.Enabled || cfg.External.UserInfoURL != "https://idp.example.com/me" {
		t.Fatalf("external not applied: %+v", cfg.External)
	}
}
