package adminauth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth/permission"
	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration. Start from [DefaultConfig] and
// override fields, or decode a YAML file with [LoadConfigFile].
type Config struct {
	Secret     SecretConfig     `yaml:"secret"`
	Token      TokenConfig      `yaml:"token"`
	Revocation RevocationConfig `yaml:"revocation"`
	External   ExternalConfig   `yaml:"external"`
	Permission PermissionConfig `yaml:"permission"`
	LastSeen   LastSeenConfig   `yaml:"last_seen"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Audit      AuditConfig      `yaml:"audit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// SecretConfig controls the signing-secret lifecycle.
type SecretConfig struct {
	// Seed derives the first secret on first boot. Empty means a random first secret.
	Seed             string        `yaml:"seed"`
	RotationInterval time.Duration `yaml:"rotation_interval"`
	// GracePeriod is how long the previous secret keeps verifying. Zero means RotationInterval.
	GracePeriod     time.Duration `yaml:"grace_period"`
	RedisKey        string        `yaml:"redis_key"`
	StoreTimeout    time.Duration `yaml:"store_timeout"`
	RotationTimeout time.Duration `yaml:"rotation_timeout"`
	CheckInterval   time.Duration `yaml:"check_interval"`
}

// TokenConfig controls issued token claims and lifetimes.
type TokenConfig struct {
	Issuer          string        `yaml:"issuer"`
	AccessAudience  string        `yaml:"access_audience"`
	RefreshAudience string        `yaml:"refresh_audience"`
	AccessTTL       time.Duration `yaml:"access_ttl"`
	RefreshTTL      time.Duration `yaml:"refresh_ttl"`
	Leeway          time.Duration `yaml:"leeway"`
	MaxFutureIAT    time.Duration `yaml:"max_future_iat"`
}

// RevocationConfig controls the token denylist.
type RevocationConfig struct {
	RedisPrefix string        `yaml:"redis_prefix"`
	DefaultTTL  time.Duration `yaml:"default_ttl"`
	// FailOpen accepts tokens when the denylist is unreachable. Off by default.
	FailOpen     bool          `yaml:"fail_open"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
}

// ExternalConfig controls the external identity provider path.
type ExternalConfig struct {
	Enabled           bool          `yaml:"enabled"`
	UserInfoURL       string        `yaml:"userinfo_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// PermissionConfig controls the RBAC table.
type PermissionConfig struct {
	MaxBits        int    `yaml:"max_bits"`
	SuperAdminRole string `yaml:"super_admin_role"`
	// RoleFile is an optional YAML role table used instead of the directory's.
	RoleFile string `yaml:"role_file"`
	// WatchRoleFile reloads RoleFile on change.
	WatchRoleFile bool `yaml:"watch_role_file"`
}

// LastSeenConfig controls the asynchronous last-seen updater.
type LastSeenConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BufferSize int           `yaml:"buffer_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RateLimitConfig controls failed-authentication throttling per client IP.
type RateLimitConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures int           `yaml:"max_failures"`
	Window      time.Duration `yaml:"window"`
}

// AuditConfig controls the activity-log dispatcher.
type AuditConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BufferSize  int           `yaml:"buffer_size"`
	DropIfFull  bool          `yaml:"drop_if_full"`
	SinkTimeout time.Duration `yaml:"sink_timeout"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// Environment variables read by [Config.ApplyEnv].
const (
	EnvSecretSeed          = "ADMINAUTH_SECRET_SEED"
	EnvExternalUserInfoURL = "ADMINAUTH_EXTERNAL_USERINFO_URL"
)

// DefaultConfig returns production defaults: daily rotation, 15 minute access tokens,
// 7 day refresh tokens, and a fail-closed denylist.
func DefaultConfig() Config {
	return Config{
		Secret: SecretConfig{
			RotationInterval: 24 * time.Hour,
			RedisKey:         "adminauth:secret:state",
			StoreTimeout:     2 * time.Second,
			RotationTimeout:  10 * time.Second,
			CheckInterval:    time.Minute,
		},
		Token: TokenConfig{
			Issuer:          "marketplace-admin",
			AccessAudience:  "marketplace-admin:access",
			RefreshAudience: "marketplace-admin:refresh",
			AccessTTL:       15 * time.Minute,
			RefreshTTL:      7 * 24 * time.Hour,
			Leeway:          30 * time.Second,
			MaxFutureIAT:    10 * time.Minute,
		},
		Revocation: RevocationConfig{
			RedisPrefix:  "adminauth:revoked",
			DefaultTTL:   7 * 24 * time.Hour,
			StoreTimeout: 2 * time.Second,
		},
		External: ExternalConfig{
			Timeout:           5 * time.Second,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Permission: PermissionConfig{
			MaxBits:        256,
			SuperAdminRole: permission.DefaultSuperAdminRole,
		},
		LastSeen: LastSeenConfig{
			Enabled:    true,
			BufferSize: 1024,
			Timeout:    2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxFailures: 20,
			Window:      5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// LoadConfigFile decodes a YAML file over [DefaultConfig]. Unknown keys are rejected.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides secret-bearing fields from the environment.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvSecretSeed)); v != "" {
		c.Secret.Seed = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvExternalUserInfoURL)); v != "" {
		c.External.UserInfoURL = v
		c.External.Enabled = true
	}
}

// Validate checks internal consistency. Build calls it.
func (c *Config) Validate() error {
	// Secret
	if c.Secret.RotationInterval <= 0 {
		return errors.New("Secret RotationInterval must be > 0")
	}
	if c.Secret.GracePeriod < 0 {
		return errors.New("Secret GracePeriod must be >= 0")
	}
	if c.Secret.GracePeriod > 2*c.Secret.RotationInterval {
		return errors.New("Secret GracePeriod must be <= 2 x RotationInterval")
	}
	if c.Secret.RedisKey == "" {
		return errors.New("Secret RedisKey must be set")
	}
	if c.Secret.Seed != "" && len(c.Secret.Seed) < 16 {
		return errors.New("Secret Seed must be at least 16 bytes")
	}

	// Token
	if c.Token.Issuer == "" {
		return errors.New("Token Issuer must be set")
	}
	if c.Token.AccessAudience == "" || c.Token.RefreshAudience == "" {
		return errors.New("Token audiences must be set")
	}
	if c.Token.AccessAudience == c.Token.RefreshAudience {
		return errors.New("Token AccessAudience and RefreshAudience must differ")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must be >= AccessTTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}
	// Access tokens must not outlive the grace window of the secret that signed them.
	grace := c.Secret.GracePeriod
	if grace == 0 {
		grace = c.Secret.RotationInterval
	}
	if c.Token.AccessTTL > grace {
		return errors.New("Token AccessTTL must be <= Secret GracePeriod")
	}

	// Revocation
	if c.Revocation.RedisPrefix == "" {
		return errors.New("Revocation RedisPrefix must be set")
	}
	if c.Revocation.DefaultTTL <= 0 {
		return errors.New("Revocation DefaultTTL must be > 0")
	}

	// External
	if c.External.Enabled && c.External.UserInfoURL == "" {
		return errors.New("External UserInfoURL is required when External is enabled")
	}
	if c.External.RequestsPerSecond < 0 || c.External.Burst < 0 {
		return errors.New("External throttle must be >= 0")
	}

	// Permission
	switch c.Permission.MaxBits {
	case 64, 128, 256, 512:
	default:
		return errors.New("Permission MaxBits must be 64, 128, 256, or 512")
	}
	if c.Permission.SuperAdminRole == "" {
		return errors.New("Permission SuperAdminRole must be set")
	}
	if c.Permission.WatchRoleFile && c.Permission.RoleFile == "" {
		return errors.New("Permission WatchRoleFile requires RoleFile")
	}

	// LastSeen
	if c.LastSeen.Enabled && c.LastSeen.BufferSize <= 0 {
		return errors.New("LastSeen BufferSize must be > 0")
	}

	// RateLimit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxFailures <= 0 {
			return errors.New("RateLimit MaxFailures must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
