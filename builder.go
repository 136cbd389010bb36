package adminauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/adminauth/internal"
	"github.com/MrEthical07/adminauth/internal/audit"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/revocation"
	"github.com/MrEthical07/adminauth/secret"
	"github.com/MrEthical07/adminauth/verifier"
	"github.com/redis/go-redis/v9"
)

// LastSeenStore persists the time an administrator was last authenticated.
type LastSeenStore interface {
	TouchLastSeen(ctx context.Context, adminID string, at time.Time) error
}

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory  verifier.AdminDirectory
	lastSeen   LastSeenStore
	grants     permission.GrantSource
	table      *permission.Table
	external   verifier.ExternalProvider
	httpClient *http.Client

	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the store for secret state, the denylist and the failure limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the administrator directory. If it also implements
// [LastSeenStore] or [permission.GrantSource] those are used unless set explicitly.
func (b *Builder) WithDirectory(d verifier.AdminDirectory) *Builder {
	b.directory = d
	return b
}

func (b *Builder) WithLastSeenStore(s LastSeenStore) *Builder {
	b.lastSeen = s
	return b
}

func (b *Builder) WithGrantSource(src permission.GrantSource) *Builder {
	b.grants = src
	return b
}

// WithRoleTable sets the role table. Without it the built-in marketplace table is used.
func (b *Builder) WithRoleTable(t *permission.Table) *Builder {
	b.table = t
	return b
}

// WithExternalProvider overrides the HTTP identity provider built from Config.External.
func (b *Builder) WithExternalProvider(p verifier.ExternalProvider) *Builder {
	b.external = p
	return b
}

// WithHTTPClient sets the client used by the built-in identity provider.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now in every component. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. It performs no I/O;
// call [Engine.Initialize] before serving requests.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineConfigInvalid, err)
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.directory == nil {
		return nil, errors.New("admin directory is required")
	}

	cfg := b.config
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		config:    cfg,
		logger:    logger,
		now:       now,
		directory: b.directory,
		metrics:   NewMetrics(cfg.Metrics),
	}

	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, b.auditSink, internal.NewID)

	var err error
	e.secrets, err = secret.NewManager(
		secret.NewRedisStore(b.redis, cfg.Secret.RedisKey),
		secret.Config{
			Seed:             []byte(cfg.Secret.Seed),
			RotationInterval: cfg.Secret.RotationInterval,
			GracePeriod:      cfg.Secret.GracePeriod,
			StoreTimeout:     cfg.Secret.StoreTimeout,
			RotationTimeout:  cfg.Secret.RotationTimeout,
			CheckInterval:    cfg.Secret.CheckInterval,
		},
		secret.WithLogger(logger.With("component", "secret")),
		secret.WithObserver(rotationObserver{e: e}),
		secret.WithClock(now),
	)
	if err != nil {
		return nil, err
	}

	e.denylist = revocation.NewRedisStore(b.redis, cfg.Revocation.RedisPrefix, cfg.Revocation.DefaultTTL,
		revocation.WithClock(now))

	e.codec, err = jwt.NewCodec(jwt.Config{
		Issuer:             cfg.Token.Issuer,
		AccessAudience:     cfg.Token.AccessAudience,
		RefreshAudience:    cfg.Token.RefreshAudience,
		AccessTTL:          cfg.Token.AccessTTL,
		RefreshTTL:         cfg.Token.RefreshTTL,
		Leeway:             cfg.Token.Leeway,
		MaxFutureIAT:       cfg.Token.MaxFutureIAT,
		FailOpenRevocation: cfg.Revocation.FailOpen,
	}, e.secrets, timedRevocation{store: e.denylist, timeout: cfg.Revocation.StoreTimeout},
		jwt.WithClock(now),
		jwt.WithLogger(logger.With("component", "token")),
		jwt.WithIncidentHook(e.revocationIncident),
	)
	if err != nil {
		return nil, err
	}

	table := b.table
	if table == nil {
		table, err = permission.NewTable(cfg.Permission.MaxBits, permission.DefaultPermissions(),
			permission.DefaultRoles(), cfg.Permission.SuperAdminRole)
		if err != nil {
			return nil, err
		}
	}
	if table.SuperAdminRole() != cfg.Permission.SuperAdminRole {
		return nil, fmt.Errorf("%w: role table super admin %q does not match config %q",
			ErrEngineConfigInvalid, table.SuperAdminRole(), cfg.Permission.SuperAdminRole)
	}
	grants := b.grants
	if grants == nil {
		grants, _ = b.directory.(permission.GrantSource)
	}
	resolverOpts := []permission.ResolverOption{
		permission.WithRoleLookup(directoryRoles{dir: b.directory}),
		permission.WithResolverLogger(logger.With("component", "permission")),
	}
	if grants != nil {
		resolverOpts = append(resolverOpts, permission.WithGrantSource(grants))
	}
	e.resolver, err = permission.NewResolver(table, resolverOpts...)
	if err != nil {
		return nil, err
	}

	verifierOpts := []verifier.Option{
		verifier.WithLogger(logger.With("component", "verifier")),
		verifier.WithClock(now),
		verifier.WithObserver(e.observeVerification),
	}

	if cfg.LastSeen.Enabled {
		store := b.lastSeen
		if store == nil {
			store, _ = b.directory.(LastSeenStore)
		}
		if store != nil {
			e.lastSeen = newLastSeenUpdater(store, cfg.LastSeen, now, e.metrics, logger.With("component", "last_seen"))
			verifierOpts = append(verifierOpts, verifier.WithLastSeen(e.lastSeen))
		}
	}

	external := b.external
	if external == nil && cfg.External.Enabled {
		external, err = verifier.NewHTTPProvider(verifier.HTTPProviderConfig{
			UserInfoURL:       cfg.External.UserInfoURL,
			Timeout:           cfg.External.Timeout,
			RequestsPerSecond: cfg.External.RequestsPerSecond,
			Burst:             cfg.External.Burst,
		}, b.httpClient)
		if err != nil {
			return nil, err
		}
	}
	if external != nil {
		verifierOpts = append(verifierOpts, verifier.WithExternalProvider(external))
	}

	e.verifier, err = verifier.New(e.codec, b.directory, verifierOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit.Enabled {
		e.limiter = rate.New(b.redis, rate.Config{
			MaxFailures: cfg.RateLimit.MaxFailures,
			Window:      cfg.RateLimit.Window,
		})
	}

	b.built = true
	return e, nil
}
