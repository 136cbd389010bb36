package adminauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/adminauth/internal/audit"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/revocation"
	"github.com/MrEthical07/adminauth/secret"
	"github.com/MrEthical07/adminauth/verifier"
)

// Engine is the authentication and authorization core. Build one with [New].
type Engine struct {
	config    Config
	logger    *slog.Logger
	now       func() time.Time
	secrets   *secret.Manager
	denylist  *revocation.RedisStore
	codec     *jwt.Codec
	verifier  *verifier.Verifier
	resolver  *permission.Resolver
	directory verifier.AdminDirectory
	limiter   *rate.Limiter
	lastSeen  *lastSeenUpdater
	audit     *audit.Dispatcher
	metrics   *Metrics

	ready atomic.Bool
}

// Initialize loads or seeds the signing-secret state and rotates immediately if it is
// overdue. It must succeed before tokens can be issued or verified.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.secrets.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize signing secret: %w", err)
	}
	e.ready.Store(true)
	return nil
}

// Run drives scheduled rotation and grace retirement until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.secrets.Run(ctx)
}

// WatchRoleFile hot-reloads the YAML role table at path into the resolver. It
// returns once the watch is established; reloading stops when ctx is cancelled.
// A file naming a different super admin role is rejected.
func (e *Engine) WatchRoleFile(ctx context.Context, path string) error {
	return permission.WatchRoleFile(ctx, path, e.resolver, e.logger.With("component", "role_file"), func(err error) {
		if err != nil {
			e.emitAudit(ctx, AuditRoleTableReloaded, false, "", "", err, nil)
			return
		}
		e.metrics.Inc(MetricRoleTableReloaded)
		e.emitAudit(ctx, AuditRoleTableReloaded, true, "", "", nil, func() map[string]string {
			return map[string]string{"path": path}
		})
	})
}

// Close flushes pending last-seen updates and audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.lastSeen.Close()
	if e.audit != nil {
		e.audit.Close()
	}
}

// Authenticate resolves a bearer token to a principal on the administrative or the
// external path. Failed attempts count against the caller's IP when throttling is on.
func (e *Engine) Authenticate(ctx context.Context, token string) (*verifier.Outcome, error) {
	if !e.ready.Load() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	ip := clientIPFromContext(ctx)

	if err := e.limiter.Check(ctx, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metrics.Inc(MetricRateLimitHit)
			return nil, ErrRateLimited
		}
		e.logger.Warn("failed-auth limiter unavailable", "error", err)
	}

	out, err := e.verifier.Verify(ctx, token)
	e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	if err != nil {
		e.metrics.Inc(MetricVerifyUnauthenticated)
		if errors.Is(err, ErrRevoked) {
			e.metrics.Inc(MetricRevokedHit)
		}
		if !errors.Is(err, ErrStoreUnavailable) {
			if lerr := e.limiter.RecordFailure(ctx, ip); lerr != nil {
				e.logger.Warn("failed-auth limiter unavailable", "error", lerr)
			}
		}
		return nil, err
	}
	if out.RotationRequired {
		e.metrics.Inc(MetricVerifyPreviousSecret)
	}
	return out, nil
}

// MetricsSnapshot returns a copy of every engine counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) observeVerification(path verifier.Path, err error) {
	switch {
	case path == verifier.PathAdmin && err == nil:
		e.metrics.Inc(MetricVerifyAdminSuccess)
	case path == verifier.PathAdmin:
		e.metrics.Inc(MetricVerifyAdminFailure)
	case err == nil:
		e.metrics.Inc(MetricVerifyExternalSuccess)
	default:
		e.metrics.Inc(MetricVerifyExternalFailure)
	}
}

// detachedContext bounds audit emission that has no request to inherit a deadline from.
func (e *Engine) detachedContext() (context.Context, context.CancelFunc) {
	timeout := e.config.Audit.SinkTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (e *Engine) revocationIncident(err error) {
	e.metrics.Inc(MetricRevocationStoreIncident)
	ctx, cancel := e.detachedContext()
	defer cancel()
	e.emitAudit(ctx, AuditRevocationUnavailable, false, "", "", err, func() map[string]string {
		return map[string]string{"fail_open": strconv.FormatBool(e.config.Revocation.FailOpen)}
	})
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	actorID string,
	subjectID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		ActorID:   actorID,
		SubjectID: subjectID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}
	e.audit.Emit(ctx, event)
}

// rotationObserver turns secret lifecycle notifications into audit events and metrics.
type rotationObserver struct {
	e *Engine
}

func (o rotationObserver) Rotated(rec secret.Record) {
	o.e.metrics.Inc(MetricRotationSuccess)
	level := slog.LevelInfo
	if rec.Forced {
		level = slog.LevelWarn
	}
	o.e.logger.Log(context.Background(), level, "signing secret rotated",
		"rotation_id", rec.ID, "version", rec.Version, "forced", rec.Forced, "actor", rec.Actor)
	ctx, cancel := o.e.detachedContext()
	defer cancel()
	o.e.emitAudit(ctx, AuditSecretRotated, true, rec.Actor, "", nil, func() map[string]string {
		return map[string]string{
			"rotation_id":   rec.ID,
			"version":       strconv.FormatUint(rec.Version, 10),
			"forced":        strconv.FormatBool(rec.Forced),
			"next_rotation": rec.NextRotation.UTC().Format(time.RFC3339),
		}
	})
}

func (o rotationObserver) RotationFailed(forced bool, actor string, err error) {
	o.e.metrics.Inc(MetricRotationFailure)
	ctx, cancel := o.e.detachedContext()
	defer cancel()
	o.e.emitAudit(ctx, AuditSecretRotationFailed, false, actor, "", err, func() map[string]string {
		return map[string]string{"forced": strconv.FormatBool(forced)}
	})
}

func (o rotationObserver) Retired(version uint64) {
	o.e.metrics.Inc(MetricSecretRetired)
	ctx, cancel := o.e.detachedContext()
	defer cancel()
	o.e.emitAudit(ctx, AuditSecretRetired, true, "", "", nil, func() map[string]string {
		return map[string]string{"version": strconv.FormatUint(version, 10)}
	})
}

// timedRevocation bounds every denylist lookup made on the request path.
type timedRevocation struct {
	store   *revocation.RedisStore
	timeout time.Duration
}

func (t timedRevocation) IsRevoked(ctx context.Context, token string) (bool, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.store.IsRevoked(ctx, token)
}

// directoryRoles answers role lookups for the management hierarchy from the directory.
type directoryRoles struct {
	dir verifier.AdminDirectory
}

func (d directoryRoles) RoleOf(ctx context.Context, adminID string) (string, error) {
	acct, err := d.dir.GetAdminByID(ctx, adminID)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrAdminNotFound
	}
	return acct.Role, nil
}
