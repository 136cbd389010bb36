package adminauth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth/revocation"
	"github.com/MrEthical07/adminauth/secret"
)

// RotationRecord describes one completed rotation.
type RotationRecord = secret.Record

// SecurityStatus is the operational view of the signing-secret lifecycle and the denylist.
type SecurityStatus struct {
	Version           uint64
	HasPreviousSecret bool
	LastRotation      time.Time
	NextRotation      time.Time
	RotationInterval  time.Duration
	GracePeriod       time.Duration
	TimeUntilRotation time.Duration
	BlacklistedCount  int64
}

// BlacklistEntry is the result of denylisting one token.
type BlacklistEntry struct {
	Fingerprint string
	ExpiresAt   time.Time
	// Stored is false when the token had already expired and nothing was written.
	Stored bool
}

// SecurityStatus reports the current secret state and the number of live denylist entries.
func (e *Engine) SecurityStatus(ctx context.Context) (SecurityStatus, error) {
	st := e.secrets.Snapshot()
	if st == nil {
		return SecurityStatus{}, ErrEngineNotReady
	}
	count, err := e.denylist.Count(ctx)
	if err != nil {
		return SecurityStatus{}, storeErr(err)
	}
	return SecurityStatus{
		Version:           st.Version,
		HasPreviousSecret: st.HasPrevious(),
		LastRotation:      st.LastRotation,
		NextRotation:      st.NextRotation,
		RotationInterval:  st.RotationInterval,
		GracePeriod:       e.secrets.GracePeriod(),
		TimeUntilRotation: st.TimeUntilRotation(e.now()),
		BlacklistedCount:  count,
	}, nil
}

// ForceRotate rotates the signing secret immediately on behalf of actor. Tokens signed
// with the old current secret keep verifying under "previous" with rotation required.
func (e *Engine) ForceRotate(ctx context.Context, actor string) (RotationRecord, error) {
	if !e.ready.Load() {
		return RotationRecord{}, ErrEngineNotReady
	}
	e.logger.Warn("forced secret rotation requested", "actor", actor)
	return e.secrets.ForceRotate(ctx, actor)
}

// Blacklist denylists token until its own expiry, or for the default TTL when the
// expiry cannot be read. The token is not verified first.
func (e *Engine) Blacklist(ctx context.Context, actor, token string) (BlacklistEntry, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return BlacklistEntry{}, ErrInvalidFormat
	}
	now := e.now()
	exp, err := e.codec.ExpiresAt(token)
	if err != nil {
		exp = now.Add(e.config.Revocation.DefaultTTL)
	}
	entry := BlacklistEntry{
		Fingerprint: revocation.Fingerprint(token),
		ExpiresAt:   exp,
		Stored:      exp.Sub(now) >= time.Millisecond,
	}
	if err := e.denylist.RevokeFingerprint(ctx, entry.Fingerprint, exp); err != nil {
		e.emitAudit(ctx, AuditTokenBlacklisted, false, actor, "", err, nil)
		return BlacklistEntry{}, storeErr(err)
	}
	if entry.Stored {
		e.metrics.Inc(MetricBlacklisted)
	}
	e.emitAudit(ctx, AuditTokenBlacklisted, true, actor, "", nil, func() map[string]string {
		return map[string]string{
			"fingerprint": entry.Fingerprint,
			"expires_at":  exp.UTC().Format(time.RFC3339),
			"stored":      strconv.FormatBool(entry.Stored),
		}
	})
	return entry, nil
}

// CleanupBlacklist prunes expired entries from the denylist index and returns how many were removed.
func (e *Engine) CleanupBlacklist(ctx context.Context, actor string) (int64, error) {
	n, err := e.denylist.Cleanup(ctx)
	if err != nil {
		e.emitAudit(ctx, AuditBlacklistCleanup, false, actor, "", err, nil)
		return 0, storeErr(err)
	}
	e.metrics.Add(MetricBlacklistCleaned, uint64(n))
	e.emitAudit(ctx, AuditBlacklistCleanup, true, actor, "", nil, func() map[string]string {
		return map[string]string{"removed": strconv.FormatInt(n, 10)}
	})
	e.logger.Info("denylist cleanup", "actor", actor, "removed", n)
	return n, nil
}

// SigningSecretVersion returns the version of the current signing secret, or 0 before Initialize.
func (e *Engine) SigningSecretVersion() uint64 {
	st := e.secrets.Snapshot()
	if st == nil {
		return 0
	}
	return st.Version
}
