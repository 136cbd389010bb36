package adminauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/revocation"
	"github.com/MrEthical07/adminauth/verifier"
)

// TokenPair is an access and refresh token issued together.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// IssueTokens signs a fresh pair for an active administrator. Credentials are
// checked by the caller before this is invoked.
func (e *Engine) IssueTokens(ctx context.Context, adminID string) (*TokenPair, error) {
	if !e.ready.Load() {
		return nil, ErrEngineNotReady
	}
	acct, err := e.activeAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return e.issue(ctx, acct)
}

// Refresh exchanges a refresh token for a new pair signed with the current secret.
// The administrator is re-read and permissions re-resolved, and the presented refresh
// token is claimed on the denylist before the new pair is signed. Of concurrent
// refreshes with the same token only one succeeds; the rest get ErrRevoked.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready.Load() {
		return nil, ErrEngineNotReady
	}
	refreshToken = strings.TrimSpace(refreshToken)
	res, err := e.codec.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, err
	}
	subject := res.Claims.RegisteredClaims.Subject

	acct, err := e.activeAdmin(ctx, subject)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefresh, false, subject, subject, err, nil)
		return nil, err
	}

	exp := e.now().Add(e.codec.RefreshTTL())
	if res.Claims.ExpiresAt != nil {
		exp = res.Claims.ExpiresAt.Time
	}
	claimed, err := e.denylist.Claim(ctx, revocation.Fingerprint(refreshToken), exp)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, storeErr(err)
	}
	if !claimed {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefresh, false, acct.ID, acct.ID, ErrRevoked, nil)
		return nil, ErrRevoked
	}

	pair, err := e.issue(ctx, acct)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, err
	}
	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditRefresh, true, acct.ID, acct.ID, nil, func() map[string]string {
		return map[string]string{"rotation_required": strconv.FormatBool(res.RotationRequired)}
	})
	return pair, nil
}

// Logout denylists a valid access or refresh token for the rest of its lifetime.
// Logging out an already revoked token succeeds.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if !e.ready.Load() {
		return ErrEngineNotReady
	}
	token = strings.TrimSpace(token)
	res, err := e.codec.Verify(ctx, token)
	if errors.Is(err, ErrRevoked) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := e.revoke(ctx, token); err != nil {
		return err
	}
	id := res.Claims.RegisteredClaims.Subject
	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, AuditLogout, true, id, id, nil, func() map[string]string {
		return map[string]string{"token_type": string(res.Type)}
	})
	return nil
}

func (e *Engine) activeAdmin(ctx context.Context, adminID string) (*verifier.AdminAccount, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, ErrAdminNotFound
	}
	acct, err := e.directory.GetAdminByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAdminNotFound
	}
	if !acct.Active {
		return nil, ErrInactiveAdmin
	}
	return acct, nil
}

func (e *Engine) issue(ctx context.Context, acct *verifier.AdminAccount) (*TokenPair, error) {
	perms, err := e.resolver.EffectiveNames(ctx, permission.Subject{ID: acct.ID, Role: acct.Role})
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	subject := jwt.Subject{ID: acct.ID, Email: acct.Email, Role: acct.Role, Permissions: perms}

	access, err := e.codec.SignAccess(subject)
	if err != nil {
		return nil, err
	}
	refresh, err := e.codec.SignRefresh(subject)
	if err != nil {
		return nil, err
	}
	now := e.now()
	e.metrics.Inc(MetricTokensIssued)
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		AccessExpiresAt:  now.Add(e.codec.AccessTTL()),
		RefreshExpiresAt: now.Add(e.codec.RefreshTTL()),
	}, nil
}

// revoke denylists token until its own expiry.
func (e *Engine) revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	exp, err := e.codec.ExpiresAt(token)
	if err != nil {
		return err
	}
	return storeErr(e.denylist.RevokeFingerprint(ctx, revocation.Fingerprint(token), exp))
}

// storeErr maps denylist transport failures onto the retryable ErrStoreUnavailable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, revocation.ErrStoreUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
