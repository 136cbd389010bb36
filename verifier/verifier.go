package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/principal"
	"github.com/MrEthical07/adminauth/revocation"
	gjwt "github.com/golang-jwt/jwt/v5"
)

// AdminAccount is the directory view of an administrator.
type AdminAccount struct {
	ID     string
	Email  string
	Role   string
	Active bool
}

// AdminDirectory looks administrators up by id.
type AdminDirectory interface {
	GetAdminByID(ctx context.Context, id string) (*AdminAccount, error)
}

// ExternalUser is the provider's view of an end user.
type ExternalUser struct {
	ID    string
	Email string
}

// ExternalProvider confirms external tokens with the identity endpoint.
type ExternalProvider interface {
	GetExternalUserByToken(ctx context.Context, token string) (*ExternalUser, error)
}

// TokenVerifier verifies administrative access tokens.
type TokenVerifier interface {
	VerifyAccess(ctx context.Context, token string) (*jwt.Result, error)
}

// LastSeenRecorder receives successful admin authentications. It must not block.
type LastSeenRecorder interface {
	RecordLastSeen(adminID string)
}

// Path names the verification path that produced an outcome.
type Path string

const (
	PathAdmin    Path = "admin"
	PathExternal Path = "external"
)

// Outcome is a successful verification.
type Outcome struct {
	Principal        principal.Principal
	Path             Path
	NeedsRefresh     bool
	RotationRequired bool
}

// Option configures a [Verifier].
type Option func(*Verifier)

// WithExternalProvider enables the external path.
func WithExternalProvider(p ExternalProvider) Option {
	return func(v *Verifier) { v.external = p }
}

// WithLastSeen registers the last-seen recorder.
func WithLastSeen(r LastSeenRecorder) Option {
	return func(v *Verifier) { v.lastSeen = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithClock overrides the time source for external expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithObserver is called once per path attempt with its result.
func WithObserver(fn func(path Path, err error)) Option {
	return func(v *Verifier) { v.observe = fn }
}

// Verifier implements dual-mode bearer verification.
type Verifier struct {
	tokens    TokenVerifier
	directory AdminDirectory
	external  ExternalProvider
	lastSeen  LastSeenRecorder
	logger    *slog.Logger
	now       func() time.Time
	observe   func(Path, error)
}

// New builds a verifier. tokens and directory are required.
func New(tokens TokenVerifier, directory AdminDirectory, opts ...Option) (*Verifier, error) {
	if tokens == nil {
		return nil, errors.New("verifier: token verifier is nil")
	}
	if directory == nil {
		return nil, errors.New("verifier: admin directory is nil")
	}
	v := &Verifier{
		tokens:    tokens,
		directory: directory,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify resolves token to a principal. On failure the error is a *Failure.
func (v *Verifier) Verify(ctx context.Context, token string) (*Outcome, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &Failure{AdminErr: ErrMissingToken, ExternalErr: ErrMissingToken}
	}
	fp := revocation.Fingerprint(token)[:12]

	out, adminErr := v.verifyAdmin(ctx, token)
	v.report(PathAdmin, adminErr)
	if adminErr == nil {
		v.logger.Debug("bearer verified", "path", PathAdmin, "fp", fp,
			"subject", out.Principal.SubjectID(), "rotation_required", out.RotationRequired)
		return out, nil
	}
	v.logger.Debug("bearer rejected", "path", PathAdmin, "fp", fp, "reason", adminErr)

	out, extErr := v.verifyExternal(ctx, token)
	v.report(PathExternal, extErr)
	if extErr == nil {
		v.logger.Debug("bearer verified", "path", PathExternal, "fp", fp, "subject", out.Principal.SubjectID())
		return out, nil
	}
	v.logger.Debug("bearer rejected", "path", PathExternal, "fp", fp, "reason", extErr)

	return nil, &Failure{AdminErr: adminErr, ExternalErr: extErr}
}

func (v *Verifier) report(p Path, err error) {
	if v.observe != nil && !errors.Is(err, ErrExternalDisabled) {
		v.observe(p, err)
	}
}

func (v *Verifier) verifyAdmin(ctx context.Context, token string) (*Outcome, error) {
	res, err := v.tokens.VerifyAccess(ctx, token)
	if err != nil {
		return nil, err
	}
	id := res.Claims.RegisteredClaims.Subject
	acct, err := v.directory.GetAdminByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAdminNotFound
	}
	if !acct.Active {
		return nil, ErrInactiveAdmin
	}
	if v.lastSeen != nil {
		v.lastSeen.RecordLastSeen(acct.ID)
	}

	email := acct.Email
	if email == "" {
		email = res.Claims.Email
	}
	return &Outcome{
		Principal: &principal.Admin{
			ID:          acct.ID,
			Email:       email,
			Role:        acct.Role,
			Permissions: append([]string(nil), res.Claims.Permissions...),
		},
		Path:             PathAdmin,
		NeedsRefresh:     res.NeedsRefresh,
		RotationRequired: res.RotationRequired,
	}, nil
}

func (v *Verifier) verifyExternal(ctx context.Context, token string) (*Outcome, error) {
	if v.external == nil {
		return nil, ErrExternalDisabled
	}

	claims := gjwt.MapClaims{}
	if _, _, err := gjwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalMalformed, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing or invalid exp", ErrExternalMalformed)
	}
	if !v.now().Before(exp.Time) {
		return nil, ErrExternalExpired
	}

	user, err := v.external.GetExternalUserByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID == "" {
		return nil, ErrExternalRejected
	}
	return &Outcome{
		Principal: &principal.External{ID: user.ID, Email: user.Email},
		Path:      PathExternal,
	}, nil
}
