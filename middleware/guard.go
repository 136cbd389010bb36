package middleware

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/adminauth/internal/requestctx"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/principal"
	"github.com/MrEthical07/adminauth/verifier"
)

// RotationHeader is set on responses whose token verified under the previous secret.
const RotationHeader = "X-Token-Rotation-Required"

type outcomeContextKey struct{}

// OutcomeFromContext returns the verification outcome stored by a guard.
func OutcomeFromContext(ctx context.Context) (*verifier.Outcome, bool) {
	out, ok := ctx.Value(outcomeContextKey{}).(*verifier.Outcome)
	return out, ok
}

// GuardOption configures a [Guard].
type GuardOption func(*Guard)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClientIPFunc overrides how the client IP is derived from a request.
func WithClientIPFunc(fn func(*http.Request) string) GuardOption {
	return func(g *Guard) {
		if fn != nil {
			g.clientIP = fn
		}
	}
}

// Guard builds HTTP middleware around an [Authority].
type Guard struct {
	authority Authority
	logger    *slog.Logger
	clientIP  func(*http.Request) string
}

// NewGuard returns a guard for a.
func NewGuard(a Authority, opts ...GuardOption) *Guard {
	g := &Guard{
		authority: a,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clientIP:  remoteIP,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireAuthenticated rejects requests without a valid bearer token.
func (g *Guard) RequireAuthenticated() func(http.Handler) http.Handler {
	return g.Require(Authenticated())
}

// OptionalAuthenticate attaches a principal when a valid token is present and
// lets every request through.
func (g *Guard) OptionalAuthenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bearerToken(r.Header.Get("Authorization")); !ok {
				next.ServeHTTP(w, r)
				return
			}
			r, d := g.authenticate(w, r)
			if !d.Allowed {
				g.logger.Debug("optional authentication ignored", "reason", d.Reason, "error", d.Err)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole requires an admin at or above minRole.
func (g *Guard) RequireRole(minRole string) func(http.Handler) http.Handler {
	return g.Require(Role(g.authority, minRole))
}

// RequirePermission requires resource:action.
func (g *Guard) RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return g.Require(Permission(g.authority, resource, action))
}

// RequireAnyPermission requires at least one of refs.
func (g *Guard) RequireAnyPermission(refs ...permission.Ref) func(http.Handler) http.Handler {
	return g.Require(AnyPermission(g.authority, refs...))
}

// RequireAllPermissions requires every one of refs.
func (g *Guard) RequireAllPermissions(refs ...permission.Ref) func(http.Handler) http.Handler {
	return g.Require(AllPermissions(g.authority, refs...))
}

// Require authenticates the request, then runs checks in order.
func (g *Guard) Require(checks ...Check) func(http.Handler) http.Handler {
	policy := Chain(append([]Check{Authenticated()}, checks...)...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, d := g.authenticate(w, r)
			if !d.Allowed {
				g.reject(w, r, d)
				return
			}
			p, _ := principal.FromContext(r.Context())
			if d := policy(r.Context(), p); !d.Allowed {
				g.reject(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) authenticate(w http.ResponseWriter, r *http.Request) (*http.Request, Decision) {
	if g.authority == nil {
		return r, Deny(ReasonUnauthenticated)
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return r, Deny(ReasonUnauthenticated)
	}

	ctx := requestctx.WithClientIP(r.Context(), g.clientIP(r))
	out, err := g.authority.Authenticate(ctx, token)
	if err != nil {
		return r, authFailure(err)
	}
	if out.RotationRequired {
		w.Header().Set(RotationHeader, "true")
	}
	ctx = principal.NewContext(ctx, out.Principal)
	ctx = context.WithValue(ctx, outcomeContextKey{}, out)
	return r.WithContext(ctx), Allow()
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, d Decision) {
	g.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "reason", d.Reason, "error", d.Err)
	status := d.Status()
	http.Error(w, strings.ToLower(http.StatusText(status)), status)
}

// BearerToken extracts the token from the request's Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
