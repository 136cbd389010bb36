package adminhttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/middleware"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/gorilla/mux"
)

// Engine is the subset of *adminauth.Engine the routes need.
type Engine interface {
	middleware.Authority
	SecurityStatus(ctx context.Context) (adminauth.SecurityStatus, error)
	ForceRotate(ctx context.Context, actor string) (adminauth.RotationRecord, error)
	Blacklist(ctx context.Context, actor, token string) (adminauth.BlacklistEntry, error)
	CleanupBlacklist(ctx context.Context, actor string) (int64, error)
	PermissionMatrix() permission.Matrix
	SuperAdminRole() string
	Refresh(ctx context.Context, refreshToken string) (*adminauth.TokenPair, error)
	Logout(ctx context.Context, token string) error
}

// Option configures the router.
type Option func(*API)

// WithLogger sets the structured logger used for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithGuardOptions passes options to the underlying guard.
func WithGuardOptions(opts ...middleware.GuardOption) Option {
	return func(a *API) { a.guardOpts = append(a.guardOpts, opts...) }
}

// API holds the handlers.
type API struct {
	engine    Engine
	guard     *middleware.Guard
	logger    *slog.Logger
	guardOpts []middleware.GuardOption
}

// NewRouter builds the administrative router.
//
//	GET  /security/status             security:read
//	POST /security/rotate             super admin only
//	POST /security/blacklist          security:write
//	POST /security/cleanup-blacklist  security:write
//	GET  /security/permissions        security:read
//	POST /auth/refresh                refresh token in body
//	POST /auth/logout                 any authenticated admin
func NewRouter(engine Engine, opts ...Option) *mux.Router {
	a := &API{
		engine: engine,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.guard = middleware.NewGuard(engine, append([]middleware.GuardOption{middleware.WithLogger(a.logger)}, a.guardOpts...)...)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed)
	})

	read := a.guard.Require(middleware.Admin(), middleware.Permission(engine, "security", "read"))
	write := a.guard.Require(middleware.Admin(), middleware.Permission(engine, "security", "write"))
	top := a.guard.Require(middleware.Admin(), middleware.Role(engine, engine.SuperAdminRole()))

	sec := r.PathPrefix("/security").Subrouter()
	sec.Handle("/status", read(a.Status())).Methods(http.MethodGet)
	sec.Handle("/permissions", read(a.Permissions())).Methods(http.MethodGet)
	sec.Handle("/rotate", top(a.Rotate())).Methods(http.MethodPost)
	sec.Handle("/blacklist", write(a.Blacklist())).Methods(http.MethodPost)
	sec.Handle("/cleanup-blacklist", write(a.CleanupBlacklist())).Methods(http.MethodPost)

	auth := r.PathPrefix("/auth").
		Methods(http.MethodPost).
		Subrouter()
	auth.Handle("/refresh", a.Refresh())
	auth.Handle("/logout", a.guard.RequireAuthenticated()(a.Logout()))

	return r
}
