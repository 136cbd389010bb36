package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/principal"
	"github.com/MrEthical07/adminauth/verifier"
)

// Reason explains a denial.
type Reason string

const (
	ReasonUnauthenticated        Reason = "unauthenticated"
	ReasonNotAdmin               Reason = "not_admin"
	ReasonInsufficientRole       Reason = "insufficient_role"
	ReasonInsufficientPermission Reason = "insufficient_permission"
	ReasonRateLimited            Reason = "rate_limited"
	ReasonUnavailable            Reason = "unavailable"
)

// Decision is the result of a [Check].
type Decision struct {
	Allowed bool
	Reason  Reason
	Err     error
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision.
func Deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// DenyErr returns a denying decision that keeps the cause for logging.
func DenyErr(reason Reason, err error) Decision {
	return Decision{Reason: reason, Err: err}
}

// Status maps the decision to an HTTP status code.
func (d Decision) Status() int {
	switch {
	case d.Allowed:
		return http.StatusOK
	case d.Reason == ReasonUnauthenticated:
		return http.StatusUnauthorized
	case d.Reason == ReasonRateLimited:
		return http.StatusTooManyRequests
	case d.Reason == ReasonUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusForbidden
	}
}

// Authority authenticates bearer tokens and answers authorization queries.
// *adminauth.Engine implements it.
type Authority interface {
	Authenticate(ctx context.Context, token string) (*verifier.Outcome, error)
	HasPermission(ctx context.Context, p principal.Principal, resource, action string) (bool, error)
	HasAnyPermission(ctx context.Context, p principal.Principal, refs []permission.Ref) (bool, error)
	HasAllPermissions(ctx context.Context, p principal.Principal, refs []permission.Ref) (bool, error)
	RequireRole(p principal.Principal, minRole string) (bool, error)
}

// Check evaluates one policy rule for p. p is nil for anonymous requests.
type Check func(ctx context.Context, p principal.Principal) Decision

// Chain runs checks in order and returns the first denial. An empty chain allows.
func Chain(checks ...Check) Check {
	return func(ctx context.Context, p principal.Principal) Decision {
		for _, c := range checks {
			if d := c(ctx, p); !d.Allowed {
				return d
			}
		}
		return Allow()
	}
}

// Authenticated allows any principal.
func Authenticated() Check {
	return func(_ context.Context, p principal.Principal) Decision {
		if p == nil {
			return Deny(ReasonUnauthenticated)
		}
		return Allow()
	}
}

// Admin allows administrative principals only.
func Admin() Check {
	return func(_ context.Context, p principal.Principal) Decision {
		if p == nil {
			return Deny(ReasonUnauthenticated)
		}
		if p.Kind() != principal.KindAdmin {
			return Deny(ReasonNotAdmin)
		}
		return Allow()
	}
}

// Role allows admins whose role level is at least minRole's.
func Role(a Authority, minRole string) Check {
	return authorize(ReasonInsufficientRole, func(_ context.Context, p principal.Principal) (bool, error) {
		return a.RequireRole(p, minRole)
	})
}

// Permission allows admins holding resource:action.
func Permission(a Authority, resource, action string) Check {
	return authorize(ReasonInsufficientPermission, func(ctx context.Context, p principal.Principal) (bool, error) {
		return a.HasPermission(ctx, p, resource, action)
	})
}

// AnyPermission allows admins holding at least one of refs.
func AnyPermission(a Authority, refs ...permission.Ref) Check {
	return authorize(ReasonInsufficientPermission, func(ctx context.Context, p principal.Principal) (bool, error) {
		return a.HasAnyPermission(ctx, p, refs)
	})
}

// AllPermissions allows admins holding every one of refs.
func AllPermissions(a Authority, refs ...permission.Ref) Check {
	return authorize(ReasonInsufficientPermission, func(ctx context.Context, p principal.Principal) (bool, error) {
		return a.HasAllPermissions(ctx, p, refs)
	})
}

func authorize(reason Reason, query func(context.Context, principal.Principal) (bool, error)) Check {
	admin := Admin()
	return func(ctx context.Context, p principal.Principal) Decision {
		if d := admin(ctx, p); !d.Allowed {
			return d
		}
		ok, err := query(ctx, p)
		if err != nil {
			if errors.Is(err, permission.ErrUnknownRole) {
				return DenyErr(reason, err)
			}
			return DenyErr(ReasonUnavailable, err)
		}
		if !ok {
			return Deny(reason)
		}
		return Allow()
	}
}

// authFailure classifies an authentication error.
func authFailure(err error) Decision {
	switch {
	case errors.Is(err, rate.ErrRateLimited):
		return DenyErr(ReasonRateLimited, err)
	case errors.Is(err, jwt.ErrStoreUnavailable):
		return DenyErr(ReasonUnavailable, err)
	default:
		return DenyErr(ReasonUnauthenticated, err)
	}
}
