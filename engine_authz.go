package adminauth

import (
	"context"

	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/principal"
)

// adminSubject maps p onto the resolver. Decisions read the live role table and
// grants, never the permission snapshot carried in the token.
func adminSubject(p principal.Principal) (permission.Subject, bool) {
	a, ok := p.(*principal.Admin)
	if !ok || a == nil {
		return permission.Subject{}, false
	}
	return permission.Subject{ID: a.ID, Role: a.Role}, true
}

func (e *Engine) decided(ok bool, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	if ok {
		e.metrics.Inc(MetricAuthzAllow)
	} else {
		e.metrics.Inc(MetricAuthzDeny)
	}
	return ok, nil
}

// HasPermission reports whether p holds resource:action. External principals hold nothing.
func (e *Engine) HasPermission(ctx context.Context, p principal.Principal, resource, action string) (bool, error) {
	s, ok := adminSubject(p)
	if !ok {
		return e.decided(false, nil)
	}
	return e.decided(e.resolver.HasPermission(ctx, s, resource, action))
}

// HasAnyPermission reports whether p holds at least one of refs. An empty list is false.
func (e *Engine) HasAnyPermission(ctx context.Context, p principal.Principal, refs []permission.Ref) (bool, error) {
	s, ok := adminSubject(p)
	if !ok {
		return e.decided(false, nil)
	}
	return e.decided(e.resolver.HasAnyPermission(ctx, s, refs))
}

// HasAllPermissions reports whether p holds every one of refs. An empty list is true
// for administrators.
func (e *Engine) HasAllPermissions(ctx context.Context, p principal.Principal, refs []permission.Ref) (bool, error) {
	s, ok := adminSubject(p)
	if !ok {
		return e.decided(false, nil)
	}
	return e.decided(e.resolver.HasAllPermissions(ctx, s, refs))
}

// RequireRole reports whether p's role level is at least minRole's.
func (e *Engine) RequireRole(p principal.Principal, minRole string) (bool, error) {
	s, ok := adminSubject(p)
	if !ok {
		return e.decided(false, nil)
	}
	return e.decided(e.resolver.RequireRole(s, minRole))
}

// Authorize is HasPermission returning a typed error: ErrNotAdmin for external or
// anonymous principals and ErrInsufficientPermission when the permission is missing.
func (e *Engine) Authorize(ctx context.Context, p principal.Principal, resource, action string) error {
	if _, ok := adminSubject(p); !ok {
		e.metrics.Inc(MetricAuthzDeny)
		return ErrNotAdmin
	}
	ok, err := e.HasPermission(ctx, p, resource, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientPermission
	}
	return nil
}

// AuthorizeRole is RequireRole returning ErrInsufficientRole on denial.
func (e *Engine) AuthorizeRole(p principal.Principal, minRole string) error {
	if _, ok := adminSubject(p); !ok {
		e.metrics.Inc(MetricAuthzDeny)
		return ErrNotAdmin
	}
	ok, err := e.RequireRole(p, minRole)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientRole
	}
	return nil
}

// CanManage reports whether managerID may administer targetID. The super admin
// manages anyone; otherwise the manager's level must be strictly higher and
// nobody manages themselves.
func (e *Engine) CanManage(ctx context.Context, managerID, targetID string) (bool, error) {
	return e.decided(e.resolver.CanManage(ctx, managerID, targetID))
}

// AuthorizeManage is CanManage returning ErrCannotManage on denial.
func (e *Engine) AuthorizeManage(ctx context.Context, managerID, targetID string) error {
	ok, err := e.CanManage(ctx, managerID, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCannotManage
	}
	return nil
}

// EffectivePermissions returns the permission names p currently holds.
func (e *Engine) EffectivePermissions(ctx context.Context, p principal.Principal) ([]string, error) {
	s, ok := adminSubject(p)
	if !ok {
		return nil, nil
	}
	return e.resolver.EffectiveNames(ctx, s)
}

// PermissionMatrix projects the role table into a role by permission grid.
func (e *Engine) PermissionMatrix() permission.Matrix {
	return e.resolver.Matrix()
}

// SuperAdminRole returns the name of the highest role.
func (e *Engine) SuperAdminRole() string {
	return e.resolver.Table().SuperAdminRole()
}
