package permission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

// ErrNoRoleLookup is returned by [Resolver.CanManage] when no lookup is configured.
var ErrNoRoleLookup = errors.New("permission: role lookup not configured")

// Subject is the identity a permission query is asked about.
type Subject struct {
	ID   string
	Role string
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithGrantSource enables per-admin overrides.
func WithGrantSource(src GrantSource) ResolverOption {
	return func(r *Resolver) { r.grants = src }
}

// WithRoleLookup enables id-based management checks.
func WithRoleLookup(l RoleLookup) ResolverOption {
	return func(r *Resolver) { r.roles = l }
}

// WithResolverLogger sets the structured logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver answers authorization queries against the current [Table].
// The table can be replaced at runtime with [Resolver.Swap]; each query
// uses a single table snapshot.
type Resolver struct {
	table  atomic.Pointer[Table]
	grants GrantSource
	roles  RoleLookup
	logger *slog.Logger
}

// NewResolver returns a resolver over t.
func NewResolver(t *Table, opts ...ResolverOption) (*Resolver, error) {
	if t == nil {
		return nil, errors.New("permission: table is nil")
	}
	r := &Resolver{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	r.table.Store(t)
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Table returns the current table.
func (r *Resolver) Table() *Table {
	return r.table.Load()
}

// Swap atomically replaces the table.
func (r *Resolver) Swap(t *Table) {
	if t == nil {
		return
	}
	r.table.Store(t)
}

// Effective returns (role ∪ allow) − deny for s.
func (r *Resolver) Effective(ctx context.Context, s Subject) (*Mask, error) {
	return r.effective(ctx, r.table.Load(), s)
}

func (r *Resolver) effective(ctx context.Context, t *Table, s Subject) (*Mask, error) {
	reg := t.Registry()
	if t.IsSuperAdmin(s.Role) {
		return reg.FullMask(), nil
	}

	mask := t.RoleMask(s.Role)
	if r.grants == nil || s.ID == "" {
		return mask, nil
	}
	grants, err := r.grants.GetUserPermissionGrants(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("load grants for %s: %w", s.ID, err)
	}

	denied := reg.NewMask()
	for _, g := range grants {
		bit, ok := reg.Bit(g.Permission.Name())
		if !ok {
			r.logger.Warn("grant references unknown permission", "admin_id", s.ID, "permission", g.Permission.Name())
			continue
		}
		if g.Effect == EffectDeny {
			denied.Set(bit)
			continue
		}
		mask.Set(bit)
	}
	mask.Subtract(denied)
	return mask, nil
}

// EffectiveNames returns the effective set as "resource:action" names.
func (r *Resolver) EffectiveNames(ctx context.Context, s Subject) ([]string, error) {
	t := r.table.Load()
	mask, err := r.effective(ctx, t, s)
	if err != nil {
		return nil, err
	}
	return t.Registry().Names(mask), nil
}

// HasPermission reports whether s may perform action on resource.
func (r *Resolver) HasPermission(ctx context.Context, s Subject, resource, action string) (bool, error) {
	return r.HasAllPermissions(ctx, s, []Ref{R(resource, action)})
}

// HasAnyPermission reports whether s holds at least one of refs. An empty
// list is never satisfied.
func (r *Resolver) HasAnyPermission(ctx context.Context, s Subject, refs []Ref) (bool, error) {
	if len(refs) == 0 {
		return false, nil
	}
	t := r.table.Load()
	if t.IsSuperAdmin(s.Role) {
		return true, nil
	}
	mask, err := r.effective(ctx, t, s)
	if err != nil {
		return false, err
	}
	for _, ref := range refs {
		if bit, ok := t.Registry().Bit(ref.Name()); ok && mask.Has(bit) {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether s holds every one of refs. An empty
// list is always satisfied.
func (r *Resolver) HasAllPermissions(ctx context.Context, s Subject, refs []Ref) (bool, error) {
	if len(refs) == 0 {
		return true, nil
	}
	t := r.table.Load()
	if t.IsSuperAdmin(s.Role) {
		return true, nil
	}
	mask, err := r.effective(ctx, t, s)
	if err != nil {
		return false, err
	}
	for _, ref := range refs {
		bit, ok := t.Registry().Bit(ref.Name())
		if !ok || !mask.Has(bit) {
			return false, nil
		}
	}
	return true, nil
}

// RequireRole reports whether s's level is at least minRole's level.
func (r *Resolver) RequireRole(s Subject, minRole string) (bool, error) {
	return r.table.Load().AtLeast(s.Role, minRole)
}

// CanManage reports whether managerID may administer targetID. The super admin
// manages anyone, itself included. Nobody else manages themselves.
func (r *Resolver) CanManage(ctx context.Context, managerID, targetID string) (bool, error) {
	if managerID == "" {
		return false, nil
	}
	if r.roles == nil {
		return false, ErrNoRoleLookup
	}
	managerRole, err := r.roles.RoleOf(ctx, managerID)
	if err != nil {
		return false, err
	}
	t := r.table.Load()
	if t.IsSuperAdmin(managerRole) {
		return true, nil
	}
	if managerID == targetID {
		return false, nil
	}
	targetRole, err := r.roles.RoleOf(ctx, targetID)
	if err != nil {
		return false, err
	}
	return t.CanManageRoles(managerRole, targetRole), nil
}

// Matrix projects the current table.
func (r *Resolver) Matrix() Matrix {
	return r.table.Load().Matrix()
}
