package permission

import (
	"context"
	"time"
)

// Effect is the direction of a per-admin override.
type Effect string

const (
	// EffectAllow adds a permission on top of the role.
	EffectAllow Effect = "allow"
	// EffectDeny removes a permission the role would otherwise grant.
	EffectDeny Effect = "deny"
)

// Grant is a per-admin permission override.
type Grant struct {
	AdminID    string
	Permission Permission
	Effect     Effect
	GrantedBy  string
	GrantedAt  time.Time
}

// GrantSource returns the overrides recorded for an admin.
type GrantSource interface {
	GetUserPermissionGrants(ctx context.Context, adminID string) ([]Grant, error)
}

// RoleLookup returns the current role of an admin.
type RoleLookup interface {
	RoleOf(ctx context.Context, adminID string) (string, error)
}

// RoleSource reads the role table from a backing store.
type RoleSource interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRoleNames(ctx context.Context) ([]string, error)
	GetRoleDefinition(ctx context.Context, name string) (RoleDefinition, error)
	GetRolePermissions(ctx context.Context, role string) ([]Permission, error)
}

// LoadTable reads every role and its active permissions from src.
func LoadTable(ctx context.Context, src RoleSource, maxBits int, superAdmin string) (*Table, error) {
	perms, err := src.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	names, err := src.ListRoleNames(ctx)
	if err != nil {
		return nil, err
	}

	defs := make([]RoleDefinition, 0, len(names))
	for _, name := range names {
		def, err := src.GetRoleDefinition(ctx, name)
		if err != nil {
			return nil, err
		}
		rolePerms, err := src.GetRolePermissions(ctx, name)
		if err != nil {
			return nil, err
		}
		def.Permissions = make([]string, 0, len(rolePerms))
		for _, p := range rolePerms {
			def.Permissions = append(def.Permissions, p.Name())
		}
		defs = append(defs, def)
	}
	return NewTable(maxBits, perms, defs, superAdmin)
}
