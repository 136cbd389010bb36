package permission

// DefaultSuperAdminRole is the name of the highest built-in role.
const DefaultSuperAdminRole = "SUPER_ADMIN"

// DefaultPermissions is the built-in marketplace permission catalogue.
func DefaultPermissions() []Permission {
	refs := []Ref{
		R("listings", "read"),
		R("listings", "moderate"),
		R("listings", "delete"),
		R("users", "read"),
		R("users", "write"),
		R("users", "suspend"),
		R("admins", "read"),
		R("admins", "write"),
		R("categories", "read"),
		R("categories", "write"),
		R("reports", "read"),
		R("reports", "resolve"),
		R("analytics", "read"),
		R("security", "read"),
		R("security", "write"),
	}
	out := make([]Permission, len(refs))
	for i, r := range refs {
		out[i] = Permission{ID: int64(i + 1), Resource: r.Resource, Action: r.Action}
	}
	return out
}

// DefaultRoles is the built-in role ladder.
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{Name: "SUPPORT", Level: 1, Permissions: []string{"users:read", "listings:read", "reports:read"}},
		{Name: "MODERATOR", Level: 2, Permissions: []string{"listings:read", "listings:moderate", "reports:read", "reports:resolve"}},
		{Name: "CONTENT_MANAGER", Level: 3, Permissions: []string{"listings:read", "listings:moderate", "listings:delete", "categories:read"}},
		{Name: "USER_MANAGER", Level: 4, Permissions: []string{"users:read", "users:write", "users:suspend", "reports:read"}},
		{Name: "CATEGORY_MANAGER", Level: 5, Permissions: []string{"categories:read", "categories:write", "listings:read"}},
		{Name: "ADMIN", Level: 8, Permissions: []string{
			"listings:read", "listings:moderate", "listings:delete",
			"users:read", "users:write", "users:suspend",
			"admins:read", "categories:read", "categories:write",
			"reports:read", "reports:resolve", "analytics:read", "security:read",
		}},
		{Name: DefaultSuperAdminRole, Level: 10},
	}
}

// DefaultTable builds the built-in table with 256-bit masks.
func DefaultTable() (*Table, error) {
	return NewTable(256, DefaultPermissions(), DefaultRoles(), DefaultSuperAdminRole)
}
