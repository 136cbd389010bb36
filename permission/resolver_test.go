package permission

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type memoryGrants struct {
	mu     sync.Mutex
	grants map[string][]Grant
	err    error
}

func (m *memoryGrants) GetUserPermissionGrants(_ context.Context, adminID string) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]Grant(nil), m.grants[adminID]...), nil
}

func (m *memoryGrants) grant(adminID, resource, action string, effect Effect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grants == nil {
		m.grants = map[string][]Grant{}
	}
	m.grants[adminID] = append(m.grants[adminID], Grant{
		AdminID:    adminID,
		Permission: Permission{Resource: resource, Action: action},
		Effect:     effect,
		GrantedBy:  "adm-root",
	})
}

func (m *memoryGrants) revokeAll(adminID string) {
	m.mu.Lock()
	delete(m.grants, adminID)
	m.mu.Unlock()
}

type roleMap map[string]string

func (r roleMap) RoleOf(_ context.Context, id string) (string, error) {
	role, ok := r[id]
	if !ok {
		return "", errors.New("admin not found")
	}
	return role, nil
}

func newDefaultResolver(t *testing.T, opts ...ResolverOption) *Resolver {
	t.Helper()
	table, err := DefaultTable()
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	r, err := NewResolver(table, opts...)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r
}

func TestSuperAdminHasEverything(t *testing.T) {
	grants := &memoryGrants{}
	r := newDefaultResolver(t, WithGrantSource(grants))
	root := Subject{ID: "adm-root", Role: DefaultSuperAdminRole}
	grants.grant(root.ID, "security", "write", EffectDeny)

	ctx := context.Background()
	for _, p := range r.Table().Registry().All() {
		ok, err := r.HasPermission(ctx, root, p.Resource, p.Action)
		if err != nil || !ok {
			t.Fatalf("expected super admin to hold %s, got %v %v", p.Name(), ok, err)
		}
	}
	ok, err := r.HasPermission(ctx, root, "anything", "at-all")
	if err != nil || !ok {
		t.Fatalf("expected super admin short-circuit for unregistered pairs, got %v %v", ok, err)
	}
	for _, def := range r.Table().Roles() {
		if ok, _ := r.RequireRole(root, def.Name); !ok {
			t.Fatalf("expected super admin to satisfy role %s", def.Name)
		}
	}
}

func TestSupportGrantScenario(t *testing.T) {
	grants := &memoryGrants{}
	r := newDefaultResolver(t, WithGrantSource(grants))
	ctx := context.Background()
	support := Subject{ID: "adm-7", Role: "SUPPORT"}

	if ok, _ := r.HasPermission(ctx, support, "users", "write"); ok {
		t.Fatal("SUPPORT must not hold users:write by role")
	}
	grants.grant(support.ID, "users", "write", EffectAllow)
	if ok, err := r.HasPermission(ctx, support, "users", "write"); err != nil || !ok {
		t.Fatalf("expected grant to add users:write, got %v %v", ok, err)
	}
	grants.revokeAll(support.ID)
	if ok, _ := r.HasPermission(ctx, support, "users", "write"); ok {
		t.Fatal("expected revoked grant to remove users:write")
	}

	grants.grant(support.ID, "users", "read", EffectDeny)
	if ok, _ := r.HasPermission(ctx, support, "users", "read"); ok {
		t.Fatal("expected deny grant to remove a role permission")
	}
	names, err := r.EffectiveNames(ctx, support)
	if err != nil {
		t.Fatalf("effective names: %v", err)
	}
	for _, n := range names {
		if n == "users:read" {
			t.Fatal("denied permission leaked into the effective set")
		}
	}
}

func TestDenyWinsOverAllow(t *testing.T) {
	grants := &memoryGrants{}
	r := newDefaultResolver(t, WithGrantSource(grants))
	s := Subject{ID: "adm-3", Role: "MODERATOR"}
	grants.grant(s.ID, "users", "suspend", EffectAllow)
	grants.grant(s.ID, "users", "suspend", EffectDeny)

	if ok, _ := r.HasPermission(context.Background(), s, "users", "suspend"); ok {
		t.Fatal("expected deny to win over allow")
	}
}

func TestAnyAndAllEdgeCases(t *testing.T) {
	r := newDefaultResolver(t)
	ctx := context.Background()
	mod := Subject{ID: "adm-2", Role: "MODERATOR"}

	if ok, _ := r.HasAllPermissions(ctx, mod, nil); !ok {
		t.Fatal("empty all-of list must be satisfied")
	}
	if ok, _ := r.HasAnyPermission(ctx, mod, nil); ok {
		t.Fatal("empty any-of list must not be satisfied")
	}
	if ok, _ := r.HasAnyPermission(ctx, mod, []Ref{R("users", "write"), R("listings", "moderate")}); !ok {
		t.Fatal("expected any-of to match listings:moderate")
	}
	if ok, _ := r.HasAllPermissions(ctx, mod, []Ref{R("users", "write"), R("listings", "moderate")}); ok {
		t.Fatal("expected all-of to fail on users:write")
	}
	if ok, _ := r.HasPermission(ctx, mod, "unknown", "perm"); ok {
		t.Fatal("unregistered permissions must be denied")
	}
}

func TestGrantSourceErrorPropagates(t *testing.T) {
	grants := &memoryGrants{err: errors.New("db down")}
	r := newDefaultResolver(t, WithGrantSource(grants))
	if _, err := r.HasPermission(context.Background(), Subject{ID: "a", Role: "SUPPORT"}, "users", "read"); err == nil {
		t.Fatal("expected grant source error")
	}
}

func TestRequireRole(t *testing.T) {
	r := newDefaultResolver(t)
	mod := Subject{Role: "MODERATOR"}
	if ok, _ := r.RequireRole(mod, "SUPPORT"); !ok {
		t.Fatal("MODERATOR outranks SUPPORT")
	}
	if ok, _ := r.RequireRole(mod, "MODERATOR"); !ok {
		t.Fatal("equal level satisfies the requirement")
	}
	if ok, _ := r.RequireRole(mod, "ADMIN"); ok {
		t.Fatal("MODERATOR must not satisfy ADMIN")
	}
	if _, err := r.RequireRole(mod, "NOPE"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if ok, _ := r.RequireRole(Subject{Role: "GHOST"}, "SUPPORT"); ok {
		t.Fatal("unknown roles satisfy nothing")
	}
}

func TestCanManageIrreflexive(t *testing.T) {
	table, _ := DefaultTable()
	roles := roleMap{}
	for _, def := range table.Roles() {
		roles["id-"+def.Name] = def.Name
	}
	r := newDefaultResolver(t, WithRoleLookup(roles))

	for id, role := range roles {
		ok, err := r.CanManage(context.Background(), id, id)
		if err != nil {
			t.Fatalf("CanManage(%s): %v", id, err)
		}
		if want := role == DefaultSuperAdminRole; ok != want {
			t.Fatalf("%s managing itself = %v, want %v", id, ok, want)
		}
	}
}

func TestEqualLevelPeersCannotManage(t *testing.T) {
	roles := roleMap{
		"cm-1":  "CATEGORY_MANAGER",
		"cm-2":  "CATEGORY_MANAGER",
		"adm-1": "ADMIN",
		"root":  DefaultSuperAdminRole,
		"root2": DefaultSuperAdminRole,
	}
	r := newDefaultResolver(t, WithRoleLookup(roles))
	ctx := context.Background()

	cases := []struct {
		manager, target string
		want            bool
	}{
		{"cm-1", "cm-2", false},
		{"cm-2", "cm-1", false},
		{"adm-1", "cm-1", true},
		{"cm-1", "adm-1", false},
		{"root", "adm-1", true},
		{"root", "root2", true},
		{"adm-1", "root", false},
	}
	for _, tc := range cases {
		got, err := r.CanManage(ctx, tc.manager, tc.target)
		if err != nil {
			t.Fatalf("%s -> %s: %v", tc.manager, tc.target, err)
		}
		if got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.manager, tc.target, tc.want, got)
		}
	}

	if _, err := r.CanManage(ctx, "cm-1", "missing"); err == nil {
		t.Fatal("expected lookup error for unknown target")
	}
	noLookup := newDefaultResolver(t)
	if _, err := noLookup.CanManage(ctx, "a", "b"); !errors.Is(err, ErrNoRoleLookup) {
		t.Fatalf("expected ErrNoRoleLookup, got %v", err)
	}
}

func TestSwapReplacesTable(t *testing.T) {
	r := newDefaultResolver(t)
	next, err := NewTable(64,
		[]Permission{{Resource: "listings", Action: "read"}},
		[]RoleDefinition{{Name: "VIEWER", Level: 1, Permissions: []string{"listings:read"}}, {Name: "ROOT", Level: 2}},
		"ROOT",
	)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	r.Swap(next)
	if ok, _ := r.HasPermission(context.Background(), Subject{Role: "VIEWER"}, "listings", "read"); !ok {
		t.Fatal("expected swapped table to be used")
	}
	if ok, _ := r.HasPermission(context.Background(), Subject{Role: "ROOT"}, "users", "write"); !ok {
		t.Fatal("expected new super admin role to short-circuit")
	}
	r.Swap(nil)
	if r.Table() != next {
		t.Fatal("nil swap must be ignored")
	}
}
