package permission

import (
	"testing"
)

func TestNewTableValidation(t *testing.T) {
	perms := []Permission{{Resource: "listings", Action: "read"}}
	cases := map[string]struct {
		roles      []RoleDefinition
		superAdmin string
	}{
		"missing super admin": {
			roles:      []RoleDefinition{{Name: "SUPPORT", Level: 1}},
			superAdmin: "SUPER_ADMIN",
		},
		"super admin not highest": {
			roles:      []RoleDefinition{{Name: "ADMIN", Level: 10}, {Name: "SUPER_ADMIN", Level: 10}},
			superAdmin: "SUPER_ADMIN",
		},
		"duplicate role": {
			roles:      []RoleDefinition{{Name: "A", Level: 1}, {Name: "A", Level: 2}, {Name: "S", Level: 3}},
			superAdmin: "S",
		},
		"unknown permission": {
			roles:      []RoleDefinition{{Name: "A", Level: 1, Permissions: []string{"users:write"}}, {Name: "S", Level: 3}},
			superAdmin: "S",
		},
	}
	for name, tc := range cases {
		if _, err := NewTable(64, perms, tc.roles, tc.superAdmin); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := NewTable(100, perms, []RoleDefinition{{Name: "S", Level: 1}}, "S"); err == nil {
		t.Fatal("expected invalid width to be rejected")
	}
}

func TestTableOrderingAndLevels(t *testing.T) {
	table, err := DefaultTable()
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	roles := table.Roles()
	for i := 1; i < len(roles); i++ {
		if roles[i-1].Level > roles[i].Level {
			t.Fatalf("roles not ordered by level: %v before %v", roles[i-1].Name, roles[i].Name)
		}
	}
	if roles[len(roles)-1].Name != DefaultSuperAdminRole {
		t.Fatal("super admin must be the highest role")
	}
	if lvl, ok := table.Level("ADMIN"); !ok || lvl != 8 {
		t.Fatalf("unexpected ADMIN level %d %v", lvl, ok)
	}
	if !table.CanManageRoles("ADMIN", "SUPPORT") || table.CanManageRoles("SUPPORT", "ADMIN") {
		t.Fatal("unexpected management relation between ADMIN and SUPPORT")
	}
	if table.CanManageRoles("GHOST", "SUPPORT") || table.CanManageRoles("ADMIN", "GHOST") {
		t.Fatal("unknown roles must not take part in management")
	}
}

func TestMatrixIsProjection(t *testing.T) {
	table, _ := DefaultTable()
	m := table.Matrix()
	if len(m.Roles) != len(table.Roles()) {
		t.Fatalf("expected %d rows, got %d", len(table.Roles()), len(m.Roles))
	}
	for _, row := range m.Roles {
		if len(row.Allowed) != len(m.Permissions) {
			t.Fatalf("row %s misaligned", row.Role)
		}
		set := 0
		for _, a := range row.Allowed {
			if a {
				set++
			}
		}
		if set != len(row.Permissions) {
			t.Fatalf("row %s: %d allowed cells for %d permissions", row.Role, set, len(row.Permissions))
		}
		if row.SuperAdmin && set != len(m.Permissions) {
			t.Fatal("super admin row must allow every permission")
		}
	}

	m.Roles[0].Permissions[0] = "mutated"
	if table.Matrix().Roles[0].Permissions[0] == "mutated" {
		t.Fatal("matrix must not alias table state")
	}
}

func TestMaskOperations(t *testing.T) {
	a := NewMask(128)
	a.Set(1)
	a.Set(70)
	a.Set(500)
	if !a.Has(1) || !a.Has(70) || a.Has(500) || a.Count() != 2 {
		t.Fatalf("unexpected mask bits %v", a.Bits())
	}

	b := NewMask(128)
	b.Set(70)
	b.Set(3)
	c := a.Clone()
	c.Union(b)
	if got := c.Bits(); len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 70 {
		t.Fatalf("unexpected union %v", got)
	}
	c.Subtract(b)
	if got := c.Bits(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("unexpected difference %v", got)
	}
	if !a.Has(70) {
		t.Fatal("clone must not alias the original")
	}
	var nilMask *Mask
	if nilMask.Has(0) || nilMask.Count() != 0 {
		t.Fatal("nil mask must be empty")
	}
}

func TestParseName(t *testing.T) {
	ref, err := ParseName(" listings:moderate ")
	if err != nil || ref.Resource != "listings" || ref.Action != "moderate" {
		t.Fatalf("unexpected ref %+v %v", ref, err)
	}
	for _, bad := range []string{"", "listings", ":read", "listings:", "a:b:c"} {
		if _, err := ParseName(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
