package permission

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownRole is returned for role names missing from the table.
var ErrUnknownRole = errors.New("unknown role")

// RoleDefinition is one row of the role table.
type RoleDefinition struct {
	Name        string   `json:"name" yaml:"name"`
	Level       int      `json:"level" yaml:"level"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

type roleEntry struct {
	def  RoleDefinition
	mask *Mask
}

// Table is the validated, immutable role table.
type Table struct {
	registry   *Registry
	roles      map[string]*roleEntry
	order      []string
	superAdmin string
}

// NewTable registers perms, compiles every role's mask and validates the
// ordering. superAdmin must name a role whose level is strictly higher than
// every other role. Its listed permissions are ignored; it holds them all.
func NewTable(maxBits int, perms []Permission, roles []RoleDefinition, superAdmin string) (*Table, error) {
	reg, err := NewRegistry(maxBits)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		if _, err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	reg.Freeze()

	t := &Table{
		registry:   reg,
		roles:      make(map[string]*roleEntry, len(roles)),
		superAdmin: superAdmin,
	}
	for _, def := range roles {
		if def.Name == "" {
			return nil, errors.New("role name empty")
		}
		if _, exists := t.roles[def.Name]; exists {
			return nil, fmt.Errorf("role already registered: %s", def.Name)
		}
		mask := reg.NewMask()
		for _, name := range def.Permissions {
			bit, ok := reg.Bit(name)
			if !ok {
				return nil, fmt.Errorf("role %s: permission not registered: %s", def.Name, name)
			}
			mask.Set(bit)
		}
		def.Permissions = append([]string(nil), def.Permissions...)
		t.roles[def.Name] = &roleEntry{def: def, mask: mask}
		t.order = append(t.order, def.Name)
	}

	sa, ok := t.roles[superAdmin]
	if !ok {
		return nil, fmt.Errorf("%w: super admin role %q", ErrUnknownRole, superAdmin)
	}
	for name, e := range t.roles {
		if name != superAdmin && e.def.Level >= sa.def.Level {
			return nil, fmt.Errorf("role %s level %d must be below super admin level %d", name, e.def.Level, sa.def.Level)
		}
	}
	sa.mask = reg.FullMask()
	sa.def.Permissions = reg.Names(sa.mask)

	sort.SliceStable(t.order, func(i, j int) bool {
		a, b := t.roles[t.order[i]].def, t.roles[t.order[j]].def
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return a.Name < b.Name
	})
	return t, nil
}

// Registry returns the frozen permission registry.
func (t *Table) Registry() *Registry {
	return t.registry
}

// SuperAdminRole returns the name of the highest role.
func (t *Table) SuperAdminRole() string {
	return t.superAdmin
}

// IsSuperAdmin reports whether role is the super-admin role.
func (t *Table) IsSuperAdmin(role string) bool {
	return role != "" && role == t.superAdmin
}

// Level returns the level of role.
func (t *Table) Level(role string) (int, bool) {
	e, ok := t.roles[role]
	if !ok {
		return 0, false
	}
	return e.def.Level, true
}

// Role returns a copy of the role definition.
func (t *Table) Role(name string) (RoleDefinition, bool) {
	e, ok := t.roles[name]
	if !ok {
		return RoleDefinition{}, false
	}
	def := e.def
	def.Permissions = append([]string(nil), def.Permissions...)
	return def, true
}

// Roles returns every role ordered by ascending level, then name.
func (t *Table) Roles() []RoleDefinition {
	out := make([]RoleDefinition, 0, len(t.order))
	for _, name := range t.order {
		def, _ := t.Role(name)
		out = append(out, def)
	}
	return out
}

// RoleMask returns a copy of role's mask. Unknown roles yield an empty mask.
func (t *Table) RoleMask(role string) *Mask {
	e, ok := t.roles[role]
	if !ok {
		return t.registry.NewMask()
	}
	return e.mask.Clone()
}

// AtLeast reports whether role's level is >= minRole's level. The super-admin
// role satisfies every requirement.
func (t *Table) AtLeast(role, minRole string) (bool, error) {
	minLevel, ok := t.Level(minRole)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, minRole)
	}
	if t.IsSuperAdmin(role) {
		return true, nil
	}
	level, ok := t.Level(role)
	if !ok {
		return false, nil
	}
	return level >= minLevel, nil
}

// CanManageRoles is the role-level half of the management check: the
// super-admin role manages everyone, otherwise the manager's level must be
// strictly higher. Unknown roles manage nobody and are managed by nobody but
// the super admin.
func (t *Table) CanManageRoles(managerRole, targetRole string) bool {
	if t.IsSuperAdmin(managerRole) {
		return true
	}
	ml, ok := t.Level(managerRole)
	if !ok {
		return false
	}
	tl, ok := t.Level(targetRole)
	if !ok {
		return false
	}
	return ml > tl
}
