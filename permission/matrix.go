package permission

// Matrix is a read-only projection of a [Table] for display.
type Matrix struct {
	SuperAdminRole string       `json:"superAdminRole"`
	Permissions    []Permission `json:"permissions"`
	Roles          []MatrixRow  `json:"roles"`
}

// MatrixRow is one role of the matrix. Allowed is aligned with Matrix.Permissions.
type MatrixRow struct {
	Role        string   `json:"role"`
	Level       int      `json:"level"`
	SuperAdmin  bool     `json:"superAdmin"`
	Permissions []string `json:"permissions"`
	Allowed     []bool   `json:"allowed"`
}

// Matrix projects the table. It has no side effects.
func (t *Table) Matrix() Matrix {
	perms := t.registry.All()
	m := Matrix{
		SuperAdminRole: t.superAdmin,
		Permissions:    perms,
		Roles:          make([]MatrixRow, 0, len(t.order)),
	}
	for _, name := range t.order {
		e := t.roles[name]
		row := MatrixRow{
			Role:        name,
			Level:       e.def.Level,
			SuperAdmin:  t.IsSuperAdmin(name),
			Permissions: t.registry.Names(e.mask),
			Allowed:     make([]bool, len(perms)),
		}
		for bit := range perms {
			row.Allowed[bit] = e.mask.Has(bit)
		}
		m.Roles = append(m.Roles, row)
	}
	return m
}
