package permission

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoleFile is the YAML layout of a role table:
//
//	super_admin: SUPER_ADMIN
//	max_bits: 256
//	permissions: [listings:read, listings:moderate]
//	roles:
//	  - name: MODERATOR
//	    level: 2
//	    permissions: [listings:read, listings:moderate]
//	  - name: SUPER_ADMIN
//	    level: 10
type RoleFile struct {
	SuperAdmin  string           `yaml:"super_admin"`
	MaxBits     int              `yaml:"max_bits"`
	Permissions []string         `yaml:"permissions"`
	Roles       []RoleDefinition `yaml:"roles"`
}

// ParseRoleFile decodes and validates a YAML role table. Unknown keys are rejected.
func ParseRoleFile(data []byte) (*Table, error) {
	var rf RoleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("decode role file: %w", err)
	}
	if len(rf.Roles) == 0 {
		return nil, errors.New("role file declares no roles")
	}
	if rf.SuperAdmin == "" {
		rf.SuperAdmin = DefaultSuperAdminRole
	}
	if rf.MaxBits == 0 {
		rf.MaxBits = 256
	}

	perms := make([]Permission, 0, len(rf.Permissions))
	for i, name := range rf.Permissions {
		ref, err := ParseName(name)
		if err != nil {
			return nil, fmt.Errorf("permission %q: %w", name, err)
		}
		perms = append(perms, Permission{ID: int64(i + 1), Resource: ref.Resource, Action: ref.Action})
	}
	return NewTable(rf.MaxBits, perms, rf.Roles, rf.SuperAdmin)
}

// LoadRoleFile reads and parses path.
func LoadRoleFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRoleFile(data)
}
