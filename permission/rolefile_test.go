package permission

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleRoleFile = `
super_admin: OWNER
max_bits: 64
permissions:
  - listings:read
  - listings:moderate
  - users:read
roles:
  - name: VIEWER
    level: 1
    permissions: [listings:read]
  - name: MODERATOR
    level: 2
    permissions: [listings:read, listings:moderate]
  - name: OWNER
    level: 9
`

func TestParseRoleFile(t *testing.T) {
	table, err := ParseRoleFile([]byte(sampleRoleFile))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if table.SuperAdminRole() != "OWNER" || table.Registry().MaxBits() != 64 {
		t.Fatalf("unexpected table header %s %d", table.SuperAdminRole(), table.Registry().MaxBits())
	}
	def, ok := table.Role("OWNER")
	if !ok || len(def.Permissions) != 3 {
		t.Fatalf("expected OWNER to hold all 3 permissions, got %+v", def)
	}
	if !table.RoleMask("MODERATOR").Has(1) {
		t.Fatal("expected MODERATOR to hold listings:moderate")
	}
}

func TestParseRoleFileRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseRoleFile([]byte("roles: []\nsuperadmin: X\n")); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
	if _, err := ParseRoleFile([]byte("permissions: [bad]\nroles: [{name: A, level: 1}]\nsuper_admin: A\n")); err == nil {
		t.Fatal("expected malformed permission to be rejected")
	}
}

func TestWatchRoleFileReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	if err := os.WriteFile(path, []byte(sampleRoleFile), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	table, err := LoadRoleFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r, _ := NewResolver(table)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan error, 4)
	if err := WatchRoleFile(ctx, path, r, nil, func(err error) { reloaded <- err }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	updated := sampleRoleFile + "  - name: AUDITOR\n    level: 3\n    permissions: [users:read]\n"
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case err := <-reloaded:
		if err != nil {
			t.Fatalf("reload failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if _, ok := r.Table().Level("AUDITOR"); !ok {
		t.Fatal("expected reloaded table to contain AUDITOR")
	}
}

func TestReloadRejectsSuperAdminChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	if err := os.WriteFile(path, []byte(sampleRoleFile), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	table, err := LoadRoleFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r, _ := NewResolver(table)

	renamed := strings.Replace(sampleRoleFile, "OWNER", "ROOT", -1)
	if err := os.WriteFile(path, []byte(renamed), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := ReloadRoleFile(path, r); !errors.Is(err, ErrSuperAdminChanged) {
		t.Fatalf("expected ErrSuperAdminChanged, got %v", err)
	}
	if r.Table() != table || r.Table().SuperAdminRole() != "OWNER" {
		t.Fatal("rejected reload must keep the current table")
	}

	updated := sampleRoleFile + "  - name: AUDITOR\n    level: 3\n"
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := ReloadRoleFile(path, r); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := r.Table().Level("AUDITOR"); !ok {
		t.Fatal("expected AUDITOR after reload")
	}
}
