package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/verifier"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var (
	// ErrUnknownPermission is returned when a grant names a permission that is not registered.
	ErrUnknownPermission = errors.New("directory: unknown permission")
	// ErrDuplicateAdmin is returned when an id or email is already taken.
	ErrDuplicateAdmin = errors.New("directory: admin already exists")
)

var (
	_ verifier.AdminDirectory = (*Postgres)(nil)
	_ permission.RoleSource   = (*Postgres)(nil)
	_ permission.GrantSource  = (*Postgres)(nil)
	_ permission.RoleLookup   = (*Postgres)(nil)
)

// Postgres implements the directory, role and grant lookups over one database.
type Postgres struct {
	db *sql.DB
}

// Open connects with the pgx driver and applies pool defaults.
func Open(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Postgres{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) DB() *sql.DB { return p.db }

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Seed inserts perms and roles and links each role to its permissions. Existing rows
// are left alone, so Seed can run on every start.
func (p *Postgres) Seed(ctx context.Context, perms []permission.Permission, roles []permission.RoleDefinition) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, perm := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (resource, action)
			values ($1, $2)
			on conflict (resource, action) do nothing
		`, perm.Resource, perm.Action); err != nil {
			return fmt.Errorf("seed permission %s: %w", perm.Name(), err)
		}
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `
			insert into roles (name, level)
			values ($1, $2)
			on conflict (name) do nothing
		`, role.Name, role.Level); err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
		for _, name := range role.Permissions {
			resource, action, ok := strings.Cut(name, ":")
			if !ok {
				return fmt.Errorf("seed role %s: %w: %s", role.Name, permission.ErrInvalidPermission, name)
			}
			if _, err := tx.ExecContext(ctx, `
				insert into role_permissions (role, permission_id)
				select $1, id from permissions where resource = $2 and action = $3
				on conflict (role, permission_id) do nothing
			`, role.Name, resource, action); err != nil {
				return fmt.Errorf("seed role %s permission %s: %w", role.Name, name, err)
			}
		}
	}
	return tx.Commit()
}

// CreateAdmin inserts an administrator account.
func (p *Postgres) CreateAdmin(ctx context.Context, a verifier.AdminAccount) error {
	_, err := p.db.ExecContext(ctx, `
		insert into admins (id, email, role, is_active)
		values ($1, $2, $3, $4)
	`, a.ID, a.Email, a.Role, a.Active)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return ErrDuplicateAdmin
	}
	return err
}

// SetActive enables or disables an account.
func (p *Postgres) SetActive(ctx context.Context, adminID string, active bool) error {
	res, err := p.db.ExecContext(ctx, `update admins set is_active = $2 where id = $1`, adminID, active)
	if err != nil {
		return err
	}
	return requireRow(res, verifier.ErrAdminNotFound)
}

// GetAdminByID returns the account or verifier.ErrAdminNotFound.
func (p *Postgres) GetAdminByID(ctx context.Context, id string) (*verifier.AdminAccount, error) {
	var a verifier.AdminAccount
	err := p.db.QueryRowContext(ctx, `
		select id, email, role, is_active
		from admins
		where id = $1
	`, id).Scan(&a.ID, &a.Email, &a.Role, &a.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verifier.ErrAdminNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RoleOf returns the admin's current role.
func (p *Postgres) RoleOf(ctx context.Context, adminID string) (string, error) {
	var role string
	err := p.db.QueryRowContext(ctx, `select role from admins where id = $1`, adminID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", verifier.ErrAdminNotFound
	}
	return role, err
}

// TouchLastSeen records the most recent authenticated request. Unknown ids are ignored.
func (p *Postgres) TouchLastSeen(ctx context.Context, adminID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		update admins set last_seen_at = $2
		where id = $1 and (last_seen_at is null or last_seen_at < $2)
	`, adminID, at.UTC())
	return err
}

// ListPermissions returns every registered permission ordered by id.
func (p *Postgres) ListPermissions(ctx context.Context) ([]permission.Permission, error) {
	rows, err := p.db.QueryContext(ctx, `select id, resource, action from permissions order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.Permission
	for rows.Next() {
		var perm permission.Permission
		if err := rows.Scan(&perm.ID, &perm.Resource, &perm.Action); err != nil {
			return nil, err
		}
		out = append(out, perm)
	}
	return out, rows.Err()
}

// ListRoleNames returns role names ordered by level.
func (p *Postgres) ListRoleNames(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `select name from roles order by level, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// GetRoleDefinition returns the role's name and level. Permissions are left empty.
func (p *Postgres) GetRoleDefinition(ctx context.Context, name string) (permission.RoleDefinition, error) {
	var def permission.RoleDefinition
	err := p.db.QueryRowContext(ctx, `select name, level from roles where name = $1`, name).Scan(&def.Name, &def.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return permission.RoleDefinition{}, fmt.Errorf("%w: %s", permission.ErrUnknownRole, name)
	}
	if err != nil {
		return permission.RoleDefinition{}, err
	}
	return def, nil
}

// GetRolePermissions returns the active permissions linked to role.
func (p *Postgres) GetRolePermissions(ctx context.Context, role string) ([]permission.Permission, error) {
	rows, err := p.db.QueryContext(ctx, `
		select p.id, p.resource, p.action
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role = $1 and rp.active
		order by p.id
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.Permission
	for rows.Next() {
		var perm permission.Permission
		if err := rows.Scan(&perm.ID, &perm.Resource, &perm.Action); err != nil {
			return nil, err
		}
		out = append(out, perm)
	}
	return out, rows.Err()
}

// GetUserPermissionGrants returns the overrides recorded for adminID.
func (p *Postgres) GetUserPermissionGrants(ctx context.Context, adminID string) ([]permission.Grant, error) {
	rows, err := p.db.QueryContext(ctx, `
		select p.id, p.resource, p.action, g.effect, g.granted_by, g.granted_at
		from user_permission_grants g
		join permissions p on p.id = g.permission_id
		where g.admin_id = $1
		order by p.id
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.Grant
	for rows.Next() {
		g := permission.Grant{AdminID: adminID}
		var effect string
		if err := rows.Scan(&g.Permission.ID, &g.Permission.Resource, &g.Permission.Action, &effect, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		g.Effect = permission.Effect(effect)
		out = append(out, g)
	}
	return out, rows.Err()
}

// GrantPermission records an allow or deny override, replacing any existing one for
// the same permission.
func (p *Postgres) GrantPermission(ctx context.Context, g permission.Grant) error {
	effect := g.Effect
	if effect == "" {
		effect = permission.EffectAllow
	}
	res, err := p.db.ExecContext(ctx, `
		insert into user_permission_grants (admin_id, permission_id, effect, granted_by, granted_at)
		select $1, id, $4, $5, now() from permissions where resource = $2 and action = $3
		on conflict (admin_id, permission_id) do update
		set effect = excluded.effect, granted_by = excluded.granted_by, granted_at = excluded.granted_at
	`, g.AdminID, g.Permission.Resource, g.Permission.Action, string(effect), g.GrantedBy)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return verifier.ErrAdminNotFound
	}
	if err != nil {
		return err
	}
	return requireRow(res, ErrUnknownPermission)
}

// RevokePermission deletes the override for resource:action. Deleting a missing
// override is not an error.
func (p *Postgres) RevokePermission(ctx context.Context, adminID, resource, action string) error {
	_, err := p.db.ExecContext(ctx, `
		delete from user_permission_grants g
		using permissions p
		where g.permission_id = p.id and g.admin_id = $1 and p.resource = $2 and p.action = $3
	`, adminID, resource, action)
	return err
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
