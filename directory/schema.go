package directory

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`create table if not exists admins (
		id           text primary key,
		email        text not null unique,
		role         text not null,
		is_active    boolean not null default true,
		last_seen_at timestamptz,
		created_at   timestamptz not null default now()
	)`,
	`create table if not exists permissions (
		id       bigserial primary key,
		resource text not null,
		action   text not null,
		unique (resource, action)
	)`,
	`create table if not exists roles (
		name  text primary key,
		level integer not null
	)`,
	`create table if not exists role_permissions (
		role          text not null references roles(name) on delete cascade,
		permission_id bigint not null references permissions(id) on delete cascade,
		active        boolean not null default true,
		primary key (role, permission_id)
	)`,
	`create table if not exists user_permission_grants (
		admin_id      text not null references admins(id) on delete cascade,
		permission_id bigint not null references permissions(id) on delete cascade,
		effect        text not null default 'allow' check (effect in ('allow', 'deny')),
		granted_by    text not null,
		granted_at    timestamptz not null default now(),
		primary key (admin_id, permission_id)
	)`,
	`create index if not exists user_permission_grants_admin_idx on user_permission_grants (admin_id)`,
}
