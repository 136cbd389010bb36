// Package permission implements role-based access control for administrators.
//
// # Model
//
// A [Permission] is a (resource, action) pair, unique by "resource:action".
// A [Registry] assigns each permission a bit; a [Mask] is a set of those bits.
// A [Table] is the ordered {role, level} table with each role's permission mask.
// It is loaded once, validated, and never mutated; reloading builds a new
// table and swaps it in.
//
// The effective permission set of an admin is
//
//	(role permissions ∪ allow grants) − deny grants
//
// except for the super-admin role, which holds every permission and is never
// narrowed by grants.
//
// # Architecture boundaries
//
// [Table], [Mask] and [CanManageRoles] are pure and do no I/O. The [Resolver]
// reads per-admin grants and roles through the [GrantSource] and [RoleLookup]
// interfaces; concrete stores live elsewhere.
package permission
