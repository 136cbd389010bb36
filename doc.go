// Package adminauth is the authentication and authorization core of the marketplace
// administration platform: signing-secret lifecycle, dual-mode bearer token verification,
// a Redis-backed token denylist, and RBAC with per-admin overrides and a management hierarchy.
//
// Engine methods are safe to call from multiple goroutines after [Engine.Initialize].
//
// # Architecture boundaries
//
// adminauth is the public surface. It exposes [Engine], [Builder], [Config], errors, audit
// and metrics types. Secret rotation lives in secret/, token encoding in jwt/, the denylist in
// revocation/, path disambiguation in verifier/ and RBAC in permission/. HTTP concerns live in
// middleware/ and adminhttp/.
//
// # What this package must NOT do
//
//   - Expose Redis clients, stored secret material, or encoding details in its public API.
//   - Perform I/O during [Builder.Build]. The first store round-trip happens in Initialize.
//   - Import adminhttp/ or directory/ (both import adminauth or its subpackages).
//
// # Request path
//
// Authenticate reads the immutable signing-key snapshot without locking and performs one
// denylist round-trip plus one directory lookup. Rotation is the only writer and replaces the
// snapshot with a single atomic swap.
package adminauth
