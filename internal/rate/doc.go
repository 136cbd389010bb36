// Package rate provides the Redis-backed failed-authentication limiter used by the
// bearer-token guards.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefix:
//   - aaf: — failed authentications per client IP
//
// Every failure kind (bad signature, expired, revoked, inactive account, external
// rejection) increments the same counter so that the limiter cannot be used as an
// account-status oracle.
//
// # What this package must NOT do
//
//   - Classify failures or decide what counts as one (the Engine does).
//   - Be imported outside the adminauth module.
package rate
