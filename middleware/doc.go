// Package middleware turns authentication and authorization into explicit,
// composable checks.
//
// # Checks
//
// A [Check] maps a principal to a [Decision]: Allow, or Deny with a reason.
// [Chain] composes checks left to right and stops at the first denial, so a
// route's policy is a plain function value that can be unit-tested without HTTP.
//
// # HTTP guards
//
// [Guard] adapts checks to net/http. It reads the Authorization header, asks
// its [Authority] to authenticate the bearer token, stores the principal in the
// request context and runs the route's checks. Rejections always carry a
// generic body; the reason is only logged.
//
// # What this package must NOT do
//
//   - Parse or verify tokens itself (delegated to the Authority).
//   - Leak the denial reason or verification error to the client.
package middleware
