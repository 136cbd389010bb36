// Package directory is the Postgres-backed administrator directory.
//
// [Postgres] serves every outbound lookup the engine makes: administrator accounts
// for verification, the role table for [permission.LoadTable], per-admin permission
// grants for the resolver, and best-effort last-seen writes. It talks to the database
// through database/sql with the pgx driver.
//
// # What this package must NOT do
//
//   - Cache rows. The resolver reads grants live on every decision.
//   - Decide authorization. It only stores and returns data.
package directory
