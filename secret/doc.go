// Package secret owns the HMAC signing-secret lifecycle: the persisted
// current/previous state, its Redis store, and the rotation manager.
//
// # Snapshot model
//
// The live [State] is immutable. The [Manager] publishes a new *State through an
// atomic pointer on every rotation, retirement or adoption, so verifiers read
// {current, previous} from one snapshot without locking and never observe a mix of
// pre- and post-rotation fields.
//
// # Persistence
//
// The state is one CBOR record under a fixed key, prefixed by its big-endian version.
// Writes go through a Lua compare-and-set on that version so two replicas can never
// regress each other. The record TTL is twice the rotation interval.
//
// # What this package must NOT do
//
//   - Sign or parse tokens (jwt does).
//   - Swap the in-memory state before the new state is durably persisted.
package secret
