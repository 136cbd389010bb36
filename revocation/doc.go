// Package revocation implements the token denylist.
//
// Tokens are never stored. Each entry is keyed by the BLAKE3 fingerprint of the
// raw token and expires when the token itself would have expired, so the
// denylist shrinks on its own. A sorted-set index scored by expiry backs the
// live count and the explicit cleanup operation.
package revocation
