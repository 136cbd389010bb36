// Package jwt signs and verifies the administrative bearer tokens.
//
// Tokens are HS256 JWTs keyed by the rotating signing secret. Verification
// reads {current, previous} from one snapshot, checks the denylist before
// trusting any signature, tries current first and falls back to previous. A
// previous-secret success is still a success but is flagged so callers can ask
// the client to renew.
package jwt
