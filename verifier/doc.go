// Package verifier resolves an inbound bearer token to exactly one principal.
//
// Two issuers are accepted. Tokens are tried as administrative tokens first
// (codec, denylist, directory lookup). Any failure on that path falls through
// to the external identity provider, which decodes the token, checks its
// expiry without trusting its issuer and confirms the user with the provider's
// endpoint. When both paths fail the returned [*Failure] keeps both causes so
// neither path hides the other's diagnostics.
package verifier
