package jwt

import "errors"

var (
	// ErrInvalidFormat is returned for tokens that are not well-formed JWTs of a known type.
	ErrInvalidFormat = errors.New("token format invalid")
	// ErrInvalidSignature is returned when neither signing secret verifies the token,
	// or the issuer/audience does not match.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("token expired")
	// ErrRevoked is returned for denylisted tokens.
	ErrRevoked = errors.New("token revoked")
	// ErrStoreUnavailable is returned when the denylist cannot be consulted and
	// the codec is configured to fail closed.
	ErrStoreUnavailable = errors.New("revocation store unavailable")
	// ErrWrongTokenType is returned when an access token is presented where a
	// refresh token is required, or the reverse.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrNoSigningKey is returned before the signing secret has been loaded.
	ErrNoSigningKey = errors.New("no signing key loaded")
)
