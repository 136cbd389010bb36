package adminauth

import (
	"errors"

	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/verifier"
)

var (
	// ErrInvalidFormat reports a token that is not a well-formed token of a known type.
	ErrInvalidFormat = jwt.ErrInvalidFormat
	// ErrInvalidSignature reports a token signed by neither the current nor the previous secret.
	ErrInvalidSignature = jwt.ErrInvalidSignature
	// ErrExpired reports a token past its expiry.
	ErrExpired = jwt.ErrExpired
	// ErrRevoked reports a denylisted token. It is terminal.
	ErrRevoked = jwt.ErrRevoked
	// ErrStoreUnavailable reports that the denylist could not be consulted. It is retryable.
	ErrStoreUnavailable = jwt.ErrStoreUnavailable
	// ErrWrongTokenType reports a refresh token used for access or the reverse.
	ErrWrongTokenType = jwt.ErrWrongTokenType

	// ErrUnauthenticated is returned when no verification path accepted the token.
	ErrUnauthenticated = verifier.ErrUnauthenticated
	// ErrAdminNotFound is returned when a token names an administrator the directory does not know.
	ErrAdminNotFound = verifier.ErrAdminNotFound
	// ErrInactiveAdmin is returned for a deactivated administrator.
	ErrInactiveAdmin = verifier.ErrInactiveAdmin
	// ErrRateLimited is returned once a client exceeds its failed-authentication budget.
	ErrRateLimited = rate.ErrRateLimited

	// ErrInsufficientPermission is returned when a principal lacks a required permission.
	ErrInsufficientPermission = errors.New("insufficient permission")
	// ErrInsufficientRole is returned when a principal's role is below the required level.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrCannotManage is returned when the manager may not administer the target.
	ErrCannotManage = errors.New("cannot manage target administrator")
	// ErrNotAdmin is returned when an administrative operation is attempted by an external principal.
	ErrNotAdmin = errors.New("principal is not an administrator")
	// ErrEngineNotReady is returned by Engine operations called before Initialize succeeded.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrEngineConfigInvalid wraps configuration validation failures in Build.
	ErrEngineConfigInvalid = errors.New("invalid engine configuration")
)

// Retryable reports whether err is a transient store failure that a caller may retry.
// Every other authentication or authorization error is terminal.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
