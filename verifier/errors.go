package verifier

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthenticated matches every [*Failure].
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrMissingToken is returned for empty bearer values.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrAdminNotFound is returned by directories for unknown admin ids.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrInactiveAdmin is returned for deactivated admin accounts.
	ErrInactiveAdmin = errors.New("admin account inactive")
	// ErrExternalDisabled is returned when no external provider is configured.
	ErrExternalDisabled = errors.New("external identity provider disabled")
	// ErrExternalMalformed is returned when the token cannot be decoded as a JWT.
	ErrExternalMalformed = errors.New("external token malformed")
	// ErrExternalExpired is returned when the external token is past its exp claim.
	ErrExternalExpired = errors.New("external token expired")
	// ErrExternalRejected is returned when the provider does not recognize the token.
	ErrExternalRejected = errors.New("external token rejected")
	// ErrExternalUnavailable is returned when the provider cannot be reached.
	ErrExternalUnavailable = errors.New("external identity provider unavailable")
)

// Failure is returned when neither path authenticated the token.
type Failure struct {
	AdminErr    error
	ExternalErr error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("unauthenticated")
	if f.AdminErr != nil {
		b.WriteString(": admin: ")
		b.WriteString(f.AdminErr.Error())
	}
	if f.ExternalErr != nil {
		b.WriteString("; external: ")
		b.WriteString(f.ExternalErr.Error())
	}
	return b.String()
}

// Unwrap exposes ErrUnauthenticated and both path errors to errors.Is.
func (f *Failure) Unwrap() []error {
	errs := []error{ErrUnauthenticated}
	if f.AdminErr != nil {
		errs = append(errs, f.AdminErr)
	}
	if f.ExternalErr != nil {
		errs = append(errs, f.ExternalErr)
	}
	return errs
}
