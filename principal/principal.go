// Package principal defines the authenticated identity attached to a request.
//
// Exactly one principal exists per authenticated request: an [Admin] issued by
// this service or an [External] user confirmed by the marketplace identity
// provider. Both are immutable after construction.
package principal

import "context"

// Kind identifies which issuer authenticated the principal.
type Kind string

const (
	// KindAdmin is an administrator authenticated by a service-issued token.
	KindAdmin Kind = "admin"
	// KindExternal is an end user authenticated by the external identity provider.
	KindExternal Kind = "external"
)

// Principal is implemented only by [Admin] and [External].
type Principal interface {
	Kind() Kind
	SubjectID() string
	EmailAddress() string
	principal()
}

// Admin is an administrative principal. Role is read from the directory at
// verification time. Permissions is the snapshot embedded in the token.
type Admin struct {
	ID          string
	Email       string
	Role        string
	Permissions []string
}

func (*Admin) Kind() Kind             { return KindAdmin }
func (a *Admin) SubjectID() string    { return a.ID }
func (a *Admin) EmailAddress() string { return a.Email }
func (*Admin) principal()             {}

// HasPermissionName reports whether name is in the token snapshot.
func (a *Admin) HasPermissionName(name string) bool {
	for _, p := range a.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// External is an end user of the marketplace.
type External struct {
	ID    string
	Email string
}

func (*External) Kind() Kind             { return KindExternal }
func (e *External) SubjectID() string    { return e.ID }
func (e *External) EmailAddress() string { return e.Email }
func (*External) principal()             {}

type contextKey struct{}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok && p != nil
}

// AdminFromContext returns the admin principal stored in ctx, if any.
func AdminFromContext(ctx context.Context) (*Admin, bool) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	a, ok := p.(*Admin)
	return a, ok
}
