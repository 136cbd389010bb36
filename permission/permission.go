package permission

import (
	"errors"
	"strings"
)

// ErrInvalidPermission is returned for names that are not "resource:action".
var ErrInvalidPermission = errors.New("invalid permission name")

// Permission is an immutable (resource, action) pair.
type Permission struct {
	ID       int64  `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Name returns "resource:action".
func (p Permission) Name() string {
	return p.Resource + ":" + p.Action
}

// Ref names a permission without its id.
type Ref struct {
	Resource string
	Action   string
}

// R builds a [Ref].
func R(resource, action string) Ref {
	return Ref{Resource: resource, Action: action}
}

// Name returns "resource:action".
func (r Ref) Name() string {
	return r.Resource + ":" + r.Action
}

// ParseName splits "resource:action".
func ParseName(name string) (Ref, error) {
	resource, action, ok := strings.Cut(strings.TrimSpace(name), ":")
	if !ok || resource == "" || action == "" || strings.Contains(action, ":") {
		return Ref{}, ErrInvalidPermission
	}
	return Ref{Resource: resource, Action: action}, nil
}

// ParseRefs parses a list of names.
func ParseRefs(names ...string) ([]Ref, error) {
	out := make([]Ref, 0, len(names))
	for _, n := range names {
		ref, err := ParseName(n)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}
