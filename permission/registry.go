package permission

import (
	"errors"
	"sync"
)

// Registry maps permission names to bit positions within a mask.
// Supports widths of 64, 128, 256, or 512 bits.
type Registry struct {
	maxBits int

	mu        sync.RWMutex
	nameToBit map[string]int
	bits      []Permission
	frozen    bool
}

// NewRegistry creates an empty registry. maxBits selects the mask width.
func NewRegistry(maxBits int) (*Registry, error) {
	if maxBits != 64 && maxBits != 128 && maxBits != 256 && maxBits != 512 {
		return nil, errors.New("invalid maxBits")
	}
	return &Registry{
		maxBits:   maxBits,
		nameToBit: make(map[string]int),
	}, nil
}

// Register assigns the next available bit to p. Must be called before [Registry.Freeze].
func (r *Registry) Register(p Permission) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if p.Resource == "" || p.Action == "" {
		return -1, ErrInvalidPermission
	}
	name := p.Name()
	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered: " + name)
	}

	nextBit := len(r.bits)
	if nextBit >= r.maxBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bits = append(r.bits, p)
	return nextBit, nil
}

// Bit returns the bit index for name, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Permission returns the permission at bit, or false if unassigned.
func (r *Registry) Permission(bit int) (Permission, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.bits) {
		return Permission{}, false
	}
	return r.bits[bit], true
}

// All returns every registered permission in bit order.
func (r *Registry) All() []Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Permission(nil), r.bits...)
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bits)
}

// MaxBits returns the mask width.
func (r *Registry) MaxBits() int {
	return r.maxBits
}

// NewMask returns an empty mask sized for this registry.
func (r *Registry) NewMask() *Mask {
	return NewMask(r.maxBits)
}

// FullMask returns a mask with every registered bit set.
func (r *Registry) FullMask() *Mask {
	m := NewMask(r.maxBits)
	for i := 0; i < r.Count(); i++ {
		m.Set(i)
	}
	return m
}

// Names returns the permission names set in m, in bit order.
func (r *Registry) Names(m *Mask) []string {
	if m == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, bit := range m.Bits() {
		if bit < len(r.bits) {
			out = append(out, r.bits[bit].Name())
		}
	}
	return out
}
