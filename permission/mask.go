package permission

import "math/bits"

// Mask is a fixed-width permission bitmask. Out-of-range bits are ignored.
type Mask struct {
	width int
	words []uint64
}

// NewMask returns an empty mask of the given width.
func NewMask(width int) *Mask {
	if width < 0 {
		width = 0
	}
	return &Mask{width: width, words: make([]uint64, (width+63)/64)}
}

// Width returns the number of addressable bits.
func (m *Mask) Width() int {
	return m.width
}

// Has reports whether bit is set.
func (m *Mask) Has(bit int) bool {
	if m == nil || bit < 0 || bit >= m.width {
		return false
	}
	return m.words[bit/64]&(1<<(uint(bit)%64)) != 0
}

// Set sets bit.
func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= m.width {
		return
	}
	m.words[bit/64] |= 1 << (uint(bit) % 64)
}

// Clear clears bit.
func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= m.width {
		return
	}
	m.words[bit/64] &^= 1 << (uint(bit) % 64)
}

// Union adds every bit of o.
func (m *Mask) Union(o *Mask) {
	if o == nil {
		return
	}
	for i := range m.words {
		if i < len(o.words) {
			m.words[i] |= o.words[i]
		}
	}
}

// Subtract removes every bit of o.
func (m *Mask) Subtract(o *Mask) {
	if o == nil {
		return
	}
	for i := range m.words {
		if i < len(o.words) {
			m.words[i] &^= o.words[i]
		}
	}
}

// Clone returns an independent copy.
func (m *Mask) Clone() *Mask {
	if m == nil {
		return nil
	}
	out := &Mask{width: m.width, words: make([]uint64, len(m.words))}
	copy(out.words, m.words)
	return out
}

// Count returns the number of set bits.
func (m *Mask) Count() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, w := range m.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Bits returns the set bit indexes in ascending order.
func (m *Mask) Bits() []int {
	if m == nil {
		return nil
	}
	out := make([]int, 0, m.Count())
	for i, w := range m.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, i*64+tz)
			w &^= 1 << uint(tz)
		}
	}
	return out
}
