package internal

import (
	"crypto/rand"
	"errors"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MinSecretSize is the smallest signing secret accepted, in bytes (256 bits).
const MinSecretSize = 32

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewSecret returns n bytes from crypto/rand. n must be at least MinSecretSize.
func NewSecret(n int) ([]byte, error) {
	if n < MinSecretSize {
		return nil, errors.New("secret size below 256 bits")
	}
	secret := make([]byte, n)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// NewID returns a lexicographically sortable identifier for rotation records and audit events.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
