package internal

import (
	"bytes"
	"testing"
)

func TestNewSecretRejectsShortSizes(t *testing.T) {
	if _, err := NewSecret(16); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestNewSecretIsRandom(t *testing.T) {
	a, err := NewSecret(MinSecretSize)
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	b, err := NewSecret(MinSecretSize)
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	if len(a) != MinSecretSize || len(b) != MinSecretSize {
		t.Fatalf("unexpected sizes %d %d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatal("expected distinct secrets")
	}
}

func TestNewIDIsMonotonic(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		next := NewID()
		if next <= prev {
			t.Fatalf("expected increasing ids, got %s after %s", next, prev)
		}
		prev = next
	}
}
