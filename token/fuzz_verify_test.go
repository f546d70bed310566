package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// FuzzVerify throws arbitrary strings at the validator. The contract: never
// panic, and every failure maps to exactly one of the three sentinels.
func FuzzVerify(f *testing.F) {
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "sessionauth-test",
	})
	if err != nil {
		f.Fatal(err)
	}

	f.Add("")
	f.Add("a.b.c")
	f.Add(strings.Repeat(".", 10))
	f.Add("eyJhbGciOiJIUzI1NiJ9.e30.")
	if tok, err := m.Sign("user-1", "trader", "sess-abc"); err == nil {
		f.Add(tok)
		f.Add(tok[:len(tok)-2])
	}

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := m.Verify(input)
		if err == nil {
			if claims == nil {
				t.Fatal("nil claims with nil error")
			}
			return
		}
		if !errors.Is(err, ErrMalformed) &&
			!errors.Is(err, ErrSignatureInvalid) &&
			!errors.Is(err, ErrExpired) {
			t.Fatalf("error escaped the sentinel taxonomy: %v", err)
		}
	})
}
