package internal

import (
	"strings"
	"testing"
)

// FuzzDecodeRefreshToken feeds arbitrary strings through the refresh token
// decoder. Invalid inputs must fail cleanly, never panic.
func FuzzDecodeRefreshToken(f *testing.F) {
	f.Add("")
	f.Add("!!!not-base64!!!")
	f.Add("aGVsbG8")
	f.Add(strings.Repeat("A", 64))
	f.Add(strings.Repeat("_", 200))

	if sid, err := NewSessionID(); err == nil {
		if secret, err := NewRefreshSecret(); err == nil {
			if token, err := EncodeRefreshToken(sid.String(), secret); err == nil {
				f.Add(token)
			}
		}
	}

	f.Fuzz(func(t *testing.T, input string) {
		sessionID, secret, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}

		reEncoded, err := EncodeRefreshToken(sessionID, secret)
		if err != nil {
			t.Fatalf("re-encode of decoded token failed: %v", err)
		}

		sid2, secret2, err := DecodeRefreshToken(reEncoded)
		if err != nil {
			t.Fatalf("roundtrip decode failed: %v", err)
		}
		if sid2 != sessionID || secret2 != secret {
			t.Error("roundtrip mismatch")
		}
	})
}
