package session

import (
	"bytes"
	"testing"
)

// FuzzDecode runs arbitrary bytes through the session decoder. The decoder
// faces data written by our own encoder, but a corrupted Redis value must
// still fail cleanly rather than panic.
func FuzzDecode(f *testing.F) {
	if seed, err := Encode(sampleSession()); err == nil {
		f.Add(seed)
		f.Add(seed[:len(seed)-1])
	}
	f.Add([]byte{})
	f.Add([]byte{1})
	f.Add(bytes.Repeat([]byte{0xFF}, 128))

	f.Fuzz(func(t *testing.T, data []byte) {
		sess, err := Decode(data)
		if err != nil {
			return
		}

		reEncoded, err := Encode(sess)
		if err != nil {
			t.Fatalf("re-encode of decoded session failed: %v", err)
		}
		if !bytes.Equal(reEncoded, data) {
			t.Error("decode/encode roundtrip not canonical")
		}
	})
}
