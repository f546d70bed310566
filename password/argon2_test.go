package password

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashVerifyRoundtrip(t *testing.T) {
	a, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	hash, err := a.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := a.Verify("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = a.Verify("wrong password entirely", hash)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashesAreSalted(t *testing.T) {
	a, _ := NewArgon2(testConfig())

	h1, _ := a.Hash("same password twice")
	h2, _ := a.Hash("same password twice")
	if h1 == h2 {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestVerifyRejectsMangledHash(t *testing.T) {
	a, _ := NewArgon2(testConfig())

	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=10,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$aGFzaA",
	} {
		if _, err := a.Verify("anything", encoded); err == nil {
			t.Errorf("mangled hash %q accepted", encoded)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, _ := NewArgon2(testConfig())
	hash, _ := weak.Hash("some password here")

	stronger := testConfig()
	stronger.Memory = 64 * 1024
	a, _ := NewArgon2(stronger)

	upgrade, err := a.NeedsUpgrade(hash)
	if err != nil {
		t.Fatal(err)
	}
	if !upgrade {
		t.Fatal("expected upgrade for weaker hash")
	}

	current, _ := a.Hash("some password here")
	upgrade, err = a.NeedsUpgrade(current)
	if err != nil {
		t.Fatal(err)
	}
	if upgrade {
		t.Fatal("current-parameter hash flagged for upgrade")
	}
}

func TestConfigFloors(t *testing.T) {
	cases := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range cases {
		if _, err := NewArgon2(cfg); err == nil {
			t.Errorf("case %d: config below floor accepted", i)
		}
	}
}
