package passhash

import (
	"strings"
	"testing"
)

// fast parameters so the test suite does not burn CPU on key derivation
var testParams = Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestHashVerifyRoundtrip(t *testing.T) {
	encoded, err := HashWithParams("1234", testParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}

	ok, err := Verify("1234", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = Verify("4321", encoded)
	if err != nil {
		t.Fatalf("verify mismatch: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashUniqueSalts(t *testing.T) {
	a, err := HashWithParams("555", testParams)
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashWithParams("555", testParams)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two hashes of the same password share a salt")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$not-base64!$aGFzaA",
	} {
		if _, err := Verify("x", encoded); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}
