package password

import (
	"errors"
	"strings"
	"testing"
)

func testParams() Params {
	return Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := New(testParams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to succeed")
	}

	ok, err = hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected verification to fail")
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	hasher, err := New(testParams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	first, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestNewRejectsWeakParams(t *testing.T) {
	weaken := []func(*Params){
		func(p *Params) { p.Memory = 4 * 1024 },
		func(p *Params) { p.Time = 0 },
		func(p *Params) { p.Parallelism = 0 },
		func(p *Params) { p.SaltLength = 8 },
		func(p *Params) { p.KeyLength = 8 },
	}
	for i, mutate := range weaken {
		p := testParams()
		mutate(&p)
		if _, err := New(p); err == nil {
			t.Fatalf("case %d: expected weak params rejected", i)
		}
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	hasher, err := New(testParams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	malformed := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$",        // short salt, empty key
		"$argon2id$v=19$m=8192,t=1$saltsaltsaltsalt$a", // missing cost param
		"$argon2id$vX19$m=8192,t=1,p=1$aaaa$bbbb",
	}
	for _, hash := range malformed {
		if _, err := hasher.Verify("anything", hash); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("expected ErrMalformedHash for %q, got %v", hash, err)
		}
	}

	unsupported := []string{
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA==$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA==$a2V5a2V5a2V5a2V5a2V5a2V5",
	}
	for _, hash := range unsupported {
		if _, err := hasher.Verify("anything", hash); !errors.Is(err, ErrUnsupportedHash) {
			t.Fatalf("expected ErrUnsupportedHash for %q, got %v", hash, err)
		}
	}
}

func TestNeedsRehashDetectsCostUpgrades(t *testing.T) {
	old, err := New(testParams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	hash, err := old.Hash("some-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	same, err := old.NeedsRehash(hash)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if same {
		t.Fatal("hash at current params must not need a rehash")
	}

	upgraded := testParams()
	upgraded.Time = 2
	stronger, err := New(upgraded)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	needs, err := stronger.NeedsRehash(hash)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if !needs {
		t.Fatal("expected rehash after a cost upgrade")
	}
}
