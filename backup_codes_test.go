package authkit

import (
	"strings"
	"testing"
)

func testBackupCodeManager() *backupCodeManager {
	return newBackupCodeManager(BackupCodeConfig{Count: 10, HashCost: 4})
}

func TestBackupCodeGenerateFormat(t *testing.T) {
	m := testBackupCodeManager()

	codes, hashes, err := m.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(codes) != 10 || len(hashes) != 10 {
		t.Fatalf("expected 10 codes and hashes, got %d/%d", len(codes), len(hashes))
	}

	seen := map[string]bool{}
	for _, code := range codes {
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("expected xxxx-xxxx, got %q", code)
		}
		for _, r := range strings.ReplaceAll(code, "-", "") {
			if !strings.ContainsRune(backupCodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q in one batch", code)
		}
		seen[code] = true
	}
}

func TestBackupCodeMatchNormalizesInput(t *testing.T) {
	m := testBackupCodeManager()
	codes, hashes, err := m.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	variants := []string{
		codes[0],
		strings.ToUpper(codes[0]),
		strings.ReplaceAll(codes[0], "-", ""),
		"  " + codes[0] + "  ",
	}
	for _, variant := range variants {
		if m.Match(variant, hashes) < 0 {
			t.Fatalf("expected %q to match", variant)
		}
	}
}

func TestBackupCodeMatchRejections(t *testing.T) {
	m := testBackupCodeManager()
	_, hashes, err := m.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	for _, input := range []string{"", "abcd-efgh", "abcdefgh-too-long", "1234-5678"} {
		if idx := m.Match(input, hashes); idx >= 0 {
			t.Fatalf("expected %q rejected, matched index %d", input, idx)
		}
	}

	if m.Match("abcd-efgh", nil) >= 0 {
		t.Fatal("expected no match against empty hash set")
	}
}
