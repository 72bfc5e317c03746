package authkit

import (
	"testing"
	"time"
)

func testTOTPManager() *totpManager {
	return newTOTPManager(TOTPConfig{
		Issuer:    "authkit",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
		SetupTTL:  10 * time.Minute,
	})
}

func TestTOTPGenerateSecretProducesProvisioningURL(t *testing.T) {
	m := testTOTPManager()

	secret, url, err := m.GenerateSecret("alice@example.test")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if secret == "" {
		t.Fatal("expected a secret")
	}
	if url == "" || url[:15] != "otpauth://totp/" {
		t.Fatalf("expected otpauth url, got %q", url)
	}
}

func TestTOTPVerifyAcceptsAdjacentWindow(t *testing.T) {
	m := testTOTPManager()
	secret, _, err := m.GenerateSecret("alice@example.test")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	now := time.Unix(1700000000, 0)
	previous := codeForSecret(t, m.cfg, secret, now.Add(-30*time.Second))
	if !m.Verify(previous, secret, now) {
		t.Fatal("expected previous-window code accepted with skew 1")
	}

	next := codeForSecret(t, m.cfg, secret, now.Add(30*time.Second))
	if !m.Verify(next, secret, now) {
		t.Fatal("expected next-window code accepted with skew 1")
	}

	// Skew 1 means exactly one step of drift either way; two steps is out.
	twoBehind := codeForSecret(t, m.cfg, secret, now.Add(-60*time.Second))
	if m.Verify(twoBehind, secret, now) {
		t.Fatal("expected code two windows old rejected")
	}

	twoAhead := codeForSecret(t, m.cfg, secret, now.Add(60*time.Second))
	if m.Verify(twoAhead, secret, now) {
		t.Fatal("expected code two windows ahead rejected")
	}

	stale := codeForSecret(t, m.cfg, secret, now.Add(-120*time.Second))
	if m.Verify(stale, secret, now) {
		t.Fatal("expected code four windows old rejected")
	}
}

func TestTOTPVerifyRejectsWrongLength(t *testing.T) {
	m := testTOTPManager()
	secret, _, err := m.GenerateSecret("alice@example.test")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	for _, code := range []string{"", "12345", "1234567", "12345678"} {
		if m.Verify(code, secret, time.Now()) {
			t.Fatalf("expected %q rejected", code)
		}
	}
}
