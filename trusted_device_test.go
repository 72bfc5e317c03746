package authkit

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func testTrustedDeviceManager() *trustedDeviceManager {
	return newTrustedDeviceManager(TrustedDeviceConfig{
		Secret:     bytes.Repeat([]byte("k"), 32),
		Lifetime:   30 * 24 * time.Hour,
		CookieName: "authkit_trusted",
	})
}

func TestTrustedTokenRoundTrip(t *testing.T) {
	m := testTrustedDeviceManager()

	token, expires := m.Mint("u1", 3)
	if token == "" {
		t.Fatal("expected a token")
	}
	if remaining := time.Until(expires); remaining < 29*24*time.Hour {
		t.Fatalf("expected ~30d lifetime, got %v", remaining)
	}
	if !m.Validate(token, "u1", 3) {
		t.Fatal("expected minted token to validate")
	}
}

func TestTrustedTokenBoundToUserAndEpoch(t *testing.T) {
	m := testTrustedDeviceManager()
	token, _ := m.Mint("u1", 3)

	if m.Validate(token, "u2", 3) {
		t.Fatal("token must not validate for another user")
	}
	if m.Validate(token, "u1", 4) {
		t.Fatal("token must not validate after epoch advance")
	}
}

func TestTrustedTokenUserIDMayContainSeparator(t *testing.T) {
	m := testTrustedDeviceManager()
	const userID = "org:42:alice"

	token, _ := m.Mint(userID, 1)
	if !m.Validate(token, userID, 1) {
		t.Fatal("expected token for colon-bearing user ID to validate")
	}
	if m.Validate(token, "org:42", 1) {
		t.Fatal("token must not validate for a prefix of the user ID")
	}
	if m.Validate(token, userID, 2) {
		t.Fatal("token must not validate after epoch advance")
	}
}

func TestTrustedTokenExpires(t *testing.T) {
	m := testTrustedDeviceManager()
	token, _ := m.Mint("u1", 0)

	m.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	if m.Validate(token, "u1", 0) {
		t.Fatal("expected expired token rejected")
	}
}

func TestTrustedTokenTamperDetected(t *testing.T) {
	m := testTrustedDeviceManager()
	token, _ := m.Mint("u1", 0)

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	// Rebind the payload to another user, keeping the original signature.
	encodedU1 := base64.RawURLEncoding.EncodeToString([]byte("u1"))
	encodedU2 := base64.RawURLEncoding.EncodeToString([]byte("u2"))
	forged := strings.Replace(string(raw), encodedU1+":", encodedU2+":", 1)
	forgedToken := base64.StdEncoding.EncodeToString([]byte(forged))
	if m.Validate(forgedToken, "u2", 0) {
		t.Fatal("expected forged token rejected")
	}

	if m.Validate("not-base64!!", "u1", 0) {
		t.Fatal("expected garbage token rejected")
	}
	if m.Validate("", "u1", 0) {
		t.Fatal("expected empty token rejected")
	}
}

func TestTrustedTokenSecretMatters(t *testing.T) {
	m := testTrustedDeviceManager()
	other := newTrustedDeviceManager(TrustedDeviceConfig{
		Secret:   bytes.Repeat([]byte("x"), 32),
		Lifetime: 30 * 24 * time.Hour,
	})

	token, _ := other.Mint("u1", 0)
	if m.Validate(token, "u1", 0) {
		t.Fatal("token signed under a different secret must not validate")
	}
}

func TestTrustedDeviceCookieAttributes(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, engineTestConfig())

	cookie := engine.TrustedDeviceCookie("sometoken")
	if cookie.Name != "authkit_trusted" || cookie.Value != "sometoken" {
		t.Fatalf("unexpected cookie identity: %+v", cookie)
	}
	if !cookie.HttpOnly {
		t.Fatal("expected HttpOnly cookie")
	}
	if cookie.MaxAge != int(30*24*time.Hour/time.Second) {
		t.Fatalf("unexpected MaxAge %d", cookie.MaxAge)
	}

	clear := engine.ClearTrustedDeviceCookie()
	if clear.MaxAge != -1 || clear.Value != "" {
		t.Fatalf("expected expired empty cookie, got %+v", clear)
	}
}
