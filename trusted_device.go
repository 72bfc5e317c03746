package authkit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// trustedDeviceManager mints and validates stateless remember-this-device
// tokens. A token binds a user ID and that user's trusted-device epoch, so
// advancing the epoch revokes every outstanding token in O(1).
type trustedDeviceManager struct {
	cfg TrustedDeviceConfig
	now func() time.Time
}

func newTrustedDeviceManager(cfg TrustedDeviceConfig) *trustedDeviceManager {
	return &trustedDeviceManager{cfg: cfg, now: time.Now}
}

func (m *trustedDeviceManager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.cfg.Secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Mint returns an opaque token valid for the configured lifetime. The
// user ID travels base64url-encoded inside the payload, so IDs containing
// the field separator stay valid.
func (m *trustedDeviceManager) Mint(userID string, epoch uint32) (string, time.Time) {
	expires := m.now().Add(m.cfg.Lifetime)
	encodedUser := base64.RawURLEncoding.EncodeToString([]byte(userID))
	payload := fmt.Sprintf("%s:%d:%d", encodedUser, epoch, expires.Unix())
	signature := m.sign(payload)
	token := base64.StdEncoding.EncodeToString([]byte(payload + ":" + signature))
	return token, expires
}

// Validate reports whether token is authentic, unexpired, and bound to the
// given user at their current epoch. All failure modes look identical to
// the caller.
func (m *trustedDeviceManager) Validate(token string, userID string, epoch uint32) bool {
	raw, err := base64.StdEncoding.Strict().DecodeString(token)
	if err != nil {
		return false
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 4 {
		return false
	}
	tokenUser, tokenEpoch, tokenExpiry, signature := parts[0], parts[1], parts[2], parts[3]

	payload := tokenUser + ":" + tokenEpoch + ":" + tokenExpiry
	expected := m.sign(payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return false
	}

	expiresUnix, err := strconv.ParseInt(tokenExpiry, 10, 64)
	if err != nil || m.now().After(time.Unix(expiresUnix, 0)) {
		return false
	}

	parsedEpoch, err := strconv.ParseUint(tokenEpoch, 10, 32)
	if err != nil {
		return false
	}

	decodedUser, err := base64.RawURLEncoding.DecodeString(tokenUser)
	if err != nil {
		return false
	}

	return string(decodedUser) == userID && uint32(parsedEpoch) == epoch
}

// TrustedDeviceCookie wraps a minted token into a cookie ready to set on
// the response.
//
// TrustedDeviceCookie may return an error when input validation, dependency calls, or security checks fail.
// TrustedDeviceCookie does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) TrustedDeviceCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     e.config.TrustedDevice.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(e.config.TrustedDevice.Lifetime / time.Second),
		HttpOnly: true,
		Secure:   e.config.Security.RequireSecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearTrustedDeviceCookie returns a cookie that removes the trusted-device
// token from the client.
//
// ClearTrustedDeviceCookie may return an error when input validation, dependency calls, or security checks fail.
// ClearTrustedDeviceCookie does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ClearTrustedDeviceCookie() *http.Cookie {
	return &http.Cookie{
		Name:     e.config.TrustedDevice.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   e.config.Security.RequireSecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
