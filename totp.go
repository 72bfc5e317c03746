package authkit

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

type totpManager struct {
	cfg TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{cfg: cfg}
}

func (m *totpManager) algorithm() otp.Algorithm {
	switch strings.ToUpper(m.cfg.Algorithm) {
	case "SHA256":
		return otp.AlgorithmSHA256
	case "SHA512":
		return otp.AlgorithmSHA512
	default:
		return otp.AlgorithmSHA1
	}
}

// GenerateSecret returns a fresh base32 secret together with the
// otpauth:// provisioning URL authenticator apps consume.
func (m *totpManager) GenerateSecret(accountName string) (secret string, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.cfg.Issuer,
		AccountName: accountName,
		Period:      uint(m.cfg.Period),
		Digits:      otp.Digits(m.cfg.Digits),
		Algorithm:   m.algorithm(),
		SecretSize:  20,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Verify checks code against secret at the given instant, accepting the
// configured number of adjacent time steps.
func (m *totpManager) Verify(code string, secret string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != m.cfg.Digits {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    uint(m.cfg.Period),
		Skew:      uint(m.cfg.Skew),
		Digits:    otp.Digits(m.cfg.Digits),
		Algorithm: m.algorithm(),
	})
	return err == nil && ok
}
