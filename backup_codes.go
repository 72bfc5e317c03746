package authkit

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/stdozor/authkit/internal"
)

// Symbols that survive handwriting: no 0/O, 1/l/i pairs.
const backupCodeAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

const backupCodeGroupLen = 4

type backupCodeManager struct {
	cfg BackupCodeConfig
}

func newBackupCodeManager(cfg BackupCodeConfig) *backupCodeManager {
	return &backupCodeManager{cfg: cfg}
}

// Generate produces a fresh batch of plaintext codes and their bcrypt
// hashes. The plaintext is shown to the user exactly once; only hashes
// are ever stored.
func (m *backupCodeManager) Generate() (codes []string, hashes []string, err error) {
	codes = make([]string, 0, m.cfg.Count)
	hashes = make([]string, 0, m.cfg.Count)

	for i := 0; i < m.cfg.Count; i++ {
		raw, err := internal.RandomCode(backupCodeAlphabet, 2*backupCodeGroupLen)
		if err != nil {
			return nil, nil, err
		}
		code := raw[:backupCodeGroupLen] + "-" + raw[backupCodeGroupLen:]

		hash, err := bcrypt.GenerateFromPassword([]byte(raw), m.cfg.HashCost)
		if err != nil {
			return nil, nil, err
		}

		codes = append(codes, code)
		hashes = append(hashes, string(hash))
	}

	return codes, hashes, nil
}

// Match scans the stored hash set for the given code and returns the index
// of the matching hash, or -1. The caller removes the matched entry before
// treating the code as accepted.
func (m *backupCodeManager) Match(code string, hashes []string) int {
	normalized := normalizeBackupCode(code)
	if len(normalized) != 2*backupCodeGroupLen {
		return -1
	}

	for i, hash := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalized)) == nil {
			return i
		}
	}
	return -1
}

func normalizeBackupCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "")
}
