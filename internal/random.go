package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
)

type ChallengeID [16]byte

func NewChallengeID() (string, error) {
	var id ChallengeID
	if _, err := rand.Read(id[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(id[:]), nil
}

// NewHexToken returns the lowercase hex encoding of n random bytes.
func NewHexToken(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// HashToken is the storage form of single-use tokens: only the digest is
// ever persisted.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// RandomCode draws length symbols uniformly from alphabet.
func RandomCode(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
