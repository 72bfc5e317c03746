package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

var (
	// ErrMalformedHash is an exported constant or variable used by the authentication engine.
	ErrMalformedHash = errors.New("malformed argon2id hash")
	// ErrUnsupportedHash is an exported constant or variable used by the authentication engine.
	ErrUnsupportedHash = errors.New("unsupported hash algorithm or version")
)

// Params defines a public type used by authkit APIs.
//
// Params instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Params struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher defines a public type used by authkit APIs.
//
// Hasher instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Hasher struct {
	params Params
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(p Params) (*Hasher, error) {
	switch {
	case p.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case p.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case p.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case p.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	}

	return &Hasher{params: p}, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
// Hash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hasher) Hash(password string) (string, error) {
	// Raw string bytes exactly as provided, no Unicode normalization.
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Time,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hasher) Verify(password string, encodedHash string) (bool, error) {
	stored, err := decode(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		stored.salt,
		stored.time,
		stored.memory,
		stored.parallelism,
		uint32(len(stored.key)),
	)

	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsRehash reports whether a stored hash was produced with weaker
// parameters than the hasher is configured with.
//
// NeedsRehash may return an error when input validation, dependency calls, or security checks fail.
// NeedsRehash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	stored, err := decode(encodedHash)
	if err != nil {
		return false, err
	}

	if h.params.Memory > stored.memory {
		return true, nil
	}
	if h.params.Time > stored.time {
		return true, nil
	}
	if h.params.Parallelism > stored.parallelism {
		return true, nil
	}
	if h.params.KeyLength != uint32(len(stored.key)) {
		return true, nil
	}

	return false, nil
}

type storedHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decode(encodedHash string) (*storedHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedHash
	}
	if parts[1] != algorithmID {
		return nil, ErrUnsupportedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if !strings.HasPrefix(parts[2], "v=") || err != nil {
		return nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return nil, ErrUnsupportedHash
	}

	var out storedHash
	if err := parseCostParams(parts[3], &out); err != nil {
		return nil, err
	}

	out.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(out.salt) < int(minSaltLength) {
		return nil, ErrMalformedHash
	}

	out.key, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(out.key) == 0 {
		return nil, ErrMalformedHash
	}

	return &out, nil
}

func parseCostParams(part string, out *storedHash) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return ErrMalformedHash
	}

	var haveM, haveT, haveP bool
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return ErrMalformedHash
		}

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return ErrMalformedHash
			}
			out.memory = uint32(v)
			haveM = true
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return ErrMalformedHash
			}
			out.time = uint32(v)
			haveT = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return ErrMalformedHash
			}
			out.parallelism = uint8(v)
			haveP = true
		default:
			return ErrMalformedHash
		}
	}

	if !haveM || !haveT || !haveP {
		return ErrMalformedHash
	}

	return nil
}
