package authkit

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	webauthnChallengeKeyPrefix      = "awc"
	webauthnChallengeRecordVersion1 = 1
)

// Ceremony kinds tracked between Begin* and Finish*.
const (
	ceremonyRegistration uint8 = iota + 1
	ceremonySecondFactor
	ceremonyPasskeyLogin
)

var (
	errWebauthnChallengeNotFound = errors.New("webauthn challenge not found")
	errWebauthnChallengeBackend  = errors.New("webauthn challenge backend unavailable")
)

// webauthnChallenge carries the server-side half of an in-flight ceremony:
// the delegated verifier's session data plus the engine's own bindings.
type webauthnChallenge struct {
	Mode      uint8
	IsPasskey bool
	UserID    string
	// Ref holds a per-mode reference: the friendly credential name during
	// registration, the pending-login ID during second-factor assertion.
	Ref       string
	Session   []byte
	ExpiresAt int64
}

type webauthnChallengeStore struct {
	redis *redis.Client
}

func newWebauthnChallengeStore(redisClient *redis.Client) *webauthnChallengeStore {
	return &webauthnChallengeStore{redis: redisClient}
}

func (s *webauthnChallengeStore) key(ceremonyID string) string {
	return webauthnChallengeKeyPrefix + ":" + ceremonyID
}

func (s *webauthnChallengeStore) Save(
	ctx context.Context,
	ceremonyID string,
	record *webauthnChallenge,
	ttl time.Duration,
) error {
	encoded, err := encodeWebauthnChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(ceremonyID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errWebauthnChallengeBackend, err)
	}
	return nil
}

// Consume atomically fetches and deletes the ceremony state. A second call
// for the same ceremony ID fails, which is what makes Finish* single-shot.
func (s *webauthnChallengeStore) Consume(ctx context.Context, ceremonyID string) (*webauthnChallenge, error) {
	data, err := s.redis.GetDel(ctx, s.key(ceremonyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errWebauthnChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errWebauthnChallengeBackend, err)
	}

	record, err := decodeWebauthnChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, errWebauthnChallengeNotFound
	}
	return record, nil
}

func encodeWebauthnChallenge(record *webauthnChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(webauthnChallengeRecordVersion1)
	buf.WriteByte(record.Mode)

	var passkeyFlag byte
	if record.IsPasskey {
		passkeyFlag = 1
	}
	buf.WriteByte(passkeyFlag)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 || len(record.Ref) > 65535 {
		return nil, errors.New("webauthn challenge field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Ref))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Ref)

	if len(record.Session) > 1<<20 {
		return nil, errors.New("webauthn session data too large")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(record.Session))); err != nil {
		return nil, err
	}
	buf.Write(record.Session)

	return buf.Bytes(), nil
}

func decodeWebauthnChallenge(data []byte) (*webauthnChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != webauthnChallengeRecordVersion1 {
		return nil, errors.New("invalid webauthn challenge version")
	}

	record := &webauthnChallenge{}
	if record.Mode, err = reader.ReadByte(); err != nil {
		return nil, err
	}

	passkeyFlag, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	record.IsPasskey = passkeyFlag == 1

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, err
	}
	record.UserID = string(user)

	var refLen uint16
	if err := binary.Read(reader, binary.BigEndian, &refLen); err != nil {
		return nil, err
	}
	ref := make([]byte, refLen)
	if _, err := io.ReadFull(reader, ref); err != nil {
		return nil, err
	}
	record.Ref = string(ref)

	var sessionLen uint32
	if err := binary.Read(reader, binary.BigEndian, &sessionLen); err != nil {
		return nil, err
	}
	session := make([]byte, sessionLen)
	if _, err := io.ReadFull(reader, session); err != nil {
		return nil, err
	}
	record.Session = session

	return record, nil
}
