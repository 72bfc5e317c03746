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
	totpSetupKeyPrefix      = "ats"
	totpSetupRecordVersion1 = 1
)

var (
	errTOTPSetupNotFound = errors.New("totp setup not found")
	errTOTPSetupBackend  = errors.New("totp setup backend unavailable")
)

// totpSetup stages a generated secret until the user proves possession
// with a first valid code. Nothing is persisted durably before that.
type totpSetup struct {
	Secret    string
	ExpiresAt int64
}

type totpSetupStore struct {
	redis *redis.Client
}

func newTOTPSetupStore(redisClient *redis.Client) *totpSetupStore {
	return &totpSetupStore{redis: redisClient}
}

func (s *totpSetupStore) key(userID string) string {
	return totpSetupKeyPrefix + ":" + userID
}

func (s *totpSetupStore) Save(ctx context.Context, userID string, record *totpSetup, ttl time.Duration) error {
	encoded, err := encodeTOTPSetup(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errTOTPSetupBackend, err)
	}
	return nil
}

func (s *totpSetupStore) Get(ctx context.Context, userID string) (*totpSetup, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errTOTPSetupNotFound
		}
		return nil, fmt.Errorf("%w: %v", errTOTPSetupBackend, err)
	}

	record, err := decodeTOTPSetup(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(userID)).Result()
		return nil, errTOTPSetupNotFound
	}
	return record, nil
}

func (s *totpSetupStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errTOTPSetupBackend, err)
	}
	return nil
}

func encodeTOTPSetup(record *totpSetup) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(totpSetupRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Secret) > 65535 {
		return nil, errors.New("totp setup secret length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Secret))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Secret)

	return buf.Bytes(), nil
}

func decodeTOTPSetup(data []byte) (*totpSetup, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != totpSetupRecordVersion1 {
		return nil, errors.New("invalid totp setup version")
	}

	record := &totpSetup{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var secretLen uint16
	if err := binary.Read(reader, binary.BigEndian, &secretLen); err != nil {
		return nil, err
	}
	secret := make([]byte, secretLen)
	if _, err := io.ReadFull(reader, secret); err != nil {
		return nil, err
	}
	record.Secret = string(secret)

	return record, nil
}
