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
	pendingLoginKeyPrefix      = "apl"
	pendingLoginRecordVersion1 = 1
)

var (
	errPendingLoginNotFound = errors.New("pending login not found")
	errPendingLoginExpired  = errors.New("pending login expired")
	errPendingLoginBackend  = errors.New("pending login backend unavailable")
)

// pendingLogin is the half-authenticated state between a correct password
// and a verified second factor.
type pendingLogin struct {
	UserID      string
	ExpiresAt   int64
	Attempts    uint16
	TOTPEnabled bool
}

type pendingLoginStore struct {
	redis *redis.Client
}

func newPendingLoginStore(redisClient *redis.Client) *pendingLoginStore {
	return &pendingLoginStore{redis: redisClient}
}

func (s *pendingLoginStore) key(pendingLoginID string) string {
	return pendingLoginKeyPrefix + ":" + pendingLoginID
}

func (s *pendingLoginStore) Save(
	ctx context.Context,
	pendingLoginID string,
	record *pendingLogin,
	ttl time.Duration,
) error {
	encoded, err := encodePendingLogin(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(pendingLoginID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPendingLoginBackend, err)
	}
	return nil
}

func (s *pendingLoginStore) Get(ctx context.Context, pendingLoginID string) (*pendingLogin, error) {
	data, err := s.redis.Get(ctx, s.key(pendingLoginID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errPendingLoginNotFound
		}
		return nil, fmt.Errorf("%w: %v", errPendingLoginBackend, err)
	}

	record, err := decodePendingLogin(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(pendingLoginID)).Result()
		return nil, errPendingLoginExpired
	}
	return record, nil
}

// Delete reports whether a record was actually removed, which is how the
// engine detects replay of an already-consumed pending login.
func (s *pendingLoginStore) Delete(ctx context.Context, pendingLoginID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(pendingLoginID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errPendingLoginBackend, err)
	}
	return n > 0, nil
}

// RecordFailure bumps the attempt counter under optimistic concurrency
// control. It returns true when the budget is exhausted, in which case the
// record has been deleted.
func (s *pendingLoginStore) RecordFailure(
	ctx context.Context,
	pendingLoginID string,
	maxAttempts int,
) (bool, error) {
	const maxRetries = 4
	key := s.key(pendingLoginID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePendingLogin(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errPendingLoginExpired
			}

			record.Attempts++
			if int(record.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errPendingLoginExpired
			}

			updated, err := encodePendingLogin(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, errPendingLoginNotFound
			}
			if errors.Is(err, errPendingLoginExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", errPendingLoginBackend, err)
		}
		return exceeded, nil
	}

	return false, errPendingLoginNotFound
}

func encodePendingLogin(record *pendingLogin) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(pendingLoginRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	var totpFlag byte
	if record.TOTPEnabled {
		totpFlag = 1
	}
	buf.WriteByte(totpFlag)

	if len(record.UserID) > 65535 {
		return nil, errors.New("pending login user id length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodePendingLogin(data []byte) (*pendingLogin, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != pendingLoginRecordVersion1 {
		return nil, errors.New("invalid pending login version")
	}

	record := &pendingLogin{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	totpFlag, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	record.TOTPEnabled = totpFlag == 1

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, err
	}
	record.UserID = string(user)

	return record, nil
}
