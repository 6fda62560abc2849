package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "diabetes-risk/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each slot as a JSON string with a TTL that is refreshed
// on every write.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Slot, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewSessionStoreFailedError("get", err)
	}

	var slot Slot
	if err := json.Unmarshal([]byte(raw), &slot); err != nil {
		return nil, apperrors.NewSessionStoreFailedError("decode", err)
	}
	return &slot, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, slot Slot) error {
	data, err := json.Marshal(slot)
	if err != nil {
		return apperrors.NewSessionStoreFailedError("encode", err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return apperrors.NewSessionStoreFailedError("set", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return apperrors.NewSessionStoreFailedError("del", err)
	}
	return nil
}
