package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// KVStore implements domain.KeyValueStore with plain string keys under the
// "kv:" namespace.
type KVStore struct {
	c *Client
}

// NewKVStore creates a KVStore backed by the given Client.
func NewKVStore(c *Client) *KVStore {
	return &KVStore{c: c}
}

func (s *KVStore) GetItem(ctx context.Context, key string) (string, error) {
	v, err := s.c.rdb.Get(ctx, s.c.key("kv:", key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return v, nil
}

func (s *KVStore) SetItem(ctx context.Context, key, value string) error {
	if err := s.c.rdb.Set(ctx, s.c.key("kv:", key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) RemoveItem(ctx context.Context, key string) error {
	if err := s.c.rdb.Del(ctx, s.c.key("kv:", key)).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", key, err)
	}
	return nil
}

var _ domain.KeyValueStore = (*KVStore)(nil)
