package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// KVStore implements domain.KeyValueStore on the kv_items table.
type KVStore struct {
	pool *pgxpool.Pool
}

// NewKVStore creates a KVStore backed by the given pool.
func NewKVStore(pool *pgxpool.Pool) *KVStore {
	return &KVStore{pool: pool}
}

func (s *KVStore) GetItem(ctx context.Context, key string) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_items WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get item %s: %w", key, err)
	}
	return v, nil
}

func (s *KVStore) SetItem(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO kv_items (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("postgres: set item %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_items WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres: remove item %s: %w", key, err)
	}
	return nil
}

var _ domain.KeyValueStore = (*KVStore)(nil)
