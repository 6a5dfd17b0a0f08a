// Package local is the default on-disk key-value store: a LevelDB directory
// holding the account key and other client state.
package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// Store implements domain.KeyValueStore on LevelDB.
type Store struct {
	db   *leveldb.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("local: open %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the database lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database directory.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) GetItem(_ context.Context, key string) (string, error) {
	v, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("local: get %s: %w", key, err)
	}
	return string(v), nil
}

func (s *Store) SetItem(_ context.Context, key, value string) error {
	if err := s.db.Put([]byte(key), []byte(value), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("local: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) RemoveItem(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("local: delete %s: %w", key, err)
	}
	return nil
}

var _ domain.KeyValueStore = (*Store)(nil)
