package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KVStore is a device-local string key/value store kept in SQLite. Its
// synchronous GetItem/SetItem surface mirrors browser local storage.
type KVStore struct {
	db *sql.DB
}

func NewKVStore(dbPath string) (*KVStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &KVStore{db: db}, nil
}

// GetItem returns the value stored under key and whether it exists.
func (s *KVStore) GetItem(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(context.Background(), `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read key %s: %w", key, err)
	}
	return value, true, nil
}

// SetItem stores value under key, replacing any previous value.
func (s *KVStore) SetItem(key, value string) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write key %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
