// Package keystore persists per-device API credentials across runs.
package keystore

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const devicesBucket = "devices"

// Store is a bbolt-backed deviceID → apiKey map. Writes commit per key,
// so concurrent device loops can share one store without clobbering
// each other's entries.
type Store struct {
	db *bolt.DB
}

// Open opens the store at path, creating file and bucket on first use.
// The open carries a short timeout so a stale lock from another process
// surfaces as an error instead of hanging forever.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("keystore: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(devicesBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("keystore: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the cached key for deviceID, or "" when none is stored.
func (s *Store) Get(deviceID string) (string, error) {
	var key string
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(devicesBucket)).Get([]byte(deviceID)); v != nil {
			key = string(v)
		}
		return nil
	})
	return key, err
}

// Put stores the key for deviceID, replacing any previous value. The
// write is durable once Put returns.
func (s *Store) Put(deviceID, apiKey string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(devicesBucket)).Put([]byte(deviceID), []byte(apiKey))
	})
}

func (s *Store) Close() error { return s.db.Close() }
