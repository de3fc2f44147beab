// Package cache is the disk cache for fetched feed bodies and their HTTP
// validators. One bbolt file holds every source, keyed by a hash of the
// source URL. This is transport caching only; the event collection itself
// is never persisted.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotCached is returned by Get for URLs that were never stored.
var ErrNotCached = errors.New("cache: url not cached")

var (
	metaBucket = []byte("feed_meta")
	bodyBucket = []byte("feed_body")
)

// Entry holds the HTTP cache metadata for a single feed URL.
type Entry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is a bbolt-backed feed cache.
type Store struct {
	db *bolt.DB
}

// Open opens the cache database at path, creating the file and its buckets
// on first use.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("cache: create dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bodyBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached metadata and body for url, or ErrNotCached.
func (s *Store) Get(url string) (Entry, []byte, error) {
	var entry Entry
	var body []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		key := keyFor(url)
		rawMeta := tx.Bucket(metaBucket).Get(key)
		rawBody := tx.Bucket(bodyBucket).Get(key)
		if rawMeta == nil || rawBody == nil {
			return ErrNotCached
		}
		if err := json.Unmarshal(rawMeta, &entry); err != nil {
			return fmt.Errorf("cache: corrupt entry: %w", err)
		}
		// Bolt values are only valid inside the transaction.
		body = append([]byte(nil), rawBody...)
		return nil
	})
	if err != nil {
		return Entry{}, nil, err
	}
	return entry, body, nil
}

// Put stores body and its validators for url, replacing any previous entry.
func (s *Store) Put(url string, entry Entry, body []byte) error {
	entry.URL = url
	entry.UpdatedAt = time.Now().UTC()
	rawMeta, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		key := keyFor(url)
		if err := tx.Bucket(bodyBucket).Put(key, body); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(key, rawMeta)
	})
}

func keyFor(url string) []byte {
	sum := sha256.Sum256([]byte(url))
	return []byte(hex.EncodeToString(sum[:8]))
}
