// Package blobstore provides key-addressed object storage for medical files.
// It defines the Store interface, an in-memory implementation suitable for
// testing and the in-process store driver, and a filesystem-backed
// implementation for single-node deployments. Keys are composed as
// "<patientID>/<generated filename>" under a single bucket namespace.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrKeyNotFound  = errors.New("blob key not found")
	ErrKeyExists    = errors.New("blob key already exists")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrEmptyKey     = errors.New("blob key is required")
)

// MaxFileSize is the maximum allowed blob size in bytes (20 MB).
const MaxFileSize = 20 * 1024 * 1024

// ---------------------------------------------------------------------------
// Store interface
// ---------------------------------------------------------------------------

// Store is the contract for blob storage backends. PublicURL is a pure
// derivation from the key and never performs a network call; Delete accepts
// a batch of keys and removes all of them or reports the first failure.
type Store interface {
	Upload(ctx context.Context, key string, content io.Reader, overwrite bool) error
	PublicURL(key string) string
	Delete(ctx context.Context, keys []string) error
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

// readLimited reads content, enforcing MaxFileSize.
func readLimited(content io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// MemoryStore is a thread-safe, in-memory Store for testing and the
// in-process store driver.
type MemoryStore struct {
	baseURL string

	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns a ready-to-use MemoryStore. baseURL is the prefix
// public URLs are derived from.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		blobs:   make(map[string][]byte),
	}
}

// Upload stores the blob under key. With overwrite set, an existing object at
// the same key is replaced without error; without it, ErrKeyExists is
// returned.
func (s *MemoryStore) Upload(_ context.Context, key string, content io.Reader, overwrite bool) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := readLimited(content)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; ok && !overwrite {
		return ErrKeyExists
	}
	s.blobs[key] = data
	return nil
}

// PublicURL derives the public locator for a key.
func (s *MemoryStore) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// Delete removes every key in the batch. A missing key fails the batch with
// ErrKeyNotFound; keys removed before the failure stay removed.
func (s *MemoryStore) Delete(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, ok := s.blobs[key]; !ok {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		delete(s.blobs, key)
	}
	return nil
}

// Get returns the stored content for a key. Used by tests and the in-process
// file handler.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	return data, ok
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
