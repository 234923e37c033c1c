package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSStore persists blobs under a root directory on local disk. Public URLs
// are derived from a configured base URL; the HTTP shell serves the root
// directory statically under that base path.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore creates the root directory if needed and returns an FSStore.
func NewFSStore(root, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &FSStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Upload writes the blob to disk. The write goes through a temp file and a
// rename so a failed upload never leaves a partial object at the key.
func (s *FSStore) Upload(_ context.Context, key string, content io.Reader, overwrite bool) error {
	if err := validateKey(key); err != nil {
		return err
	}

	dst := s.path(key)
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return ErrKeyExists
		}
	}

	data, err := readLimited(content)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close blob: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize blob: %w", err)
	}
	return nil
}

// PublicURL derives the public locator for a key.
func (s *FSStore) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// Delete removes every key in the batch.
func (s *FSStore) Delete(_ context.Context, keys []string) error {
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}
		if err := os.Remove(s.path(key)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
			}
			return fmt.Errorf("delete blob %s: %w", key, err)
		}
	}
	return nil
}

// Root returns the directory blobs are stored under, for static serving.
func (s *FSStore) Root() string {
	return s.root
}
