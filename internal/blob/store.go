// Package blob stores attachment payloads as opaque objects keyed by
// generated names. Callers never choose keys, which keeps uploaded
// filenames out of the filesystem.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store writes and reads attachment blobs under a local directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Put streams the payload into a new object and returns its generated
// key. The original filename only survives as metadata in the DB.
func (s *Store) Put(r io.Reader) (string, error) {
	key := uuid.NewString()
	f, err := os.OpenFile(filepath.Join(s.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader for the object with the given key.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	if filepath.Base(key) != key {
		return nil, fmt.Errorf("invalid blob key %q", key)
	}
	return os.Open(filepath.Join(s.dir, key))
}

// Delete removes the object; missing objects are not an error.
func (s *Store) Delete(key string) error {
	if filepath.Base(key) != key {
		return fmt.Errorf("invalid blob key %q", key)
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
