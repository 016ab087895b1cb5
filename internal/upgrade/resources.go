package upgrade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirResourceStore keeps named assets as files under a directory. The
// actual asset payload is delivered out of band (the archive from a
// firmware upgrade unpacks into the same tree); this store only tracks
// presence so control commands can check a resource exists.
type DirResourceStore struct {
	dir string
}

// NewDirResourceStore creates the backing directory if needed.
func NewDirResourceStore(dir string) (*DirResourceStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating resource directory: %w", err)
	}
	return &DirResourceStore{dir: dir}, nil
}

// Add registers a resource name.
func (s *DirResourceStore) Add(_ context.Context, name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0640)
	if err != nil {
		return fmt.Errorf("registering resource %q: %w", name, err)
	}
	return f.Close()
}

// Remove deletes a resource. Removing an absent resource is not an
// error; the backend retries deletions.
func (s *DirResourceStore) Remove(_ context.Context, name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing resource %q: %w", name, err)
	}
	return nil
}

// Has reports whether a resource is registered.
func (s *DirResourceStore) Has(name string) bool {
	path, err := s.resolve(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// resolve rejects names that would escape the resource directory.
func (s *DirResourceStore) resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("upgrade: invalid resource name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}
