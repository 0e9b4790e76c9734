// Package archive stores and serves the opaque .crate blobs published to
// the registry, content-addressed by (name, version).
package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/onelson/estuary-go/internal/apperrors"
)

// Store is a directory of archive files rooted at a configured path.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating it if necessary.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return &Store{root: root}, nil
}

// Path returns the deterministic on-disk path for (name, version).
func (s *Store) Path(name, version string) string {
	filename := fmt.Sprintf("%s-%s.crate", name, version)
	return filepath.Join(s.root, name, filename)
}

// Put writes bytes to the archive path for (name, version), creating
// parent directories and truncating any existing file.
func (s *Store) Put(name, version string, data []byte) apperrors.Envelope {
	path := s.Path(name, version)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to create archive directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to write archive", err)
	}
	return apperrors.Envelope{}
}

// Get reads the archive bytes for (name, version).
func (s *Store) Get(name, version string) ([]byte, apperrors.Envelope) {
	path := s.Path(name, version)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.CodeNotFound, "archive not found")
		}
		return nil, apperrors.WrapError(apperrors.CodeIO, "failed to read archive", err)
	}
	return data, apperrors.Envelope{}
}

// Exists reports whether an archive is present for (name, version).
func (s *Store) Exists(name, version string) bool {
	_, err := os.Stat(s.Path(name, version))
	return err == nil
}
