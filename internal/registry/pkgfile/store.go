// Package pkgfile reads and rewrites the line-delimited JSON package files
// that make up the index's per-package record of published versions.
package pkgfile

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/onelson/estuary-go/internal/apperrors"
	"github.com/onelson/estuary-go/internal/registry/name"
)

// Store reads and writes package files rooted at an index directory.
type Store struct {
	root string
}

// New returns a Store rooted at the given index directory.
func New(root string) *Store {
	return &Store{root: root}
}

// RelPath returns the package file's path relative to the index root.
func (s *Store) RelPath(pkgName string) string {
	return name.FileFor(pkgName)
}

func (s *Store) absPath(pkgName string) string {
	return filepath.Join(s.root, filepath.FromSlash(s.RelPath(pkgName)))
}

// ReadAll returns every PackageVersion recorded for pkgName, in file order.
// A missing file yields an empty, non-error result.
func (s *Store) ReadAll(pkgName string) ([]PackageVersion, apperrors.Envelope) {
	path := s.absPath(pkgName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Envelope{}
		}
		return nil, apperrors.WrapError(apperrors.CodeIO, "failed to open package file", err)
	}
	defer f.Close()

	var versions []PackageVersion
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var pv PackageVersion
		if err := json.Unmarshal([]byte(line), &pv); err != nil {
			return nil, apperrors.WrapError(apperrors.CodeIO, "failed to parse package file line", err)
		}
		versions = append(versions, pv)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.WrapError(apperrors.CodeIO, "failed to scan package file", err)
	}
	return versions, apperrors.Envelope{}
}

// Append adds one PackageVersion as a new line, creating the file and its
// parent directories if necessary.
func (s *Store) Append(pkgName string, pv PackageVersion) apperrors.Envelope {
	path := s.absPath(pkgName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to create package directory", err)
	}
	line, err := json.Marshal(pv)
	if err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to serialize package version", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to open package file for append", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to append package version", err)
	}
	if err := f.Sync(); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to sync package file", err)
	}
	return apperrors.Envelope{}
}

// Rewrite truncates the package file and rewrites it from versions, in
// the supplied order.
func (s *Store) Rewrite(pkgName string, versions []PackageVersion) apperrors.Envelope {
	path := s.absPath(pkgName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to create package directory", err)
	}

	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to open package file for rewrite", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, pv := range versions {
		line, err := json.Marshal(pv)
		if err != nil {
			return apperrors.WrapError(apperrors.CodeIO, "failed to serialize package version", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return apperrors.WrapError(apperrors.CodeIO, "failed to write package version", err)
		}
	}
	if err := w.Flush(); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to flush package file", err)
	}
	if err := f.Sync(); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to sync package file", err)
	}
	return apperrors.Envelope{}
}

// Exists reports whether a version equal to vers is already present.
func Exists(versions []PackageVersion, vers string) bool {
	for _, v := range versions {
		if v.Vers == vers {
			return true
		}
	}
	return false
}
