// Package config manages the index's config.json, committing it to the
// underlying git repository only when its content actually changes.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/onelson/estuary-go/internal/apperrors"
	"github.com/onelson/estuary-go/internal/registry/gitrepo"
)

// Config is the registry's published config.json: the URL templates
// clients use to resolve downloads and the API base.
type Config struct {
	DL  string `json:"dl"`
	API string `json:"api"`
}

const fileName = "config.json"

// Sync ensures the index at repo has a config.json matching want, writing
// and committing it only if the on-disk value differs (or is absent).
func Sync(repo *gitrepo.Repository, want Config) apperrors.Envelope {
	path := filepath.Join(repo.Path(), fileName)

	current, readErr := read(path)
	if readErr == nil && current == want {
		return apperrors.Envelope{}
	}

	data, err := json.MarshalIndent(want, "", "  ")
	if err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to marshal config", err)
	}

	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to open config.json for write", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to write config.json", err)
	}
	if err := f.Sync(); err != nil {
		return apperrors.WrapError(apperrors.CodeIO, "failed to sync config.json", err)
	}

	return repo.AddAndCommit(fileName, "update registry config")
}

func read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Read returns the config currently on disk for repo.
func Read(repo *gitrepo.Repository) (Config, apperrors.Envelope) {
	c, err := read(filepath.Join(repo.Path(), fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, apperrors.New(apperrors.CodeNotFound, "config.json not found")
		}
		return Config{}, apperrors.WrapError(apperrors.CodeIO, "failed to read config.json", err)
	}
	return c, apperrors.Envelope{}
}
