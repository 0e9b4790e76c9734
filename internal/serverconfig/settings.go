// Package serverconfig resolves the registry's process-level settings
// from CLI flags and ESTUARY_* environment variables, mirroring the
// original implementation's CLI surface.
package serverconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Settings is the fully-resolved process configuration for one run of the
// estuaryd binary.
type Settings struct {
	BaseURL       string
	DownloadURLOverride string
	IndexDir      string
	CrateDir      string
	HTTPHost      string
	HTTPPort      uint16
	GitBin        string
	PublishKey    string
	LogLevel      string
	LogDir        string
}

// BindFlags registers every setting's flag on fs, each defaulting from its
// ESTUARY_* environment variable when present.
func BindFlags(fs *pflag.FlagSet, s *Settings) {
	fs.StringVar(&s.BaseURL, "base-url", envOr("ESTUARY_BASE_URL", ""), "the public url for the service")
	fs.StringVar(&s.DownloadURLOverride, "download-url", envOr("ESTUARY_DOWNLOAD_URL", ""), "override for the cargo download url template")
	fs.StringVar(&s.IndexDir, "index-dir", envOr("ESTUARY_INDEX_DIR", ""), "directory to store the package index git repo")
	fs.StringVar(&s.CrateDir, "crate-dir", envOr("ESTUARY_CRATE_DIR", ""), "directory to store .crate files")
	fs.StringVar(&s.HTTPHost, "http-host", envOr("ESTUARY_HTTP_HOST", "0.0.0.0"), "listen host")
	fs.Uint16Var(&s.HTTPPort, "http-port", envOrPort("ESTUARY_HTTP_PORT", 7878), "listen port")
	fs.StringVar(&s.GitBin, "git-bin", envOr("ESTUARY_GIT_BIN", "git"), "path to git")
	fs.StringVar(&s.PublishKey, "publish-key", envOr("ESTUARY_PUBLISH_KEY", ""), "shared secret required on publish/yank/unyank")
	fs.StringVar(&s.LogLevel, "log-level", envOr("ESTUARY_LOG_LEVEL", "info"), "zerolog level name")
	fs.StringVar(&s.LogDir, "log-dir", envOr("ESTUARY_LOG_DIR", "logs"), "directory for rotated log files")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrPort(key string, fallback uint16) uint16 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return fallback
	}
	return uint16(n)
}

// ResolvedBaseURL returns BaseURL with trailing slashes trimmed.
func (s Settings) ResolvedBaseURL() string {
	return strings.TrimRight(s.BaseURL, "/")
}

// ResolvedDownloadURL returns the explicit override when set, otherwise
// derives the standard per-crate download template from the base URL.
func (s Settings) ResolvedDownloadURL() string {
	if s.DownloadURLOverride != "" {
		return s.DownloadURLOverride
	}
	return fmt.Sprintf("%s/api/v1/crates/{crate}/{version}/download", s.ResolvedBaseURL())
}

// BindAddr returns the host:port pair the HTTP server should listen on.
func (s Settings) BindAddr() string {
	return fmt.Sprintf("%s:%d", s.HTTPHost, s.HTTPPort)
}
