// Command estuaryd runs the registry server, or its one-off maintenance
// subcommands, over a configured index and archive directory.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/onelson/estuary-go/internal/logging"
	"github.com/onelson/estuary-go/internal/registry/archive"
	"github.com/onelson/estuary-go/internal/registry/backfill"
	"github.com/onelson/estuary-go/internal/registry/catalog"
	"github.com/onelson/estuary-go/internal/registry/config"
	"github.com/onelson/estuary-go/internal/registry/engine"
	"github.com/onelson/estuary-go/internal/registry/gitrepo"
	"github.com/onelson/estuary-go/internal/registry/gittransport"
	"github.com/onelson/estuary-go/internal/registry/httpapi"
	"github.com/onelson/estuary-go/internal/registry/pkgfile"
	"github.com/onelson/estuary-go/internal/serverconfig"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var settings serverconfig.Settings

	root := &cobra.Command{
		Use:   "estuaryd",
		Short: "A self-hosted, Git-indexed package registry.",
	}
	serverconfig.BindFlags(root.PersistentFlags(), &settings)

	root.AddCommand(newServeCommand(&settings))
	root.AddCommand(newBackfillCommand(&settings))
	return root
}

func newServeCommand(settings *serverconfig.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the registry's HTTP server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Initialize(&logging.Config{
				Level:         logging.LogLevel(settings.LogLevel),
				OutputConsole: true,
				OutputFile:    true,
				LogDirectory:  settings.LogDir,
				MaxFileSize:   10,
				MaxBackups:    5,
				MaxAge:        30,
			}); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}

			e, shim, err := buildEngine(settings)
			if err != nil {
				return err
			}

			server := httpapi.New(e, shim, settings.PublishKey)
			addr := settings.BindAddr()

			logging.Log().Info().
				Str("bind_addr", addr).
				Str("index_dir", settings.IndexDir).
				Str("crate_dir", settings.CrateDir).
				Msg("estuary server starting")

			return http.ListenAndServe(addr, server.Mux())
		},
	}
}

func newBackfillCommand(settings *serverconfig.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Replay the on-disk index into the SQL catalog.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Initialize(logging.DefaultConfig()); err != nil {
				return err
			}

			files := pkgfile.New(settings.IndexDir)
			cat, env := catalog.Open(filepath.Join(settings.IndexDir, "estuary.sqlite"))
			if env.Code != "" {
				return env
			}
			defer cat.Close()

			count, err := backfill.Run(settings.IndexDir, files, cat)
			if err != nil {
				return err
			}
			logging.Log().Info().Int("versions_inserted", count).Msg("backfill complete")
			return nil
		},
	}
}

func buildEngine(settings *serverconfig.Settings) (*engine.Engine, *gittransport.Shim, error) {
	if err := os.MkdirAll(settings.IndexDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create index dir: %w", err)
	}
	if err := os.MkdirAll(settings.CrateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create crate dir: %w", err)
	}

	repo, env := gitrepo.Open(settings.IndexDir)
	if env.Code != "" {
		return nil, nil, env
	}

	cfg := config.Config{DL: settings.ResolvedDownloadURL(), API: settings.ResolvedBaseURL()}
	if env := config.Sync(repo, cfg); env.Code != "" {
		return nil, nil, env
	}

	archives, err := archive.New(settings.CrateDir)
	if err != nil {
		return nil, nil, err
	}

	cat, env := catalog.Open(filepath.Join(settings.IndexDir, "estuary.sqlite"))
	if env.Code != "" {
		return nil, nil, env
	}

	e := engine.New(repo, archives, pkgfile.New(settings.IndexDir), cat)
	shim := gittransport.New(settings.GitBin, settings.IndexDir)
	return e, shim, nil
}
