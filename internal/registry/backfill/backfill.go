// Package backfill replays an on-disk index into the SQL catalog, for
// registries whose catalog was added or rebuilt after the index already
// held history.
package backfill

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/onelson/estuary-go/internal/logging"
	"github.com/onelson/estuary-go/internal/registry/catalog"
	"github.com/onelson/estuary-go/internal/registry/pkgfile"
)

// Run walks every package file under indexDir and attempts to insert each
// recorded version into cat. Conflicts and per-row failures are logged
// and skipped; Run itself only fails on a directory walk error.
func Run(indexDir string, files *pkgfile.Store, cat *catalog.Catalog) (int, error) {
	names, err := listPackageNames(indexDir)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, pkgName := range names {
		versions, env := files.ReadAll(pkgName)
		if env.Code != "" {
			logging.Log().Warn().Str("name", pkgName).Msg("backfill: failed to read package file, skipping")
			continue
		}
		for _, v := range versions {
			nc := synthesizeNewCrate(v)
			if env := cat.PublishRow(nc); env.Code != "" {
				logging.Log().Warn().Str("name", v.Name).Str("vers", v.Vers).Msg("backfill: insert failed, continuing")
				continue
			}
			if v.Yanked {
				cat.SetYankedRow(v.Name, v.Vers, true)
			}
			inserted++
		}
	}
	return inserted, nil
}

// listPackageNames walks the tiered layout and returns every package
// file's base name (its lowercase package name), skipping .git and
// config.json.
func listPackageNames(root string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "config.json" || strings.HasSuffix(rel, ".sqlite") {
			return nil
		}
		names = append(names, d.Name())
		return nil
	})
	return names, err
}

// synthesizeNewCrate builds the richer catalog envelope backfill can
// produce from an indexed PackageVersion alone: deps and features carry
// forward since the index stores them, but every field the index does
// not carry (description, authors, ...) is left empty.
func synthesizeNewCrate(v pkgfile.PackageVersion) catalog.NewCrate {
	return catalog.NewCrate{
		Name:     v.Name,
		Vers:     v.Vers,
		Deps:     synthesizeDeps(v.Deps),
		Features: v.Features,
		Links:    v.Links,
	}
}

func synthesizeDeps(deps []pkgfile.Dependency) []catalog.NewCrateDependency {
	out := make([]catalog.NewCrateDependency, len(deps))
	for i, d := range deps {
		out[i] = catalog.NewCrateDependency{
			Name:               d.Name,
			VersionReq:         d.Req,
			Features:           d.Features,
			Optional:           d.Optional,
			DefaultFeatures:    d.DefaultFeatures,
			Target:             d.Target,
			Kind:               string(d.Kind),
			Registry:           d.Registry,
			ExplicitNameInToml: d.Package,
		}
	}
	return out
}
