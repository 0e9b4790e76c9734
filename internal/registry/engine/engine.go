// Package engine implements the publish/yank state machine: the single
// writer-locked sequence that keeps the archive store, the Git index, and
// the SQL catalog consistent.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/onelson/estuary-go/internal/apperrors"
	"github.com/onelson/estuary-go/internal/logging"
	"github.com/onelson/estuary-go/internal/registry/archive"
	"github.com/onelson/estuary-go/internal/registry/catalog"
	"github.com/onelson/estuary-go/internal/registry/gitrepo"
	"github.com/onelson/estuary-go/internal/registry/name"
	"github.com/onelson/estuary-go/internal/registry/pkgfile"
)

// Engine coordinates the registry's mutating operations behind a single
// process-wide writer lock.
type Engine struct {
	mu       sync.Mutex
	repo     *gitrepo.Repository
	archives *archive.Store
	files    *pkgfile.Store
	catalog  *catalog.Catalog
}

// New builds an Engine over already-opened components.
func New(repo *gitrepo.Repository, archives *archive.Store, files *pkgfile.Store, cat *catalog.Catalog) *Engine {
	return &Engine{repo: repo, archives: archives, files: files, catalog: cat}
}

// PublishResult carries anything the HTTP layer needs to report back to
// the client beyond a bare success.
type PublishResult struct {
	Name    string
	Version string
	Warnings Warnings
}

// Warnings mirrors the registry client's expected publish-response shape.
type Warnings struct {
	InvalidCategories []string `json:"invalid_categories"`
	InvalidBadges     []string `json:"invalid_badges"`
	Other             []string `json:"other"`
}

// Publish decodes a length-prefixed publish body, validates it, and runs
// the full publish sequence under the writer lock: archive write ->
// package-file append -> commit -> catalog insert.
func (e *Engine) Publish(ctx context.Context, body []byte) (PublishResult, apperrors.Envelope) {
	metadata, archiveBytes, env := decodeFrame(body)
	if env.Code != "" {
		return PublishResult{}, env
	}

	var nc NewCrate
	if err := json.Unmarshal(metadata, &nc); err != nil {
		return PublishResult{}, apperrors.WrapError(apperrors.CodeInvalidPayload, "failed to parse publish metadata", err)
	}
	var present map[string]json.RawMessage
	json.Unmarshal(metadata, &present)
	for _, field := range []string{"name", "vers", "deps", "features"} {
		if _, ok := present[field]; !ok {
			return PublishResult{}, apperrors.New(apperrors.CodeInvalidPayload, "publish metadata is missing required field "+field)
		}
	}

	if env := name.Validate(nc.Name); env.Code != "" {
		return PublishResult{}, env
	}
	if _, err := semver.NewVersion(nc.Vers); err != nil {
		return PublishResult{}, apperrors.WrapError(apperrors.CodeInvalidVersion, "invalid semver version", err)
	}

	cksum := sha256.Sum256(archiveBytes)
	pv := pkgfile.PackageVersion{
		Name:     nc.Name,
		Vers:     nc.Vers,
		Deps:     convertDeps(nc.Deps),
		Cksum:    hex.EncodeToString(cksum[:]),
		Features: nc.Features,
		Yanked:   false,
		Links:    nc.Links,
	}
	if pv.Features == nil {
		pv.Features = map[string][]string{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, env := e.files.ReadAll(nc.Name)
	if env.Code != "" {
		return PublishResult{}, env
	}
	if pkgfile.Exists(existing, nc.Vers) {
		logging.FromContext(ctx).Warn().Str("name", nc.Name).Str("vers", nc.Vers).Msg("publish rejected: duplicate version")
		return PublishResult{}, apperrors.New(apperrors.CodePublish,
			fmt.Sprintf("failed to publish `%s v%s`: already exists in index", nc.Name, nc.Vers))
	}

	if env := e.archives.Put(nc.Name, nc.Vers, archiveBytes); env.Code != "" {
		return PublishResult{}, env
	}

	if env := e.files.Append(nc.Name, pv); env.Code != "" {
		return PublishResult{}, env
	}

	msg := fmt.Sprintf("publish crate: `%s v%s`", nc.Name, nc.Vers)
	if env := e.repo.AddAndCommit(e.files.RelPath(nc.Name), msg); env.Code != "" {
		return PublishResult{}, env
	}

	if env := e.catalog.PublishRow(toCatalogNewCrate(nc)); env.Code != "" {
		logging.FromContext(ctx).Error().Str("name", nc.Name).Str("vers", nc.Vers).Msg("index commit succeeded but catalog insert failed; recoverable via backfill")
		if env.Code == apperrors.CodePublish {
			return PublishResult{}, env
		}
	}

	logging.FromContext(ctx).Info().Str("name", nc.Name).Str("vers", nc.Vers).Msg("published")
	return PublishResult{Name: nc.Name, Version: nc.Vers, Warnings: Warnings{
		InvalidCategories: []string{}, InvalidBadges: []string{}, Other: []string{},
	}}, apperrors.Envelope{}
}

// SetYanked flips the yanked flag for (pkgName, vers). Flipping to the
// flag's current value is a no-op: no rewrite, no commit, no catalog write.
func (e *Engine) SetYanked(ctx context.Context, pkgName, vers string, yanked bool) apperrors.Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()

	versions, env := e.files.ReadAll(pkgName)
	if env.Code != "" {
		return env
	}

	found := false
	for i := range versions {
		if versions[i].Vers != vers {
			continue
		}
		found = true
		if versions[i].Yanked == yanked {
			return apperrors.Envelope{}
		}
		versions[i].Yanked = yanked
		break
	}
	if !found {
		return apperrors.New(apperrors.CodeNotFound, "version not found")
	}

	if env := e.files.Rewrite(pkgName, versions); env.Code != "" {
		return env
	}

	verb := "yank"
	if !yanked {
		verb = "unyank"
	}
	msg := fmt.Sprintf("%s crate: `%s v%s`", verb, pkgName, vers)
	if env := e.repo.AddAndCommit(e.files.RelPath(pkgName), msg); env.Code != "" {
		return env
	}

	if env := e.catalog.SetYankedRow(pkgName, vers, yanked); env.Code != "" {
		logging.FromContext(ctx).Error().Str("name", pkgName).Str("vers", vers).Msg("index yank flip succeeded but catalog update failed")
	}

	logging.FromContext(ctx).Info().Str("name", pkgName).Str("vers", vers).Bool("yanked", yanked).Msg(verb + "ed")
	return apperrors.Envelope{}
}

// GetPackageVersions returns every recorded version for pkgName.
func (e *Engine) GetPackageVersions(pkgName string) ([]pkgfile.PackageVersion, apperrors.Envelope) {
	versions, env := e.files.ReadAll(pkgName)
	if env.Code != "" {
		return nil, env
	}
	if versions == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "package not found")
	}
	return versions, apperrors.Envelope{}
}

// DownloadArchive returns the archive bytes for (pkgName, vers).
func (e *Engine) DownloadArchive(ctx context.Context, pkgName, vers string) ([]byte, apperrors.Envelope) {
	data, env := e.archives.Get(pkgName, vers)
	if env.Code != "" {
		logging.FromContext(ctx).Warn().Str("name", pkgName).Str("vers", vers).Msg("download failed")
	}
	return data, env
}

// SearchResult is one entry in a search response.
type SearchResult struct {
	Name        string
	MaxVersion  string
	Description string
}

// Search tokenizes q and scores each known crate by substring-token
// overlap, boosting an exact name match, then truncates to perPage.
func (e *Engine) Search(ctx context.Context, q string, perPage int) ([]SearchResult, apperrors.Envelope) {
	summaries, env := e.catalog.ListCrateSummaries()
	if env.Code != "" {
		logging.FromContext(ctx).Error().Str("q", q).Msg("search failed to list catalog summaries")
		return nil, env
	}

	tokens := tokenize(q)
	type scored struct {
		SearchResult
		score int
	}
	var results []scored
	for _, s := range summaries {
		score := 0
		for _, t := range tokens {
			if t != "" && strings.Contains(strings.ToLower(s.Name), t) {
				score++
			}
		}
		if strings.EqualFold(s.Name, q) {
			score += 100
		}
		if score == 0 {
			continue
		}
		results = append(results, scored{SearchResult{s.Name, s.MaxVersion, s.Description}, score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if perPage > 0 && len(results) > perPage {
		results = results[:perPage]
	}
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = r.SearchResult
	}
	return out, apperrors.Envelope{}
}

func tokenize(q string) []string {
	return strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '\t'
	})
}

func decodeFrame(body []byte) (metadata, archiveBytes []byte, env apperrors.Envelope) {
	if len(body) < 4 {
		return nil, nil, apperrors.New(apperrors.CodeInvalidPayload, "publish body too short for metadata length prefix")
	}
	metaLen := binary.LittleEndian.Uint32(body[0:4])
	rest := body[4:]
	if uint64(len(rest)) < uint64(metaLen) {
		return nil, nil, apperrors.New(apperrors.CodeInvalidPayload, "publish body truncated before metadata end")
	}
	metadata = rest[:metaLen]
	rest = rest[metaLen:]

	if len(rest) < 4 {
		return nil, nil, apperrors.New(apperrors.CodeInvalidPayload, "publish body too short for archive length prefix")
	}
	archiveLen := binary.LittleEndian.Uint32(rest[0:4])
	rest = rest[4:]
	if uint64(len(rest)) < uint64(archiveLen) {
		return nil, nil, apperrors.New(apperrors.CodeInvalidPayload, "publish body truncated before archive end")
	}
	archiveBytes = rest[:archiveLen]
	return metadata, archiveBytes, apperrors.Envelope{}
}

func convertDeps(deps []NewCrateDependency) []pkgfile.Dependency {
	out := make([]pkgfile.Dependency, len(deps))
	for i, d := range deps {
		kind := pkgfile.KindNormal
		switch d.Kind {
		case "dev":
			kind = pkgfile.KindDev
		case "build":
			kind = pkgfile.KindBuild
		}
		out[i] = pkgfile.Dependency{
			Name:            d.Name,
			Req:             d.VersionReq,
			Features:        d.Features,
			Optional:        d.Optional,
			DefaultFeatures: d.DefaultFeatures,
			Target:          d.Target,
			Kind:            kind,
			Registry:        d.Registry,
			Package:         d.ExplicitNameInToml,
		}
	}
	return out
}

func toCatalogDeps(deps []NewCrateDependency) []catalog.NewCrateDependency {
	out := make([]catalog.NewCrateDependency, len(deps))
	for i, d := range deps {
		out[i] = catalog.NewCrateDependency{
			Name:               d.Name,
			VersionReq:         d.VersionReq,
			Features:           d.Features,
			Optional:           d.Optional,
			DefaultFeatures:    d.DefaultFeatures,
			Target:             d.Target,
			Kind:               d.Kind,
			Registry:           d.Registry,
			ExplicitNameInToml: d.ExplicitNameInToml,
		}
	}
	return out
}

func toCatalogNewCrate(nc NewCrate) catalog.NewCrate {
	return catalog.NewCrate{
		Name:          nc.Name,
		Vers:          nc.Vers,
		Deps:          toCatalogDeps(nc.Deps),
		Features:      nc.Features,
		Links:         nc.Links,
		Description:   nc.Description,
		Authors:       nc.Authors,
		Documentation: nc.Documentation,
		Homepage:      nc.Homepage,
		Readme:        nc.Readme,
		ReadmeFile:    nc.ReadmeFile,
		Keywords:      nc.Keywords,
		Categories:    nc.Categories,
		License:       nc.License,
		LicenseFile:   nc.LicenseFile,
		Repository:    nc.Repository,
		Badges:        nc.Badges,
	}
}
