package backfill

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/onelson/estuary-go/internal/registry/catalog"
	"github.com/onelson/estuary-go/internal/registry/pkgfile"
)

func TestRunBackfillsExistingIndex(t *testing.T) {
	indexDir := t.TempDir()
	files := pkgfile.New(indexDir)

	files.Append("foo", pkgfile.PackageVersion{Name: "foo", Vers: "0.1.0", Features: map[string][]string{}})
	files.Append("foo", pkgfile.PackageVersion{Name: "foo", Vers: "0.2.0", Features: map[string][]string{}, Yanked: true})
	files.Append("bar", pkgfile.PackageVersion{Name: "bar", Vers: "1.0.0", Features: map[string][]string{}})

	cat, env := catalog.Open(filepath.Join(t.TempDir(), "estuary.sqlite"))
	if env.Code != "" {
		t.Fatalf("catalog.Open: %v", env)
	}
	defer cat.Close()

	count, err := Run(indexDir, files, cat)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 3 {
		t.Fatalf("inserted = %d, want 3", count)
	}

	summaries, env := cat.ListCrateSummaries()
	if env.Code != "" {
		t.Fatalf("ListCrateSummaries: %v", env)
	}
	// foo has only one non-yanked version (0.1.0); bar has one.
	if len(summaries) != 2 {
		t.Fatalf("summaries = %+v", summaries)
	}
}

func TestSynthesizeNewCrateCarriesDepsFeaturesAndLinks(t *testing.T) {
	target := "wasm32-unknown-unknown"
	links := "libfoo"
	v := pkgfile.PackageVersion{
		Name: "foo",
		Vers: "0.1.0",
		Deps: []pkgfile.Dependency{
			{Name: "bar", Req: "^1.0", Features: []string{"extra"}, DefaultFeatures: true, Target: &target, Kind: pkgfile.KindBuild},
		},
		Features: map[string][]string{"default": {"extra"}},
		Links:    &links,
	}

	nc := synthesizeNewCrate(v)

	if len(nc.Deps) != 1 {
		t.Fatalf("deps = %+v, want 1 entry", nc.Deps)
	}
	dep := nc.Deps[0]
	if dep.Name != "bar" || dep.VersionReq != "^1.0" || dep.Kind != "build" || dep.Target == nil || *dep.Target != target {
		t.Errorf("dep = %+v", dep)
	}
	if got := nc.Features["default"]; len(got) != 1 || got[0] != "extra" {
		t.Errorf("features = %+v", nc.Features)
	}
	if nc.Links == nil || *nc.Links != "libfoo" {
		t.Errorf("links = %v", nc.Links)
	}

	// Also verify it round-trips through the catalog's JSON-serialized
	// metadata column, not just in memory.
	raw, err := json.Marshal(nc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var persisted catalog.NewCrate
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(persisted.Deps) != 1 || persisted.Deps[0].Name != "bar" {
		t.Errorf("persisted deps = %+v", persisted.Deps)
	}
}

func TestRunEmptyIndex(t *testing.T) {
	indexDir := t.TempDir()
	files := pkgfile.New(indexDir)

	cat, env := catalog.Open(filepath.Join(t.TempDir(), "estuary.sqlite"))
	if env.Code != "" {
		t.Fatalf("catalog.Open: %v", env)
	}
	defer cat.Close()

	count, err := Run(indexDir, files, cat)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 0 {
		t.Fatalf("inserted = %d, want 0", count)
	}
}
