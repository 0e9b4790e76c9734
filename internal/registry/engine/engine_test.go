package engine

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/onelson/estuary-go/internal/registry/archive"
	"github.com/onelson/estuary-go/internal/registry/catalog"
	"github.com/onelson/estuary-go/internal/registry/config"
	"github.com/onelson/estuary-go/internal/registry/gitrepo"
	"github.com/onelson/estuary-go/internal/registry/pkgfile"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	indexDir := t.TempDir()
	crateDir := t.TempDir()

	repo, env := gitrepo.Open(indexDir)
	if env.Code != "" {
		t.Fatalf("gitrepo.Open: %v", env)
	}
	if env := config.Sync(repo, config.Config{DL: "http://localhost/dl", API: "http://localhost/api"}); env.Code != "" {
		t.Fatalf("config.Sync: %v", env)
	}

	archives, err := archive.New(crateDir)
	if err != nil {
		t.Fatalf("archive.New: %v", err)
	}

	cat, env := catalog.Open(filepath.Join(indexDir, "estuary.sqlite"))
	if env.Code != "" {
		t.Fatalf("catalog.Open: %v", env)
	}
	t.Cleanup(func() { cat.Close() })

	return New(repo, archives, pkgfile.New(indexDir), cat)
}

func frame(metadata, archiveBytes []byte) []byte {
	var buf []byte
	lenPrefix := make([]byte, 4)

	binary.LittleEndian.PutUint32(lenPrefix, uint32(len(metadata)))
	buf = append(buf, lenPrefix...)
	buf = append(buf, metadata...)

	binary.LittleEndian.PutUint32(lenPrefix, uint32(len(archiveBytes)))
	buf = append(buf, lenPrefix...)
	buf = append(buf, archiveBytes...)
	return buf
}

const fooMetadata = `{"name":"foo","vers":"0.1.0","deps":[],"features":{}}`

func TestPublishHappyPath(t *testing.T) {
	e := newTestEngine(t)

	body := frame([]byte(fooMetadata), []byte("hello"))
	result, env := e.Publish(context.Background(), body)
	if env.Code != "" {
		t.Fatalf("Publish: %v", env)
	}
	if result.Name != "foo" || result.Version != "0.1.0" {
		t.Fatalf("result = %+v", result)
	}

	archivePath := filepath.Join(e.archives.Path("foo", "0.1.0"))
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("archive contents = %q, want %q", data, "hello")
	}

	versions, env := e.GetPackageVersions("foo")
	if env.Code != "" {
		t.Fatalf("GetPackageVersions: %v", env)
	}
	if len(versions) != 1 {
		t.Fatalf("versions = %+v", versions)
	}
	wantCksum := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if versions[0].Cksum != wantCksum {
		t.Errorf("cksum = %q, want %q", versions[0].Cksum, wantCksum)
	}
}

func TestPublishDuplicateVersionFails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	body := frame([]byte(fooMetadata), []byte("hello"))

	if _, env := e.Publish(ctx, body); env.Code != "" {
		t.Fatalf("first Publish: %v", env)
	}
	_, env := e.Publish(ctx, body)
	if env.Code != apperrorsPublishCode {
		t.Fatalf("expected duplicate publish error, got %v", env)
	}
}

func TestYankThenUnyank(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	body := frame([]byte(fooMetadata), []byte("hello"))
	e.Publish(ctx, body)

	if env := e.SetYanked(ctx, "foo", "0.1.0", true); env.Code != "" {
		t.Fatalf("yank: %v", env)
	}
	versions, _ := e.GetPackageVersions("foo")
	if !versions[0].Yanked {
		t.Fatal("expected version to be yanked")
	}

	if env := e.SetYanked(ctx, "foo", "0.1.0", false); env.Code != "" {
		t.Fatalf("unyank: %v", env)
	}
	versions, _ = e.GetPackageVersions("foo")
	if versions[0].Yanked {
		t.Fatal("expected version to be unyanked")
	}
}

func TestYankIdempotentDoesNotRecommit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	body := frame([]byte(fooMetadata), []byte("hello"))
	e.Publish(ctx, body)

	e.SetYanked(ctx, "foo", "0.1.0", true)
	logBefore, _ := e.repo.Log()

	if env := e.SetYanked(ctx, "foo", "0.1.0", true); env.Code != "" {
		t.Fatalf("second yank: %v", env)
	}
	logAfter, _ := e.repo.Log()

	if len(logBefore) != len(logAfter) {
		t.Errorf("idempotent yank should not add a commit: before=%d after=%d", len(logBefore), len(logAfter))
	}
}

func TestSearchScoring(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.Publish(ctx, frame([]byte(`{"name":"foo","vers":"0.1.0","deps":[],"features":{}}`), []byte("a")))
	e.Publish(ctx, frame([]byte(`{"name":"foo-bar","vers":"0.1.0","deps":[],"features":{}}`), []byte("b")))
	e.Publish(ctx, frame([]byte(`{"name":"baz","vers":"0.1.0","deps":[],"features":{}}`), []byte("c")))

	results, env := e.Search(ctx, "foo", 10)
	if env.Code != "" {
		t.Fatalf("Search: %v", env)
	}
	if len(results) != 2 || results[0].Name != "foo" || results[1].Name != "foo-bar" {
		t.Fatalf("results = %+v", results)
	}
}

const apperrorsPublishCode = "PUBLISH_FAILURE"
