package migration

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoad_SortsAndFilters(t *testing.T) {
	src := fstest.MapFS{
		"V2__second.sql": {Data: []byte("SELECT 2;")},
		"V1__first.sql":  {Data: []byte(" SELECT 1; \n")},
		"README.md":      {Data: []byte("ignored")},
	}

	migs, err := Load(src)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(migs) != 2 || migs[0].Version != 1 || migs[1].Name != "second" {
		t.Fatalf("unexpected migrations %+v", migs)
	}
	if migs[0].SQL != "SELECT 1;" || len(migs[0].Checksum) != 64 {
		t.Fatalf("expected trimmed sql and sha256 checksum, got %+v", migs[0])
	}
}

func TestLoad_RejectsDuplicatesAndEmptyFiles(t *testing.T) {
	if _, err := Load(fstest.MapFS{
		"V1__a.sql": {Data: []byte("SELECT 1;")},
		"V1__b.sql": {Data: []byte("SELECT 2;")},
	}); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
	if _, err := Load(fstest.MapFS{"V3__empty.sql": {Data: []byte("  ")}}); err == nil {
		t.Fatalf("expected error for empty migration")
	}
}

func TestEmbeddedSchema(t *testing.T) {
	migs, err := Load(mustSub(t))
	if err != nil {
		t.Fatalf("load embedded: %v", err)
	}
	if len(migs) == 0 || !strings.Contains(migs[0].SQL, "curated_job_communities") {
		t.Fatalf("expected embedded curation schema")
	}
}

func TestRun_NilDB(t *testing.T) {
	if err := (Runner{}).Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func mustSub(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	return sub
}
