package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/infra/config"
)

func sampleRecord(id string, state domain.DownloadState) domain.DownloadRecord {
	return domain.DownloadRecord{
		ID:           id,
		DisplayTitle: "Title " + id,
		CourseID:     "course-1",
		ByteSize:     1024,
		LocalPath:    "/data/" + id + ".mp4",
		SourceURL:    "https://cdn.example.org/" + id + ".mp4",
		Kind:         domain.ContentMedia,
		State:        state,
	}
}

// exerciseBackend runs the same behavioural checks against every backend.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := b.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}

	a := sampleRecord("b-block", domain.StateWaiting)
	c := sampleRecord("a-block", domain.StateDownloading)
	c.Kind = domain.ContentArchive
	c.RevisionTag = "2024-05-01"
	if err := b.Upsert(ctx, a, c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := b.Get(ctx, "a-block")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got != c {
		t.Fatalf("Get = %+v, want %+v", got, c)
	}

	// upsert overwrites
	a.State = domain.StateDownloaded
	a.ByteSize = 4096
	if err := b.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert overwrite: %v", err)
	}
	got, _, _ = b.Get(ctx, "b-block")
	if got.State != domain.StateDownloaded || got.ByteSize != 4096 {
		t.Fatalf("overwrite not applied: %+v", got)
	}

	all, err := b.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a-block" || all[1].ID != "b-block" {
		t.Fatalf("All = %+v", all)
	}

	if err := b.Delete(ctx, "a-block", "unknown"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	all, _ = b.All(ctx)
	if len(all) != 1 || all[0].ID != "b-block" {
		t.Fatalf("after delete All = %+v", all)
	}

	if err := b.Delete(ctx); err != nil {
		t.Fatalf("empty Delete: %v", err)
	}
	if err := b.Upsert(ctx); err != nil {
		t.Fatalf("empty Upsert: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseBackend(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "ledger.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	exerciseBackend(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// reopening runs migrations again and keeps the data
	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	all, err := s.All(context.Background())
	if err != nil || len(all) != 1 {
		t.Fatalf("after reopen All = %+v, %v", all, err)
	}
}

func TestSQLiteRejectsUnknownState(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	bad := sampleRecord("x", domain.StateNotDownloaded)
	if err := s.Upsert(context.Background(), bad); err == nil {
		t.Fatal("not_downloaded must never be persisted")
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("EDXOFFLINE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("EDXOFFLINE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer s.Close()

	all, _ := s.All(ctx)
	for _, r := range all {
		s.Delete(ctx, r.ID)
	}
	exerciseBackend(t, s)
	s.Delete(ctx, "a-block", "b-block")
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, config.StoreConfig{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.(*MemoryStore); !ok {
		t.Fatalf("memory driver gave %T", b)
	}

	b, err = Open(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok := b.(*SQLiteStore); !ok {
		t.Fatalf("sqlite driver gave %T", b)
	}

	if _, err := Open(ctx, config.StoreConfig{Driver: "mongo"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
