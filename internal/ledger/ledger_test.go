package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/store"
)

func record(id string, state domain.DownloadState) domain.DownloadRecord {
	return domain.DownloadRecord{
		ID:        id,
		CourseID:  "course-1",
		LocalPath: "/data/" + id,
		SourceURL: "https://cdn.example.org/" + id,
		Kind:      domain.ContentMedia,
		State:     state,
	}
}

func recv(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestChangesDeliversCurrentSnapshotFirst(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mem.Upsert(ctx, record("a", domain.StateDownloaded))

	l, err := Open(ctx, mem, nil)
	if err != nil {
		t.Fatal(err)
	}
	ch, unsub := l.Changes(4)
	defer unsub()

	first := recv(t, ch)
	if first.Len() != 1 || first.State("a") != domain.StateDownloaded {
		t.Fatalf("initial snapshot = %+v", first.Records())
	}

	if err := l.Upsert(ctx, record("b", domain.StateWaiting)); err != nil {
		t.Fatal(err)
	}
	second := recv(t, ch)
	if second.Len() != 2 || second.State("b") != domain.StateWaiting {
		t.Fatalf("snapshot after upsert = %+v", second.Records())
	}

	if err := l.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	third := recv(t, ch)
	if third.Len() != 1 || third.State("a") != domain.StateNotDownloaded {
		t.Fatalf("snapshot after delete = %+v", third.Records())
	}
}

func TestSlowSubscriberSeesLatest(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, store.NewMemoryStore(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ch, unsub := l.Changes(1)
	defer unsub()

	for i := 0; i < 20; i++ {
		id := string(rune('a' + i))
		if err := l.Upsert(ctx, record(id, domain.StateWaiting)); err != nil {
			t.Fatal(err)
		}
	}

	last := recv(t, ch)
	if last.Len() != 20 {
		t.Fatalf("conflated snapshot has %d records, want 20", last.Len())
	}
}

func TestUpsertRejectsAbsenceState(t *testing.T) {
	l, err := Open(context.Background(), store.NewMemoryStore(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Upsert(context.Background(), record("a", domain.StateNotDownloaded)); err == nil {
		t.Fatal("expected error persisting not_downloaded")
	}
	if err := l.Upsert(context.Background(), record("", domain.StateWaiting)); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestLedgerDurableAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	l, err := Open(ctx, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Upsert(ctx, record("a", domain.StateDownloaded), record("b", domain.StateDownloading)); err != nil {
		t.Fatal(err)
	}
	l.Close()
	s.Close()

	s, err = store.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	l, err = Open(ctx, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	snap := l.All(ctx)
	if snap.State("a") != domain.StateDownloaded || snap.State("b") != domain.StateDownloading {
		t.Fatalf("reloaded snapshot = %+v", snap.Records())
	}
	if rec, ok, err := l.Get(ctx, "a"); err != nil || !ok || rec.ID != "a" {
		t.Fatalf("Get = %+v, %v, %v", rec, ok, err)
	}
}

// flakyReload commits writes but fails every full read once armed.
type flakyReload struct {
	store.Backend
	armed bool
}

func (f *flakyReload) All(ctx context.Context) ([]domain.DownloadRecord, error) {
	if f.armed {
		return nil, errors.New("connection reset")
	}
	return f.Backend.All(ctx)
}

func TestCommittedWriteSurvivesFailedReload(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	backend := &flakyReload{Backend: mem}

	l, err := Open(ctx, backend, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Upsert(ctx, record("a", domain.StateDownloaded)); err != nil {
		t.Fatal(err)
	}
	ch, unsub := l.Changes(4)
	defer unsub()
	recv(t, ch)

	backend.armed = true
	if err := l.Upsert(ctx, record("b", domain.StateWaiting)); err != nil {
		t.Fatalf("Upsert after commit = %v, want nil", err)
	}
	snap := recv(t, ch)
	if snap.State("a") != domain.StateDownloaded || snap.State("b") != domain.StateWaiting {
		t.Fatalf("patched snapshot = %+v", snap.Records())
	}

	if err := l.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete after commit = %v, want nil", err)
	}
	snap = recv(t, ch)
	if snap.Len() != 1 || snap.State("a") != domain.StateNotDownloaded {
		t.Fatalf("patched snapshot after delete = %+v", snap.Records())
	}
	if recs := snap.Records(); recs[0].ID != "b" {
		t.Errorf("records = %+v", recs)
	}

	if _, ok, _ := mem.Get(ctx, "b"); !ok {
		t.Error("b was not committed to the backend")
	}
}

func TestSnapshotHelpers(t *testing.T) {
	other := record("c", domain.StateDownloaded)
	other.CourseID = "course-2"
	snap := NewSnapshot(record("a", domain.StateWaiting), record("b", domain.StateDownloaded), other)

	if n := len(snap.InProgress()); n != 1 {
		t.Errorf("in progress = %d, want 1", n)
	}
	if n := len(snap.ForCourse("course-1")); n != 2 {
		t.Errorf("course-1 records = %d, want 2", n)
	}
	if _, ok := snap.Get("zzz"); ok {
		t.Error("unexpected record")
	}
}
