package status

import (
	"context"
	"testing"
	"time"

	"github.com/openedx/edxoffline/internal/course"
	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/ledger"
	"github.com/openedx/edxoffline/internal/mapper"
	"github.com/openedx/edxoffline/internal/store"
)

func video(id string, size int64) domain.ContentNode {
	return domain.ContentNode{
		ID:          id,
		Kind:        domain.KindVideo,
		DisplayName: id,
		Download: &domain.DownloadSpec{
			SourceURL: "https://cdn.example.org/" + id + ".mp4",
			ByteSize:  size,
			Kind:      domain.ContentMedia,
		},
	}
}

// subsectionTree builds course > chapter > seq > vert > {v10, v20, v30} plus a
// second sequential holding only a discussion block.
func subsectionTree(t *testing.T) *course.Tree {
	t.Helper()
	nodes := []domain.ContentNode{
		{ID: "course", Kind: domain.KindCourse, Children: []string{"chapter"}},
		{ID: "chapter", Kind: domain.KindChapter, Children: []string{"seq", "seq-empty"}},
		{ID: "seq", Kind: domain.KindSequential, Children: []string{"vert"}},
		{ID: "vert", Kind: domain.KindVertical, Children: []string{"v10", "v20", "v30"}},
		video("v10", 10),
		video("v20", 20),
		video("v30", 30),
		{ID: "seq-empty", Kind: domain.KindSequential, Children: []string{"vert-empty"}},
		{ID: "vert-empty", Kind: domain.KindVertical, Children: []string{"talk"}},
		{ID: "talk", Kind: domain.KindDiscussion},
	}
	tree, err := course.NewTree("demo", "course", nodes)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	return tree
}

func rec(id string, state domain.DownloadState, size int64) domain.DownloadRecord {
	return domain.DownloadRecord{
		ID:        id,
		CourseID:  "demo",
		ByteSize:  size,
		LocalPath: "/tmp/" + id,
		SourceURL: "https://cdn.example.org/" + id + ".mp4",
		Kind:      domain.ContentMedia,
		State:     state,
	}
}

func TestSubsectionScenario(t *testing.T) {
	tree := subsectionTree(t)

	steps := []struct {
		name      string
		records   []domain.DownloadRecord
		state     domain.DownloadState
		remaining int64
	}{
		{
			name:      "nothing queued",
			state:     domain.StateNotDownloaded,
			remaining: 60,
		},
		{
			name: "all three enqueued",
			records: []domain.DownloadRecord{
				rec("v10", domain.StateWaiting, 10),
				rec("v20", domain.StateWaiting, 20),
				rec("v30", domain.StateWaiting, 30),
			},
			state:     domain.StateDownloading,
			remaining: 60,
		},
		{
			name: "first completes",
			records: []domain.DownloadRecord{
				rec("v10", domain.StateDownloaded, 10),
				rec("v20", domain.StateDownloading, 20),
				rec("v30", domain.StateWaiting, 30),
			},
			state:     domain.StateDownloading,
			remaining: 50,
		},
		{
			name: "second cancelled",
			records: []domain.DownloadRecord{
				rec("v10", domain.StateDownloaded, 10),
				rec("v30", domain.StateDownloading, 30),
			},
			state:     domain.StateDownloading,
			remaining: 50,
		},
		{
			name: "third completes",
			records: []domain.DownloadRecord{
				rec("v10", domain.StateDownloaded, 10),
				rec("v30", domain.StateDownloaded, 30),
			},
			state:     domain.StateNotDownloaded,
			remaining: 20,
		},
		{
			name: "second retried and completes",
			records: []domain.DownloadRecord{
				rec("v10", domain.StateDownloaded, 10),
				rec("v20", domain.StateDownloaded, 20),
				rec("v30", domain.StateDownloaded, 30),
			},
			state:     domain.StateDownloaded,
			remaining: 0,
		},
	}

	for _, step := range steps {
		st := Recompute(tree, ledger.NewSnapshot(step.records...), domain.QualityAuto).Get("seq")
		if st.State != step.state {
			t.Errorf("%s: state = %s, want %s", step.name, st.State, step.state)
		}
		if st.RemainingBytes != step.remaining {
			t.Errorf("%s: remaining = %d, want %d", step.name, st.RemainingBytes, step.remaining)
		}
		if st.TotalBytes != 60 || st.TotalCount != 3 {
			t.Errorf("%s: totals = %d bytes / %d items, want 60 / 3", step.name, st.TotalBytes, st.TotalCount)
		}
	}
}

func TestRollupPropagatesToAncestors(t *testing.T) {
	tree := subsectionTree(t)
	statuses := Recompute(tree, ledger.NewSnapshot(
		rec("v10", domain.StateDownloaded, 10),
		rec("v20", domain.StateDownloading, 20),
	), domain.QualityAuto)

	for _, id := range []string{"vert", "seq", "chapter", "course"} {
		st := statuses.Get(id)
		if st.State != domain.StateDownloading {
			t.Errorf("%s state = %s, want downloading", id, st.State)
		}
		if st.DownloadedCount != 1 || st.DownloadingCount != 1 || st.TotalCount != 3 {
			t.Errorf("%s counts = %+v", id, st)
		}
	}

	if got := statuses.Get("v20").State; got != domain.StateDownloading {
		t.Errorf("leaf state = %s", got)
	}
	if got := statuses.Get("v30").State; got != domain.StateNotDownloaded {
		t.Errorf("absent leaf state = %s", got)
	}
}

func TestNodeWithoutDownloadsIsNotDownloaded(t *testing.T) {
	tree := subsectionTree(t)
	all := []domain.DownloadRecord{
		rec("v10", domain.StateDownloaded, 10),
		rec("v20", domain.StateDownloaded, 20),
		rec("v30", domain.StateDownloaded, 30),
	}
	statuses := Recompute(tree, ledger.NewSnapshot(all...), domain.QualityAuto)

	for _, id := range []string{"seq-empty", "vert-empty", "talk"} {
		st := statuses.Get(id)
		if st.State != domain.StateNotDownloaded || st.TotalCount != 0 || st.TotalBytes != 0 {
			t.Errorf("%s = %+v, want empty not_downloaded", id, st)
		}
	}
	// The empty subsection must not hold the course back
	if got := statuses.Get("course").State; got != domain.StateDownloaded {
		t.Errorf("course state = %s, want downloaded", got)
	}
}

func TestRecordSizeOverridesSpecSize(t *testing.T) {
	tree := subsectionTree(t)
	statuses := Recompute(tree, ledger.NewSnapshot(rec("v30", domain.StateDownloaded, 45)), domain.QualityAuto)

	st := statuses.Get("seq")
	if st.TotalBytes != 75 {
		t.Errorf("total = %d, want 75", st.TotalBytes)
	}
	if st.RemainingBytes != 30 {
		t.Errorf("remaining = %d, want 30", st.RemainingBytes)
	}

	// A record without a known size falls back to the declared size
	statuses = Recompute(tree, ledger.NewSnapshot(rec("v30", domain.StateWaiting, 0)), domain.QualityAuto)
	if got := statuses.Get("seq").TotalBytes; got != 60 {
		t.Errorf("total = %d, want 60", got)
	}
}

func TestRemainingBytesMonotonicDuringDownloadAll(t *testing.T) {
	tree := subsectionTree(t)
	ids := []string{"v10", "v20", "v30"}
	sizes := map[string]int64{"v10": 10, "v20": 20, "v30": 30}

	state := make(map[string]domain.DownloadState)
	snapshot := func() ledger.Snapshot {
		var recs []domain.DownloadRecord
		for id, s := range state {
			recs = append(recs, rec(id, s, sizes[id]))
		}
		return ledger.NewSnapshot(recs...)
	}

	var history []domain.AggregateStatus
	observe := func() { history = append(history, Recompute(tree, snapshot(), domain.QualityAuto).Get("course")) }

	observe()
	for _, id := range ids {
		state[id] = domain.StateWaiting
	}
	observe()
	for _, id := range ids {
		state[id] = domain.StateDownloading
		observe()
		state[id] = domain.StateDownloaded
		observe()
	}

	for i := 1; i < len(history); i++ {
		if history[i].RemainingBytes > history[i-1].RemainingBytes {
			t.Fatalf("remaining grew at step %d: %d -> %d", i, history[i-1].RemainingBytes, history[i].RemainingBytes)
		}
	}
	last := history[len(history)-1]
	if last.RemainingBytes != 0 || last.State != domain.StateDownloaded {
		t.Errorf("final = %+v", last)
	}
}

func TestSummarize(t *testing.T) {
	tree := subsectionTree(t)

	sum := Summarize(tree, Recompute(tree, ledger.NewSnapshot(), domain.QualityAuto))
	want := Summary{AllDownloadedOrDownloading: false, RemainingCount: 3, RemainingBytes: 60, AllCount: 3, AllBytes: 60}
	if sum != want {
		t.Errorf("empty ledger summary = %+v, want %+v", sum, want)
	}

	sum = Summarize(tree, Recompute(tree, ledger.NewSnapshot(
		rec("v10", domain.StateDownloaded, 10),
		rec("v20", domain.StateWaiting, 20),
	), domain.QualityAuto))
	want = Summary{AllDownloadedOrDownloading: true, RemainingCount: 2, RemainingBytes: 50, AllCount: 3, AllBytes: 60}
	if sum != want {
		t.Errorf("partial summary = %+v, want %+v", sum, want)
	}

	if sum := Summarize(tree, Recompute(tree, ledger.NewSnapshot(), domain.QualityAuto), "seq-empty"); sum.AllDownloadedOrDownloading || sum.AllCount != 0 {
		t.Errorf("empty root summary = %+v", sum)
	}
}

func TestLeafSizeFollowsQualityPreference(t *testing.T) {
	lecture := domain.ContentNode{
		ID:   "lecture",
		Kind: domain.KindVideo,
		Download: &domain.DownloadSpec{
			SourceURL: "https://cdn.example.org/low.mp4",
			ByteSize:  10,
			Kind:      domain.ContentMedia,
			Variants: []domain.EncodedVariant{
				{Tier: domain.TierMobileLow, URL: "https://cdn.example.org/low.mp4", ByteSize: 10},
				{Tier: domain.TierDesktopMP4, URL: "https://cdn.example.org/hd.mp4", ByteSize: 100},
			},
		},
	}
	tree, err := course.NewTree("demo", "course", []domain.ContentNode{
		{ID: "course", Kind: domain.KindCourse, Children: []string{"seq"}},
		{ID: "seq", Kind: domain.KindSequential, Children: []string{"lecture"}},
		lecture,
	})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	tests := []struct {
		quality domain.VideoQuality
		want    int64
	}{
		{domain.QualityAuto, 10},
		{domain.Quality360p, 10},
		{domain.Quality720p, 100},
	}
	for _, tt := range tests {
		t.Run(string(tt.quality), func(t *testing.T) {
			before := Recompute(tree, ledger.NewSnapshot(), tt.quality).Get("course")
			if before.TotalBytes != tt.want || before.RemainingBytes != tt.want {
				t.Fatalf("before enqueue = %+v, want %d bytes", before, tt.want)
			}

			queued, ok := mapper.New().BuildDescriptor(tree.DownloadableLeaves()[0], "/tmp/demo", "demo", tt.quality)
			if !ok {
				t.Fatal("BuildDescriptor skipped the lecture")
			}
			after := Recompute(tree, ledger.NewSnapshot(*queued), tt.quality).Get("course")
			if after.RemainingBytes != before.RemainingBytes || after.TotalBytes != before.TotalBytes {
				t.Errorf("enqueue changed sizes: before %+v, after %+v", before, after)
			}
		})
	}
}

func TestWatcherPublishesViews(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := ledger.Open(ctx, store.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	defer l.Close()

	w := NewWatcher(l, domain.QualityAuto, nil)
	updates, unsubscribe := w.Updates(16)
	defer unsubscribe()

	v := w.SetTree(subsectionTree(t))
	if v.Statuses.Get("seq").State != domain.StateNotDownloaded || len(v.InProgress) != 0 {
		t.Fatalf("initial view = %+v", v)
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := l.Upsert(ctx, rec("v10", domain.StateWaiting, 10)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-updates:
			if v.Statuses.Get("seq").State != domain.StateDownloading {
				continue
			}
			if len(v.InProgress) != 1 || v.InProgress[0].ID != "v10" {
				t.Errorf("in progress = %+v", v.InProgress)
			}
			if got, ok := w.View("demo"); !ok || got.Statuses.Get("seq").State != domain.StateDownloading {
				t.Errorf("View() = %+v, %v", got, ok)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Run: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("no downloading view published")
		}
	}
}
