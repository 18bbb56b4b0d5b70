package status

import (
	"context"
	"sync"

	"github.com/openedx/edxoffline/internal/course"
	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/events"
	"github.com/openedx/edxoffline/internal/infra/logger"
	"github.com/openedx/edxoffline/internal/ledger"
)

// View is everything a course screen needs in one value.
type View struct {
	CourseID   string                  `json:"course_id"`
	Statuses   Statuses                `json:"statuses"`
	InProgress []domain.DownloadRecord `json:"in_progress"`
	Summary    Summary                 `json:"summary"`
}

// ChangeSource is the part of the ledger the watcher reads.
type ChangeSource interface {
	All(ctx context.Context) ledger.Snapshot
	Changes(buffer int) (<-chan ledger.Snapshot, func())
}

// Watcher keeps a View per registered course tree up to date with the ledger.
type Watcher struct {
	mu      sync.Mutex
	source  ChangeSource
	logger  *logger.Logger
	quality domain.VideoQuality
	snap    ledger.Snapshot
	trees   map[string]*course.Tree
	views   map[string]View
	updates *events.Broker[View]
}

// NewWatcher sizes not yet queued leaves by the variant quality selects.
func NewWatcher(src ChangeSource, quality domain.VideoQuality, log *logger.Logger) *Watcher {
	if log == nil {
		log = logger.Nop()
	}
	if quality == "" {
		quality = domain.QualityAuto
	}
	return &Watcher{
		source:  src,
		quality: quality,
		logger:  log,
		snap:    src.All(context.Background()),
		trees:   make(map[string]*course.Tree),
		views:   make(map[string]View),
		updates: events.NewBroker[View](),
	}
}

// SetTree registers or replaces the tree of a course and computes its view
// right away from the latest snapshot.
func (w *Watcher) SetTree(tree *course.Tree) View {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trees[tree.CourseID()] = tree
	v := buildView(tree, w.snap, w.quality)
	w.views[tree.CourseID()] = v
	w.updates.Publish(v)
	return v
}

// Tree returns the registered tree of courseID.
func (w *Watcher) Tree(courseID string) (*course.Tree, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.trees[courseID]
	return t, ok
}

// Forget stops tracking courseID.
func (w *Watcher) Forget(courseID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.trees, courseID)
	delete(w.views, courseID)
}

// View returns the latest view of courseID.
func (w *Watcher) View(courseID string) (View, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.views[courseID]
	return v, ok
}

// Updates subscribes to recomputed views of every tracked course.
func (w *Watcher) Updates(buffer int) (<-chan View, func()) {
	return w.updates.Subscribe(buffer)
}

// Run recomputes every tracked course on each ledger snapshot until ctx is
// done or the ledger closes its change stream.
func (w *Watcher) Run(ctx context.Context) error {
	changes, unsubscribe := w.source.Changes(1)
	defer unsubscribe()
	defer w.updates.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-changes:
			if !ok {
				w.logger.Debug("Ledger change stream closed, status watcher exiting")
				return nil
			}
			w.apply(snap)
		}
	}
}

func (w *Watcher) apply(snap ledger.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.snap = snap
	for id, tree := range w.trees {
		v := buildView(tree, snap, w.quality)
		w.views[id] = v
		w.updates.Publish(v)
	}
}

func buildView(tree *course.Tree, snap ledger.Snapshot, quality domain.VideoQuality) View {
	statuses := Recompute(tree, snap, quality)

	inProgress := []domain.DownloadRecord{}
	for _, rec := range snap.InProgress() {
		if _, ok := tree.Node(rec.ID); ok {
			inProgress = append(inProgress, rec)
		}
	}

	return View{
		CourseID:   tree.CourseID(),
		Statuses:   statuses,
		InProgress: inProgress,
		Summary:    Summarize(tree, statuses),
	}
}
