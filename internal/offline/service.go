// Package offline is the caller-facing layer: it resolves course trees, maps
// their leaves to download records, applies the network policy and drives the
// queue.
package offline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/openedx/edxoffline/internal/course"
	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/engine"
	"github.com/openedx/edxoffline/internal/events"
	"github.com/openedx/edxoffline/internal/infra/logger"
	"github.com/openedx/edxoffline/internal/ledger"
	"github.com/openedx/edxoffline/internal/mapper"
	"github.com/openedx/edxoffline/internal/status"
)

// Queue is the part of the queue controller the service drives.
type Queue interface {
	Enqueue(ctx context.Context, recs []domain.DownloadRecord) (engine.EnqueueResult, error)
	Cancel(ctx context.Context, id string) error
	Remove(ctx context.Context, ids []string) error
	Drained(buffer int) (<-chan domain.DownloadFailed, func())
}

// Policy gates new downloads.
type Policy interface {
	Allow() error
	AllowStorage(dir string, need int64) error
}

type Options struct {
	OutDir       string
	VideoQuality domain.VideoQuality
}

type Service struct {
	source   course.Source
	mapper   *mapper.Mapper
	queue    Queue
	ledger   engine.Ledger
	watcher  *status.Watcher
	policy   Policy
	logger   *logger.Logger
	opts     Options
	messages *events.Broker[domain.Message]

	mu sync.Mutex
	// aliases maps requested ids to the id the course document declares
	aliases map[string]string
}

func NewService(src course.Source, q Queue, l engine.Ledger, w *status.Watcher, p Policy, log *logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if opts.VideoQuality == "" {
		opts.VideoQuality = domain.QualityAuto
	}
	return &Service{
		source:   src,
		mapper:   mapper.New(),
		queue:    q,
		ledger:   l,
		watcher:  w,
		policy:   p,
		logger:   log,
		opts:     opts,
		messages: events.NewBroker[domain.Message](),
		aliases:  make(map[string]string),
	}
}

// CourseDir is where the files of courseID are stored.
func CourseDir(outDir, courseID string) string {
	return filepath.Join(outDir, url.PathEscape(courseID))
}

// AddTree registers an already loaded tree.
func (s *Service) AddTree(tree *course.Tree) status.View {
	return s.watcher.SetTree(tree)
}

// Sync fetches the tree of courseID from the source and registers it,
// replacing any previous version.
func (s *Service) Sync(ctx context.Context, courseID string) (*course.Tree, error) {
	if s.source == nil {
		return nil, fmt.Errorf("course %s: %w", courseID, domain.ErrNotFound)
	}
	tree, err := s.source.Tree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if tree.CourseID() != courseID {
		s.mu.Lock()
		s.aliases[courseID] = tree.CourseID()
		s.mu.Unlock()
	}
	s.watcher.SetTree(tree)
	return tree, nil
}

// resolve returns the id a course is tracked under.
func (s *Service) resolve(courseID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.aliases[courseID]; ok {
		return id
	}
	return courseID
}

func (s *Service) tree(ctx context.Context, courseID string) (*course.Tree, error) {
	if tree, ok := s.watcher.Tree(s.resolve(courseID)); ok {
		return tree, nil
	}
	return s.Sync(ctx, courseID)
}

// Download queues the downloadable leaves under blockIDs, or the whole
// course when none are given.
func (s *Service) Download(ctx context.Context, courseID string, blockIDs []string) (engine.EnqueueResult, error) {
	tree, err := s.tree(ctx, courseID)
	if err != nil {
		return engine.EnqueueResult{}, err
	}
	if err := checkKnown(tree, blockIDs); err != nil {
		return engine.EnqueueResult{}, err
	}

	if err := s.policy.Allow(); err != nil {
		s.notifyPolicy(err)
		return engine.EnqueueResult{}, err
	}

	id := tree.CourseID()
	folder := CourseDir(s.opts.OutDir, id)
	snap := s.ledger.All(ctx)
	var recs []domain.DownloadRecord
	var total int64
	for _, leaf := range tree.DownloadableLeaves(blockIDs...) {
		rec, ok := s.mapper.BuildDescriptor(leaf, folder, id, s.opts.VideoQuality)
		if !ok {
			s.logger.Debug("Skipping %s: no downloadable source", leaf.ID)
			continue
		}
		recs = append(recs, *rec)
		if needsTransfer(snap, *rec) {
			total += max(rec.ByteSize, 0)
		}
	}

	if err := s.policy.AllowStorage(s.opts.OutDir, total); err != nil {
		if errors.Is(err, domain.ErrInsufficientStorage) {
			s.publish(domain.MessageError, fmt.Sprintf("Not enough free storage to download %s", humanize.Bytes(uint64(total))))
		}
		return engine.EnqueueResult{}, err
	}

	res, err := s.queue.Enqueue(ctx, recs)
	if err != nil {
		return res, err
	}
	if len(res.Admitted) > 0 {
		s.logger.Info("Queued %d item(s) of %s (%s)", len(res.Admitted), id, humanize.Bytes(uint64(total)))
	}
	return res, nil
}

// needsTransfer reports whether queueing rec would fetch new bytes. Rows
// already in the ledger are skipped by the queue unless an archive moved to a
// new revision.
func needsTransfer(snap ledger.Snapshot, rec domain.DownloadRecord) bool {
	prev, ok := snap.Get(rec.ID)
	if !ok {
		return true
	}
	return prev.State.IsDownloaded() && rec.Kind == domain.ContentArchive &&
		rec.RevisionTag != "" && rec.RevisionTag != prev.RevisionTag
}

// Remove deletes the downloads under blockIDs, or every download of the
// course when none are given.
func (s *Service) Remove(ctx context.Context, courseID string, blockIDs []string) ([]string, error) {
	var ids []string
	if len(blockIDs) == 0 {
		for _, rec := range s.ledger.All(ctx).ForCourse(s.resolve(courseID)) {
			ids = append(ids, rec.ID)
		}
	} else {
		tree, err := s.tree(ctx, courseID)
		if err != nil {
			return nil, err
		}
		if err := checkKnown(tree, blockIDs); err != nil {
			return nil, err
		}
		for _, leaf := range tree.DownloadableLeaves(blockIDs...) {
			ids = append(ids, leaf.ID)
		}
	}

	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.queue.Remove(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Cancel stops a single queued or running download.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.queue.Cancel(ctx, id)
}

// Status returns the current view of courseID.
func (s *Service) Status(ctx context.Context, courseID string) (status.View, error) {
	if v, ok := s.watcher.View(s.resolve(courseID)); ok {
		return v, nil
	}
	tree, err := s.Sync(ctx, courseID)
	if err != nil {
		return status.View{}, err
	}
	v, _ := s.watcher.View(tree.CourseID())
	return v, nil
}

// Downloads returns every record in the ledger.
func (s *Service) Downloads(ctx context.Context) ledger.Snapshot {
	return s.ledger.All(ctx)
}

// Messages subscribes to user-facing notices.
func (s *Service) Messages(buffer int) (<-chan domain.Message, func()) {
	return s.messages.Subscribe(buffer)
}

// Run turns drained-with-failures events into messages until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	drained, unsubscribe := s.queue.Drained(8)
	defer unsubscribe()
	defer s.messages.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-drained:
			if !ok {
				return nil
			}
			s.publish(domain.MessageError, fmt.Sprintf("%d download(s) failed", len(ev.Records)))
		}
	}
}

func (s *Service) notifyPolicy(err error) {
	switch {
	case errors.Is(err, domain.ErrWifiRequired):
		s.publish(domain.MessageError, "Downloads are only allowed over Wi-Fi")
	case errors.Is(err, domain.ErrOffline):
		s.publish(domain.MessageError, "No network connection")
	}
}

func (s *Service) publish(level domain.MessageLevel, text string) {
	s.logger.Info("%s", text)
	s.messages.Publish(domain.Message{Level: level, Text: text})
}

func checkKnown(tree *course.Tree, ids []string) error {
	for _, id := range ids {
		if _, ok := tree.Node(id); !ok {
			return fmt.Errorf("block %s: %w", id, domain.ErrNotFound)
		}
	}
	return nil
}
