package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/events"
	"github.com/openedx/edxoffline/internal/infra/logger"
	"github.com/openedx/edxoffline/internal/processor"
)

// QueueManager owns the download state machine. It is the only writer of the
// ledger: waiting -> downloading -> downloaded, and back to "no record" on
// cancel or failure. Ledger writes for queued or active ids happen under mu so
// they are totally ordered per id.
type QueueManager struct {
	mu        sync.Mutex
	ledger    Ledger
	transfer  Transferer
	finalizer Finalizer
	logger    *logger.Logger
	opts      Options

	queue  []*job
	queued map[string]*job
	active map[string]*job

	failed      []domain.DownloadRecord
	failedBatch []string
	idleCh      chan struct{}
	stopped     bool

	newJobChan chan struct{}

	progress *events.Broker[domain.ProgressChanged]
	failures *events.Broker[domain.ItemFailed]
	drained  *events.Broker[domain.DownloadFailed]
}

func NewQueueManager(l Ledger, t Transferer, f Finalizer, log *logger.Logger, opts Options) *QueueManager {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 200 * time.Millisecond
	}

	return &QueueManager{
		ledger:     l,
		transfer:   t,
		finalizer:  f,
		logger:     log,
		opts:       opts,
		queued:     make(map[string]*job),
		active:     make(map[string]*job),
		idleCh:     make(chan struct{}),
		newJobChan: make(chan struct{}, 1),
		progress:   events.NewBroker[domain.ProgressChanged](),
		failures:   events.NewBroker[domain.ItemFailed](),
		drained:    events.NewBroker[domain.DownloadFailed](),
	}
}

// Enqueue admits every record that is not already downloaded, queued or in
// flight. Admitted records are persisted as waiting before this returns.
func (m *QueueManager) Enqueue(ctx context.Context, recs []domain.DownloadRecord) (EnqueueResult, error) {
	res := EnqueueResult{BatchID: ksuid.New().String()}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return res, domain.ErrShuttingDown
	}

	snap := m.ledger.All(ctx)
	seen := make(map[string]struct{}, len(recs))
	var jobs []*job
	var rows []domain.DownloadRecord

	for _, rec := range recs {
		if _, dup := seen[rec.ID]; dup || rec.ID == "" {
			continue
		}
		seen[rec.ID] = struct{}{}

		if m.inPipelineLocked(rec.ID) {
			res.Skipped = append(res.Skipped, rec.ID)
			continue
		}

		j := &job{batch: res.BatchID}
		if existing, ok := snap.Get(rec.ID); ok && existing.State.IsDownloaded() {
			if !m.revisionChanged(existing, rec) {
				res.Skipped = append(res.Skipped, rec.ID)
				continue
			}
			m.logger.Info("Revision of %s changed (%s -> %s), downloading again", rec.ID, existing.RevisionTag, rec.RevisionTag)
			j.replaces = existing.LocalPath
		}

		j.rec = rec.WithState(domain.StateWaiting)
		jobs = append(jobs, j)
		rows = append(rows, j.rec)
	}

	if len(jobs) == 0 {
		return res, nil
	}

	if err := m.ledger.Upsert(ctx, rows...); err != nil {
		return EnqueueResult{BatchID: res.BatchID}, fmt.Errorf("failed to persist queued records: %w", err)
	}

	for _, j := range jobs {
		m.queue = append(m.queue, j)
		m.queued[j.rec.ID] = j
		res.Admitted = append(res.Admitted, j.rec.ID)
	}

	m.logger.Info("Queued %d item(s) in batch %s, %d skipped", len(res.Admitted), res.BatchID, len(res.Skipped))
	m.signal()
	return res, nil
}

func (m *QueueManager) revisionChanged(existing, rec domain.DownloadRecord) bool {
	return m.opts.RefreshChangedArchives &&
		rec.Kind == domain.ContentArchive &&
		rec.RevisionTag != "" &&
		existing.RevisionTag != "" &&
		rec.RevisionTag != existing.RevisionTag
}

// inPipelineLocked reports whether id is waiting or transferring. A cancelled
// job that is still winding down does not count, so the id can be queued again.
func (m *QueueManager) inPipelineLocked(id string) bool {
	if _, ok := m.queued[id]; ok {
		return true
	}
	if j, ok := m.active[id]; ok && !j.cancelled {
		return true
	}
	return false
}

// Cancel stops a queued or in-flight download and forgets its record. A
// completed download is left alone; use Remove for that.
func (m *QueueManager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancelled := m.cancelLocked(id)
	if !cancelled {
		// a stale row left behind by an earlier run is still cancellable
		if rec, ok := m.ledger.All(ctx).Get(id); !ok || !rec.State.IsWaitingOrDownloading() {
			return nil
		}
	}

	if err := m.ledger.DeleteMany(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	m.checkIdleLocked()
	return nil
}

// CancelAll cancels everything queued or in flight.
func (m *QueueManager) CancelAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id := range m.queued {
		ids = append(ids, id)
	}
	for id, j := range m.active {
		if !j.cancelled {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		m.cancelLocked(id)
	}

	if len(ids) > 0 {
		m.logger.Info("Cancelling %d download(s)", len(ids))
	}
	if err := m.ledger.DeleteMany(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete cancelled records: %w", err)
	}
	m.checkIdleLocked()
	return nil
}

// Remove cancels the given ids when needed, deletes their files and drops
// their records. Unknown ids are ignored; file removal is best effort.
func (m *QueueManager) Remove(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.ledger.All(ctx)
	var known []string
	for _, id := range ids {
		cancelled := m.cancelLocked(id)
		rec, ok := snap.Get(id)
		if !ok && !cancelled {
			continue
		}
		known = append(known, id)
		if ok {
			m.removeFiles(rec)
		}
	}

	if err := m.ledger.DeleteMany(ctx, known); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	if len(known) > 0 {
		m.logger.Info("Removed %d download(s)", len(known))
	}
	m.checkIdleLocked()
	return nil
}

// cancelLocked drops a queued job or flags an active one. It reports whether
// the id was in the pipeline.
func (m *QueueManager) cancelLocked(id string) bool {
	if j, ok := m.queued[id]; ok {
		delete(m.queued, id)
		m.removeFromLiveQueue(j)
		m.logger.Debug("Cancelled queued download %s", id)
		return true
	}

	if j, ok := m.active[id]; ok && !j.cancelled {
		j.cancelled = true
		j.cancel.Store(true)
		if j.ctxCancel != nil {
			j.ctxCancel()
		}
		m.logger.Debug("Cancelled active download %s", id)
		return true
	}
	return false
}

// removeFromLiveQueue keeps the queue slice free of cancelled jobs
func (m *QueueManager) removeFromLiveQueue(target *job) {
	for i, j := range m.queue {
		if j == target {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}

func (m *QueueManager) removeFiles(rec domain.DownloadRecord) {
	paths := []string{rec.LocalPath}
	if rec.Kind == domain.ContentArchive && !rec.State.IsDownloaded() {
		paths = append(paths, processor.ExtractedPath(rec.LocalPath))
	}
	for _, p := range paths {
		if err := processor.RemovePath(p); err != nil {
			m.logger.Warn("Failed to delete %s: %v", p, err)
		}
	}
}

// Recover reconciles the ledger with the filesystem after a restart. Rows
// left waiting or downloading are reset and queued again after their partial
// files are removed; downloaded rows whose content vanished are dropped.
func (m *QueueManager) Recover(ctx context.Context) (RecoverResult, error) {
	var res RecoverResult

	m.mu.Lock()
	defer m.mu.Unlock()

	var resume []domain.DownloadRecord
	for _, rec := range m.ledger.All(ctx).Records() {
		if m.inPipelineLocked(rec.ID) {
			continue
		}
		switch {
		case rec.State.IsWaitingOrDownloading():
			m.removeFiles(rec)
			resume = append(resume, rec.WithState(domain.StateWaiting))
		case rec.State.IsDownloaded() && !processor.Exists(rec.LocalPath):
			res.Pruned = append(res.Pruned, rec.ID)
		}
	}

	if err := m.ledger.DeleteMany(ctx, res.Pruned); err != nil {
		return res, fmt.Errorf("failed to prune missing downloads: %w", err)
	}
	if len(resume) == 0 {
		return res, nil
	}
	if err := m.ledger.Upsert(ctx, resume...); err != nil {
		return res, fmt.Errorf("failed to reset interrupted downloads: %w", err)
	}

	batch := ksuid.New().String()
	for _, rec := range resume {
		j := &job{rec: rec, batch: batch}
		m.queue = append(m.queue, j)
		m.queued[rec.ID] = j
		res.Resumed = append(res.Resumed, rec.ID)
	}

	m.logger.Info("Recovered %d interrupted download(s), pruned %d missing", len(res.Resumed), len(res.Pruned))
	m.signal()
	return res, nil
}

// Idle reports whether nothing is queued or in flight.
func (m *QueueManager) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idleLocked()
}

func (m *QueueManager) idleLocked() bool {
	return len(m.queue) == 0 && len(m.active) == 0
}

// Wait blocks until the queue is idle or ctx is done.
func (m *QueueManager) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.idleLocked() {
			m.mu.Unlock()
			return nil
		}
		ch := m.idleCh
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// checkIdleLocked wakes Wait callers once the queue drains and reports the
// failures collected since the last drain.
func (m *QueueManager) checkIdleLocked() {
	if !m.idleLocked() {
		return
	}

	if len(m.failed) > 0 {
		evt := domain.DownloadFailed{BatchIDs: m.failedBatch, Records: m.failed}
		m.failed, m.failedBatch = nil, nil
		m.logger.Warn("Queue drained with %d failed download(s)", len(evt.Records))
		m.drained.Publish(evt)
	}

	close(m.idleCh)
	m.idleCh = make(chan struct{})
}

func (m *QueueManager) recordFailureLocked(j *job, reason error) {
	m.failed = append(m.failed, j.rec)
	found := false
	for _, b := range m.failedBatch {
		if b == j.batch {
			found = true
			break
		}
	}
	if !found {
		m.failedBatch = append(m.failedBatch, j.batch)
	}
	m.failures.Publish(domain.ItemFailed{BatchID: j.batch, Record: j.rec, Reason: reason.Error()})
}

// signal wakes one idle worker without blocking
func (m *QueueManager) signal() {
	select {
	case m.newJobChan <- struct{}{}:
	default:
		// Signal already pending, no need to block
	}
}

// Progress subscribes to throttled transfer progress.
func (m *QueueManager) Progress(buffer int) (<-chan domain.ProgressChanged, func()) {
	return m.progress.Subscribe(buffer)
}

// Failures subscribes to per-item failures. Cancellations are not failures.
func (m *QueueManager) Failures(buffer int) (<-chan domain.ItemFailed, func()) {
	return m.failures.Subscribe(buffer)
}

// Drained subscribes to the failure summary published when the queue empties.
func (m *QueueManager) Drained(buffer int) (<-chan domain.DownloadFailed, func()) {
	return m.drained.Subscribe(buffer)
}

// ActiveItems returns the records currently transferring.
func (m *QueueManager) ActiveItems() []domain.DownloadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.DownloadRecord, 0, len(m.active))
	for _, j := range m.active {
		if !j.cancelled {
			out = append(out, j.rec)
		}
	}
	return out
}
