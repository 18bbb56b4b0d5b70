package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/processor"
	"github.com/openedx/edxoffline/internal/transfer"
)

// Start runs the worker pool until ctx is done. Queued work that has not
// started stays waiting in the ledger and is picked up by Recover next time.
func (m *QueueManager) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= m.opts.Workers; w++ {
		g.Go(func() error {
			m.worker(gctx)
			return nil
		})
	}
	m.logger.Debug("Started %d download worker(s)", m.opts.Workers)

	err := g.Wait()

	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.progress.Close()
	m.failures.Close()
	m.drained.Close()
	return err
}

// worker pulls jobs until ctx is done
func (m *QueueManager) worker(ctx context.Context) {
	for {
		next := m.next(ctx)
		if next == nil {
			select {
			case <-m.newJobChan:
				continue
			case <-ctx.Done():
				return
			}
		}
		m.run(ctx, next)
	}
}

// next moves the first runnable job to the active set and marks it
// downloading. A job whose id is still active elsewhere is skipped.
func (m *QueueManager) next(ctx context.Context) *job {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isCancelled(ctx) {
		return nil
	}

	for i, j := range m.queue {
		if _, busy := m.active[j.rec.ID]; busy {
			continue
		}

		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		delete(m.queued, j.rec.ID)

		j.rec.State = domain.StateDownloading
		if err := m.ledger.Upsert(ctx, j.rec); err != nil {
			// the row stays waiting; recovery on the next start retries it
			m.logger.Error("Failed to mark %s downloading: %v", j.rec.ID, err)
		}

		m.active[j.rec.ID] = j
		if len(m.queue) > 0 {
			m.signal()
		}
		return j
	}
	return nil
}

func (m *QueueManager) run(ctx context.Context, j *job) {
	jobCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	j.ctxCancel = cancel
	if j.cancelled {
		cancel()
	}
	m.mu.Unlock()
	defer cancel()

	rec := j.rec
	m.logger.Info("Downloading %s (%s)", rec.DisplayTitle, humanize.Bytes(uint64(max(rec.ByteSize, 0))))

	throttle := newProgressThrottle(rec.ID, m.opts.ProgressInterval, m.progress.Publish)
	res := m.transfer.Transfer(jobCtx, rec.SourceURL, rec.LocalPath, &j.cancel, throttle.report)

	var (
		final domain.DownloadRecord
		err   error
	)
	switch res.Outcome {
	case transfer.Success:
		throttle.flush()
		final, err = m.finalizer.Finalize(jobCtx, rec)
	case transfer.Canceled:
		err = context.Canceled
	default:
		err = res.Err
		if err == nil {
			err = errors.New("transfer failed")
		}
	}

	m.finalizeJob(ctx, j, final, err)
}

// finalizeJob records the outcome of a job and releases its id.
func (m *QueueManager) finalizeJob(ctx context.Context, j *job, final domain.DownloadRecord, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := j.rec.ID
	defer func() {
		delete(m.active, id)
		if len(m.queue) > 0 {
			m.signal()
		}
		m.checkIdleLocked()
	}()

	switch {
	case j.cancelled:
		// Cancel/Remove already dropped the row; only the files are left
		m.discardOutput(j)
		m.logger.Info("Cancelled by user: %s", j.rec.DisplayTitle)

	case errors.Is(err, context.Canceled) || isCancelled(ctx):
		// Shutdown: keep the row so Recover resumes it next start
		m.discardOutput(j)
		m.logger.Debug("Interrupted %s by shutdown", id)

	case err != nil:
		m.discardOutput(j)
		if derr := m.ledger.DeleteMany(ctx, []string{id}); derr != nil {
			m.logger.Error("Failed to delete record %s: %v", id, derr)
		}
		m.logger.Error("Download failed for %s: %v", j.rec.DisplayTitle, err)
		m.recordFailureLocked(j, err)

	default:
		if uerr := m.ledger.Upsert(ctx, final); uerr != nil {
			m.discardOutput(j)
			if rerr := processor.RemovePath(final.LocalPath); rerr != nil {
				m.logger.Warn("Failed to delete unpersisted output %s: %v", final.LocalPath, rerr)
			}
			if derr := m.ledger.DeleteMany(ctx, []string{id}); derr != nil {
				m.logger.Error("Failed to delete record %s: %v", id, derr)
			}
			m.logger.Error("Failed to persist %s: %v", id, uerr)
			m.recordFailureLocked(j, fmt.Errorf("persist: %w", uerr))
			return
		}
		if j.replaces != "" && j.replaces != final.LocalPath {
			if rerr := processor.RemovePath(j.replaces); rerr != nil {
				m.logger.Warn("Failed to delete previous revision %s: %v", j.replaces, rerr)
			}
		}
		m.logger.Info("Completed: %s (%s)", final.DisplayTitle, humanize.Bytes(uint64(final.ByteSize)))
	}
}

// discardOutput removes whatever a job left on disk, partial or finalized.
func (m *QueueManager) discardOutput(j *job) {
	paths := []string{j.rec.LocalPath}
	if j.rec.Kind == domain.ContentArchive {
		paths = append(paths, processor.ExtractedPath(j.rec.LocalPath))
	}
	for _, p := range paths {
		if err := processor.RemovePath(p); err != nil {
			m.logger.Warn("Failed to delete %s: %v", p, err)
		}
	}
}

// isCancelled is a small utility to check context state
func isCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
