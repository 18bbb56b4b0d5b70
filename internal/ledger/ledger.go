// Package ledger is the authoritative table of download records. Every
// committed write publishes a full snapshot of the table to subscribers.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/events"
	"github.com/openedx/edxoffline/internal/infra/logger"
	"github.com/openedx/edxoffline/internal/store"
)

type Ledger struct {
	mu      sync.Mutex
	backend store.Backend
	logger  *logger.Logger
	current Snapshot
	changes *events.Broker[Snapshot]
}

// Open loads the current table from backend.
func Open(ctx context.Context, backend store.Backend, log *logger.Logger) (*Ledger, error) {
	if log == nil {
		log = logger.Nop()
	}
	recs, err := backend.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return &Ledger{
		backend: backend,
		logger:  log,
		current: newSnapshot(recs),
		changes: events.NewBroker[Snapshot](),
	}, nil
}

// Upsert writes recs, overwriting any record with the same id.
func (l *Ledger) Upsert(ctx context.Context, recs ...domain.DownloadRecord) error {
	for _, r := range recs {
		if r.ID == "" {
			return fmt.Errorf("upsert: record has no id")
		}
		if !r.State.Valid() {
			return fmt.Errorf("upsert %s: state %q cannot be persisted", r.ID, r.State)
		}
	}
	return l.write(ctx, func() error { return l.backend.Upsert(ctx, recs...) }, recs, nil)
}

// Get reads a single record from the backend.
func (l *Ledger) Get(ctx context.Context, id string) (domain.DownloadRecord, bool, error) {
	return l.backend.Get(ctx, id)
}

func (l *Ledger) Delete(ctx context.Context, id string) error {
	return l.DeleteMany(ctx, []string{id})
}

// DeleteMany removes ids. Unknown ids are ignored.
func (l *Ledger) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return l.write(ctx, func() error { return l.backend.Delete(ctx, ids...) }, nil, ids)
}

// All returns the latest committed snapshot.
func (l *Ledger) All(context.Context) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Changes subscribes to snapshots. The current snapshot is delivered first;
// a subscriber that falls behind only ever sees the latest one.
func (l *Ledger) Changes(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changes.SubscribeWith(buffer, l.current)
}

// Close ends every subscription. The backend is owned by the caller.
func (l *Ledger) Close() {
	l.changes.Close()
}

// write commits op, then republishes the table. Once op has committed the
// write has succeeded: if the reload fails the snapshot is patched in memory.
func (l *Ledger) write(ctx context.Context, op func() error, upserts []domain.DownloadRecord, deletes []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := op(); err != nil {
		return err
	}

	recs, err := l.backend.All(ctx)
	if err != nil {
		l.logger.Warn("Failed to reload ledger after write, patching snapshot: %v", err)
		l.current = l.current.apply(upserts, deletes)
	} else {
		l.current = newSnapshot(recs)
	}
	l.changes.Publish(l.current)
	return nil
}
