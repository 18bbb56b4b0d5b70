package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/ledger"
	"github.com/openedx/edxoffline/internal/transfer"
)

// Ledger is the subset of the download ledger the queue writes through.
type Ledger interface {
	Upsert(ctx context.Context, recs ...domain.DownloadRecord) error
	DeleteMany(ctx context.Context, ids []string) error
	All(ctx context.Context) ledger.Snapshot
}

// Transferer streams one URL to disk.
type Transferer interface {
	Transfer(ctx context.Context, url, dest string, cancel *atomic.Bool, progress transfer.ProgressFunc) transfer.Result
}

// Finalizer turns a transferred file into its downloaded record.
type Finalizer interface {
	Finalize(ctx context.Context, rec domain.DownloadRecord) (domain.DownloadRecord, error)
}

type Options struct {
	// Workers is the number of concurrent transfers
	Workers int
	// ProgressInterval throttles ProgressChanged events per item
	ProgressInterval time.Duration
	// RefreshChangedArchives re-downloads archives whose revision tag moved
	RefreshChangedArchives bool
}

// EnqueueResult reports which ids a call admitted to the queue.
type EnqueueResult struct {
	BatchID  string   `json:"batch_id"`
	Admitted []string `json:"admitted"`
	Skipped  []string `json:"skipped"`
}

// RecoverResult reports what startup reconciliation did.
type RecoverResult struct {
	Resumed []string `json:"resumed"`
	Pruned  []string `json:"pruned"`
}

// job is one record travelling through the queue.
type job struct {
	rec   domain.DownloadRecord
	batch string

	// replaces is the on-disk path of a previous download of the same id
	replaces string

	cancel    atomic.Bool
	ctxCancel context.CancelFunc
	cancelled bool // set under the manager lock by Cancel/Remove
}
