package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/openedx/edxoffline/internal/cache"
	"github.com/openedx/edxoffline/internal/course"
	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/engine"
	"github.com/openedx/edxoffline/internal/extraction"
	"github.com/openedx/edxoffline/internal/infra/config"
	"github.com/openedx/edxoffline/internal/infra/logger"
	"github.com/openedx/edxoffline/internal/ledger"
	"github.com/openedx/edxoffline/internal/offline"
	"github.com/openedx/edxoffline/internal/platform"
	"github.com/openedx/edxoffline/internal/policy"
	"github.com/openedx/edxoffline/internal/processor"
	"github.com/openedx/edxoffline/internal/status"
	"github.com/openedx/edxoffline/internal/store"
	"github.com/openedx/edxoffline/internal/transfer"
)

// Context holds the core environment and shared resources of the app.
// It acts as the single source of truth for the running components.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Store   store.Backend
	Ledger  *ledger.Ledger
	Queue   *engine.QueueManager
	Watcher *status.Watcher
	Policy  *policy.Checker
	Monitor *policy.StaticMonitor
	Service *offline.Service
}

// NewContext opens the store and wires every component. Nothing runs until
// Run is called.
func NewContext(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Context, error) {
	if err := platform.ValidateDependencies(cfg, log); err != nil {
		return nil, err
	}

	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	l, err := ledger.Open(ctx, backend, log)
	if err != nil {
		backend.Close()
		return nil, err
	}

	conn, err := policy.ParseConnection(cfg.Network.Connection)
	if err != nil {
		backend.Close()
		return nil, err
	}
	monitor := policy.NewStaticMonitor(conn)
	checker := policy.NewChecker(cfg.Network.WifiOnly, monitor)

	extractors := extraction.NewManager(extraction.Options{UseSystemUnzip: cfg.Extraction.UseSystemUnzip}, log)
	log.Debug("Available extractors: %v", extractors.AvailableExtractors())

	queue := engine.NewQueueManager(
		l,
		transfer.NewClient(transfer.Options{
			UserAgent:      cfg.Download.UserAgent,
			ConnectTimeout: cfg.Download.ConnectTimeout,
			RateLimitBPS:   cfg.Download.RateLimitBPS,
		}),
		processor.New(log, extractors),
		log,
		engine.Options{
			Workers:                cfg.Download.Workers,
			ProgressInterval:       cfg.Download.ProgressInterval,
			RefreshChangedArchives: cfg.Download.RefreshChangedArchives,
		},
	)

	quality := domain.ParseVideoQuality(cfg.Download.VideoQuality)
	watcher := status.NewWatcher(l, quality, log)
	svc := offline.NewService(newSource(cfg, log), queue, l, watcher, checker, log, offline.Options{
		OutDir:       cfg.Download.OutDir,
		VideoQuality: quality,
	})

	return &Context{
		Config:  cfg,
		Logger:  log,
		Store:   backend,
		Ledger:  l,
		Queue:   queue,
		Watcher: watcher,
		Policy:  checker,
		Monitor: monitor,
		Service: svc,
	}, nil
}

// newSource fetches structure documents over HTTP when a source URL is set,
// caching them on disk. Without one, documents are read from the cache dir.
func newSource(cfg *config.Config, log *logger.Logger) course.Source {
	docs := &cache.FileCache{Dir: cfg.Course.CacheDir}
	if cfg.Course.SourceURL == "" {
		return course.NewLoader(&course.DirFetcher{Dir: cfg.Course.CacheDir})
	}
	fetcher := &course.HTTPFetcher{
		URLTemplate: cfg.Course.SourceURL,
		Client:      &http.Client{Timeout: cfg.Download.ConnectTimeout},
		UserAgent:   cfg.Download.UserAgent,
	}
	return course.NewLoader(course.NewCachedFetcher(fetcher, docs, log))
}

// Run recovers leftovers from a previous run, then runs the queue, the status
// watcher and the service until ctx is done.
func (a *Context) Run(ctx context.Context) error {
	if _, err := a.Queue.Recover(ctx); err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Queue.Start(gctx) })
	g.Go(func() error { return a.Watcher.Run(gctx) })
	g.Go(func() error { return a.Service.Run(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the ledger and the store. Call it after Run returns.
func (a *Context) Close() error {
	a.Ledger.Close()
	return a.Store.Close()
}
