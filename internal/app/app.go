// Package app provides the unified application lifecycle management for Stockyard.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"

	httpapi "github.com/stockyard/stockyard/internal/api/http"
	"github.com/stockyard/stockyard/internal/artifact"
	"github.com/stockyard/stockyard/internal/catalog"
	"github.com/stockyard/stockyard/internal/commit"
	"github.com/stockyard/stockyard/internal/config"
	"github.com/stockyard/stockyard/internal/csvcodec"
	"github.com/stockyard/stockyard/internal/events"
	"github.com/stockyard/stockyard/internal/extract"
	"github.com/stockyard/stockyard/internal/observability"
	"github.com/stockyard/stockyard/internal/queue"
	"github.com/stockyard/stockyard/internal/server"
	"github.com/stockyard/stockyard/internal/storage"
)

// App manages all Stockyard service lifecycles.
type App struct {
	cfg *config.Config

	// Shared resources
	storage   storage.ObjectStorage
	store     catalog.Store
	work      queue.Queue
	dead      queue.Queue
	publisher events.Publisher
	stats     *observability.PipelineStats
	shutdown  *server.ShutdownManager

	// Service components
	apiServer *http.Server
	watcher   *extract.Watcher
	committer *commit.Committer

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg: cfg,
	}, nil
}

// Start initializes shared resources and starts all configured services.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if a.cfg.ShouldRunAPI() {
		a.startAPIService()
	}
	if a.cfg.ShouldRunExtract() {
		a.startExtractService(ctx)
	}
	if a.cfg.ShouldRunCommit() {
		a.startCommitService(ctx)
	}

	log.Info().Str("mode", string(a.cfg.Mode)).Msg("stockyard started")
	return nil
}

// initSharedResources initializes storage, queues, the catalog store, the
// event publisher, and the shutdown manager.
func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		a.storage, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.UsePathStyle,
		})
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info().Str("type", a.cfg.Storage.Type).Msg("storage initialized")

	switch a.cfg.Queue.Type {
	case "memory":
		a.work = queue.NewMemoryQueue(a.cfg.Queue.VisibilityTimeout)
		a.dead = queue.NewMemoryQueue(a.cfg.Queue.VisibilityTimeout)
	case "sqs":
		sqsCfg := queue.SQSConfig{
			Region:            a.cfg.Queue.Region,
			VisibilityTimeout: a.cfg.Queue.VisibilityTimeout,
			WaitTime:          a.cfg.Queue.WaitTime,
			CompressThreshold: a.cfg.Queue.CompressThreshold,
		}
		a.work, err = queue.NewSQSQueue(ctx, a.cfg.Queue.WorkQueueURL, sqsCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize work queue: %w", err)
		}
		if a.cfg.Queue.DeadLetterURL != "" {
			a.dead, err = queue.NewSQSQueue(ctx, a.cfg.Queue.DeadLetterURL, sqsCfg)
			if err != nil {
				return fmt.Errorf("failed to initialize dead-letter queue: %w", err)
			}
		} else {
			a.dead = queue.NewMemoryQueue(a.cfg.Queue.VisibilityTimeout)
		}
	default:
		return fmt.Errorf("unsupported queue type: %s", a.cfg.Queue.Type)
	}
	log.Info().Str("type", a.cfg.Queue.Type).Msg("queues initialized")

	store, err := catalog.NewSQLiteStore(a.cfg.Catalog.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize catalog store: %w", err)
	}
	a.store = store
	log.Info().Str("path", a.cfg.Catalog.DBPath).Msg("catalog store initialized")

	a.stats = observability.NewPipelineStats()
	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{})
	a.shutdown.RegisterCloser(a.store)

	switch a.cfg.Events.Type {
	case "inproc":
		router := events.NewRouter(64)
		a.subscribeLoggingClasses(router)
		a.publisher = router
	case "sns":
		var opts []func(*awsconfig.LoadOptions) error
		if a.cfg.Events.Region != "" {
			opts = append(opts, awsconfig.WithRegion(a.cfg.Events.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to load AWS config for events: %w", err)
		}
		a.publisher = events.NewSNSPublisher(awsCfg, a.cfg.Events.TopicARN)
	default:
		return fmt.Errorf("unsupported events type: %s", a.cfg.Events.Type)
	}
	log.Info().Str("type", a.cfg.Events.Type).Msg("event publisher initialized")

	return nil
}

// subscribeLoggingClasses registers the reference price partition on the
// in-process router: one class above the threshold, one at or below. Each
// just logs what it receives.
func (a *App) subscribeLoggingClasses(router *events.Router) {
	threshold := a.cfg.Events.PriceThreshold
	premium := router.Subscribe("premium", events.PriceAbove(threshold))
	standard := router.Subscribe("standard", events.PriceAtOrBelow(threshold))

	drain := func(class string, ch chan events.CommitEvent) {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for ev := range ch {
				log.Info().
					Str("class", class).
					Str("subject", ev.Subject).
					Str("product_id", ev.Message.Product.ID).
					Float64("price", ev.Price).
					Msg("commit event")
			}
		}()
	}
	drain("premium", premium.Ch)
	drain("standard", standard.Ch)

	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		router.Unsubscribe("premium")
		router.Unsubscribe("standard")
		return nil
	}))
}

// startAPIService starts the HTTP API server.
func (a *App) startAPIService() {
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Store:         a.store,
		Storage:       a.storage,
		Stats:         a.stats,
		PendingPrefix: a.cfg.Pipeline.PendingPrefix,
		UploadTTL:     a.cfg.HTTP.UploadURLTTL,
	})

	a.apiServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      server.ShutdownMiddleware(a.shutdown)(router),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	graceful := server.NewGracefulHTTPServer(a.apiServer, a.shutdown)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Info().Str("addr", a.cfg.HTTP.Addr).Msg("API server listening")
		if err := graceful.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()
}

// startExtractService starts the pending-prefix watcher.
func (a *App) startExtractService(ctx context.Context) {
	tracker := artifact.NewTracker(a.storage, a.cfg.Pipeline.PendingPrefix, a.cfg.Pipeline.ProcessedPrefix)
	extractor := extract.NewExtractor(tracker, a.work, a.stats, extract.Options{
		Delimiter:    a.cfg.Pipeline.Delimiter[0],
		Malformed:    codecPolicy(a.cfg.Pipeline.MalformedPolicy),
		DefaultCount: a.cfg.Pipeline.DefaultCount,
	})
	a.watcher = extract.NewWatcher(a.storage, extractor, a.cfg.Pipeline.PendingPrefix, a.cfg.Pipeline.PollInterval)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Info().
			Str("prefix", a.cfg.Pipeline.PendingPrefix).
			Dur("interval", a.cfg.Pipeline.PollInterval).
			Msg("extraction watcher running")
		if err := a.watcher.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("extraction watcher stopped")
		}
	}()
}

// startCommitService starts the commit-stage consumer pool.
func (a *App) startCommitService(ctx context.Context) {
	a.committer = commit.NewCommitter(a.work, a.dead, a.store, a.publisher, a.stats, commit.Options{
		Workers:   a.cfg.Pipeline.Workers,
		BatchSize: a.cfg.Queue.BatchSize,
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Info().
			Int("workers", a.cfg.Pipeline.Workers).
			Int("batch_size", a.cfg.Queue.BatchSize).
			Msg("commit stage running")
		if err := a.committer.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("commit stage stopped")
		}
	}()
}

func codecPolicy(p config.MalformedPolicy) csvcodec.MalformedPolicy {
	if p == config.MalformedFail {
		return csvcodec.FailOnMalformed
	}
	return csvcodec.DropMalformed
}

// Stop gracefully stops all services and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}

	err := a.shutdown.Shutdown(ctx, "stop requested")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("shutdown timeout, some goroutines may not have finished")
	}

	snap := a.stats.SnapshotNow()
	log.Info().
		Int64("records_committed", snap.RecordsCommitted).
		Int64("records_dead_letter", snap.RecordsDeadLetter).
		Int64("events_published", snap.EventsPublished).
		Msg("stockyard stopped")
	return err
}

// cleanup releases resources on failed startup.
func (a *App) cleanup() {
	if a.store != nil {
		a.store.Close()
	}
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}

// Stats exposes the pipeline counters.
func (a *App) Stats() *observability.PipelineStats {
	return a.stats
}
