// Package app wires the pipeline together: storage, the LLM client, the
// fetch scheduler, both enrichment processors and their retry schedulers.
package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"feedpulse/internal/feed"
	"feedpulse/internal/ingest"
	"feedpulse/internal/llm"
	"feedpulse/internal/platform/config"
	"feedpulse/internal/platform/observability"
	"feedpulse/internal/platform/worker"
	"feedpulse/internal/process/labeler"
	"feedpulse/internal/process/retry"
	"feedpulse/internal/process/summarizer"
	"feedpulse/internal/scheduler"
	"feedpulse/internal/sources"
	db "feedpulse/internal/storage"
)

const (
	workerFetchCycle   = "fetch-cycle"
	workerLabelKick    = "label-processor"
	workerSummaryKick  = "summary-processor"
	workerLabelRetry   = "label-retry"
	workerSummaryRetry = "summary-retry"
)

// App holds the wired pipeline.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger

	cache   *feed.Cache
	fetcher *feed.Fetcher

	labelSignal   worker.Signal
	summarySignal worker.Signal

	fetchScheduler *scheduler.Scheduler
	sourcesSvc     *sources.Service
	labelProc      *labeler.Processor
	summaryProc    *summarizer.Processor
	labelRetry     *retry.Scheduler
	summaryRetry   *retry.Scheduler
}

// New wires all pipeline components against the given database.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	llmClient := llm.New(cfg, logger)

	cache := feed.NewCache(cfg.FeedCacheTTL, cfg.FeedCacheMaxSize)
	fetcher := feed.NewFetcher(cache, cfg.FeedTimeout, cfg.FeedItemLimit, logger)

	labelSignal := worker.NewSignal()
	summarySignal := worker.NewSignal()

	engine := ingest.NewEngine(database, logger)

	labelProc := labeler.NewProcessor(database, llmClient, cfg.LabelBatchSize, summarySignal, logger)
	summaryProc := summarizer.NewProcessor(database, llmClient, summarizer.Options{
		BatchSize:      cfg.SummaryBatchSize,
		MaxConcurrency: cfg.SummaryMaxConcurrency,
		Timeout:        cfg.SummaryTimeout,
		MinBodyLength:  cfg.SummaryMinBodyLength,
	}, logger)

	return &App{
		cfg:            cfg,
		database:       database,
		logger:         logger,
		cache:          cache,
		fetcher:        fetcher,
		labelSignal:    labelSignal,
		summarySignal:  summarySignal,
		fetchScheduler: scheduler.NewScheduler(database, fetcher, engine, labelSignal, cfg.SourceFetchGap, logger),
		sourcesSvc:     sources.NewService(database, fetcher, engine, labelSignal, logger),
		labelProc:      labelProc,
		summaryProc:    summaryProc,
		labelRetry:     retry.NewScheduler("label", labelErrorStore{database}, labelProc, cfg.RetryBatchSize, cfg.RetryBatchGap, logger),
		summaryRetry:   retry.NewScheduler("summary", summaryErrorStore{database}, summaryProc, cfg.RetryBatchSize, cfg.RetryBatchGap, logger),
	}
}

// Fetcher exposes the shared fetcher for the validation surface.
func (a *App) Fetcher() *feed.Fetcher {
	return a.fetcher
}

// Sources exposes the subscription and item-state service.
func (a *App) Sources() *sources.Service {
	return a.sourcesSvc
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.database, a.cfg.HealthPort, a.logger).Start(ctx)
}

// Run starts every background loop and blocks until the context is
// canceled: the periodic fetch cycle, the signal-driven label and
// summary processors, and both retry schedulers.
func (a *App) Run(ctx context.Context) error {
	if reset, err := a.database.ResetStaleProcessing(ctx); err != nil {
		a.logger.Error().Err(err).Msg("failed to reset stale processing items")
	} else if reset > 0 {
		a.logger.Info().Int64("items", reset).Msg("reset stale processing items from previous run")
	}

	go a.runLabelLoop(ctx)
	go a.runSummaryLoop(ctx)
	go a.runLabelRetryLoop(ctx)
	go a.runSummaryRetryLoop(ctx)

	err := worker.TickerLoop(ctx, worker.TickerConfig{
		Name:       workerFetchCycle,
		Interval:   a.cfg.FetchInterval,
		RunOnStart: true,
		Logger:     a.logger,
		OnTick: func(ctx context.Context) {
			defer worker.RecoverPanic(a.logger, workerFetchCycle)

			if err := a.fetchScheduler.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("fetch cycle failed")
			}
		},
	})
	if errors.Is(err, context.Canceled) {
		a.logger.Info().Msg("pipeline stopped")

		return nil
	}

	return err
}

func (a *App) runLabelLoop(ctx context.Context) {
	_ = worker.SignalLoop(ctx, worker.SignalConfig{
		Name:   workerLabelKick,
		Signal: a.labelSignal,
		Logger: a.logger,
		OnSignal: func(ctx context.Context) {
			defer worker.RecoverPanic(a.logger, workerLabelKick)

			if _, err := a.labelProc.ProcessPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("label processing failed")
			}
		},
	})
}

func (a *App) runSummaryLoop(ctx context.Context) {
	_ = worker.SignalLoop(ctx, worker.SignalConfig{
		Name:   workerSummaryKick,
		Signal: a.summarySignal,
		Logger: a.logger,
		OnSignal: func(ctx context.Context) {
			defer worker.RecoverPanic(a.logger, workerSummaryKick)

			if _, err := a.summaryProc.ProcessPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("summary processing failed")
			}
		},
	})
}

func (a *App) runLabelRetryLoop(ctx context.Context) {
	_ = worker.TickerLoop(ctx, worker.TickerConfig{
		Name:     workerLabelRetry,
		Interval: a.cfg.LabelRetryInterval,
		Logger:   a.logger,
		OnTick: func(ctx context.Context) {
			defer worker.RecoverPanic(a.logger, workerLabelRetry)

			if err := a.labelRetry.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("label retry cycle failed")
			}
		},
	})
}

func (a *App) runSummaryRetryLoop(ctx context.Context) {
	_ = worker.TickerLoop(ctx, worker.TickerConfig{
		Name:     workerSummaryRetry,
		Interval: a.cfg.SummaryRetryInterval,
		Logger:   a.logger,
		OnTick: func(ctx context.Context) {
			defer worker.RecoverPanic(a.logger, workerSummaryRetry)

			if err := a.summaryRetry.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("summary retry cycle failed")
			}
		},
	})
}

// labelErrorStore adapts the storage layer to the label retry scheduler.
type labelErrorStore struct {
	db *db.DB
}

func (s labelErrorStore) GetErrorItemIDs(ctx context.Context, limit int) ([]string, error) {
	return s.db.GetLabelErrorItemIDs(ctx, limit)
}

func (s labelErrorStore) ResetErrors(ctx context.Context, ids []string) (int64, error) {
	return s.db.ResetLabelErrors(ctx, ids)
}

// summaryErrorStore adapts the storage layer to the summary retry scheduler.
type summaryErrorStore struct {
	db *db.DB
}

func (s summaryErrorStore) GetErrorItemIDs(ctx context.Context, limit int) ([]string, error) {
	return s.db.GetSummaryErrorItemIDs(ctx, limit)
}

func (s summaryErrorStore) ResetErrors(ctx context.Context, ids []string) (int64, error) {
	return s.db.ResetSummaryErrors(ctx, ids)
}
