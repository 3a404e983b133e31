// Package scheduler drives the periodic fetch cycle over all active
// sources. Sources are visited in registration order with a fixed gap
// between them; one failing source never blocks the rest.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"feedpulse/internal/core/domain"
	"feedpulse/internal/feed"
	"feedpulse/internal/platform/worker"
)

const defaultSourceGap = 2 * time.Minute

// SourceStore lists fetchable sources and records fetch completion.
type SourceStore interface {
	GetActiveSources(ctx context.Context) ([]domain.Source, error)
	UpdateSourceLastFetched(ctx context.Context, id string, t time.Time) error
}

// Fetcher retrieves a parsed feed snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*feed.Result, error)
}

// Ingestor persists fetched entries and reports how many were new.
type Ingestor interface {
	Ingest(ctx context.Context, sourceID string, items []feed.ParsedItem) (int, error)
}

// Scheduler runs fetch cycles.
type Scheduler struct {
	store       SourceStore
	fetcher     Fetcher
	ingestor    Ingestor
	labelSignal worker.Signal
	sourceGap   time.Duration
	logger      *zerolog.Logger
}

// NewScheduler creates a fetch scheduler. labelSignal is raised whenever
// a cycle ingests at least one new item.
func NewScheduler(store SourceStore, fetcher Fetcher, ingestor Ingestor, labelSignal worker.Signal, sourceGap time.Duration, logger *zerolog.Logger) *Scheduler {
	if sourceGap <= 0 {
		sourceGap = defaultSourceGap
	}

	return &Scheduler{
		store:       store,
		fetcher:     fetcher,
		ingestor:    ingestor,
		labelSignal: labelSignal,
		sourceGap:   sourceGap,
		logger:      logger,
	}
}

// RunCycle fetches every active source once, oldest registration first.
// Per-source failures are logged and skipped; the gap wait between
// sources keeps the cycle polite to upstreams.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	sources, err := s.store.GetActiveSources(ctx)
	if err != nil {
		return fmt.Errorf("get active sources: %w", err)
	}

	s.logger.Info().Int("sources", len(sources)).Msg("starting fetch cycle")

	ingested := 0

	for i := range sources {
		if i > 0 {
			if err := worker.Wait(ctx, s.sourceGap); err != nil {
				return err
			}
		}

		inserted, err := s.fetchSource(ctx, &sources[i])
		if err != nil {
			if ctx.Err() != nil {
				return err
			}

			s.logger.Error().Err(err).Str("source_id", sources[i].ID).Str("url", sources[i].URL).Msg("source fetch failed")

			continue
		}

		// Kick labeling without waiting for it; the signal coalesces
		// repeated raises within one cycle.
		if inserted > 0 {
			s.labelSignal.Raise()
		}

		ingested += inserted
	}

	s.logger.Info().Int("ingested", ingested).Msg("fetch cycle complete")

	return nil
}

func (s *Scheduler) fetchSource(ctx context.Context, source *domain.Source) (int, error) {
	result, err := s.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		return 0, err
	}

	inserted, err := s.ingestor.Ingest(ctx, source.ID, result.Items)
	if err != nil {
		return inserted, err
	}

	if err := s.store.UpdateSourceLastFetched(ctx, source.ID, time.Now()); err != nil {
		return inserted, fmt.Errorf("update last fetched: %w", err)
	}

	return inserted, nil
}
