// Package summarizer generates Markdown summaries for labeled items.
// Skip-tagged and too-short items are marked ignored without a model
// call; the rest are summarized concurrently under a fixed cap.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"feedpulse/internal/core/domain"
	"feedpulse/internal/llm"
	"feedpulse/internal/platform/observability"
	"feedpulse/internal/platform/worker"
)

const (
	defaultBatchSize      = 3
	defaultMaxConcurrency = 4
	defaultTimeout        = 30 * time.Second
	defaultMinBodyLength  = 100

	reasonSkipTagged = "skip-tagged by label processor"
	reasonTooShort   = "content too short to summarize"
)

// retryBackoff delays between model call attempts for one item.
var retryBackoff = []time.Duration{time.Second, 2 * time.Second}

// ErrMalformedSummary indicates the model output is not a usable
// Markdown summary.
var ErrMalformedSummary = errors.New("malformed summary")

// Repository is the storage surface the summary processor drives.
type Repository interface {
	GetPendingSummaryItems(ctx context.Context, limit int) ([]domain.Item, error)
	MarkSummaryIgnored(ctx context.Context, id, reason string) (bool, error)
	ClaimItemForSummary(ctx context.Context, id string) (bool, error)
	SaveItemSummary(ctx context.Context, id, summary string) error
	SaveItemSummaryError(ctx context.Context, id, message string) error
}

// Processor runs summary generation over labeled items.
type Processor struct {
	repo           Repository
	client         llm.Client
	batchSize      int
	maxConcurrency int
	timeout        time.Duration
	minBodyLength  int
	backoff        []time.Duration
	logger         *zerolog.Logger
}

// Options tune the processor; zero values fall back to defaults.
type Options struct {
	BatchSize      int
	MaxConcurrency int
	Timeout        time.Duration
	MinBodyLength  int
}

// NewProcessor creates a summary processor.
func NewProcessor(repo Repository, client llm.Client, opts Options, logger *zerolog.Logger) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.MinBodyLength <= 0 {
		opts.MinBodyLength = defaultMinBodyLength
	}

	return &Processor{
		repo:           repo,
		client:         client,
		batchSize:      opts.BatchSize,
		maxConcurrency: opts.MaxConcurrency,
		timeout:        opts.Timeout,
		minBodyLength:  opts.MinBodyLength,
		backoff:        retryBackoff,
		logger:         logger,
	}
}

// ProcessPending drains the summary queue and returns how many items
// left the pending state (summarized, errored or ignored). Eligible
// items are those with labeling done and summary pending. Model calls
// run in parallel across batches, bounded by the concurrency pool:
// dispatch blocks on a free pool slot, so in-flight calls never exceed
// the cap.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	sem := make(chan struct{}, p.maxConcurrency)

	var wg sync.WaitGroup
	defer wg.Wait()

	processed := 0

	for {
		items, err := p.repo.GetPendingSummaryItems(ctx, p.batchSize)
		if err != nil {
			return processed, fmt.Errorf("get pending summary items: %w", err)
		}

		if len(items) == 0 {
			return processed, nil
		}

		dispatched, err := p.dispatchBatch(ctx, items, sem, &wg)
		processed += dispatched

		if err != nil {
			return processed, err
		}

		if len(items) < p.batchSize {
			return processed, nil
		}
	}
}

// dispatchBatch filters and claims one batch, then starts a goroutine per
// claimed item. A pool slot is acquired before the goroutine spawns;
// when the pool is full the next batch waits here. Returns how many
// items were resolved or handed to the pool.
func (p *Processor) dispatchBatch(ctx context.Context, items []domain.Item, sem chan struct{}, wg *sync.WaitGroup) (int, error) {
	dispatched := 0

	for i := range items {
		item := items[i]

		skip, reason := p.shouldIgnore(&item)
		if skip {
			if _, err := p.repo.MarkSummaryIgnored(ctx, item.ID, reason); err != nil {
				return dispatched, fmt.Errorf("mark summary ignored: %w", err)
			}

			observability.SummariesProcessed.WithLabelValues("ignored").Inc()

			dispatched++

			continue
		}

		claimed, err := p.repo.ClaimItemForSummary(ctx, item.ID)
		if err != nil {
			return dispatched, fmt.Errorf("claim item for summary: %w", err)
		}

		if !claimed {
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			p.saveError(ctx, item.ID, ctx.Err())

			return dispatched, fmt.Errorf("summary dispatch: %w", ctx.Err())
		}

		wg.Add(1)

		dispatched++

		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer worker.RecoverPanic(p.logger, "summarize item")

			p.summarizeItem(ctx, &item)
		}()
	}

	return dispatched, nil
}

// shouldIgnore reports whether the item is excluded from summarization
// and why.
func (p *Processor) shouldIgnore(item *domain.Item) (bool, string) {
	if item.Labels.IsSkip() {
		return true, reasonSkipTagged
	}

	if utf8.RuneCountInString(item.Body()) < p.minBodyLength {
		return true, reasonTooShort
	}

	return false, ""
}

func (p *Processor) summarizeItem(ctx context.Context, item *domain.Item) {
	observability.SummaryInFlight.Inc()
	defer observability.SummaryInFlight.Dec()

	summary, err := p.callWithRetry(ctx, item)
	if err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("summary generation failed")
		p.saveError(ctx, item.ID, err)

		return
	}

	if err := p.repo.SaveItemSummary(ctx, item.ID, summary); err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to save summary")

		return
	}

	observability.SummariesProcessed.WithLabelValues("success").Inc()
}

// callWithRetry retries the model call with fixed backoff; each attempt
// runs under its own timeout. Malformed output counts as a failed
// attempt too.
func (p *Processor) callWithRetry(ctx context.Context, item *domain.Item) (string, error) {
	request := llm.SummaryRequest{
		Title:       item.Title,
		Link:        item.Link,
		Content:     item.Body(),
		SourceTitle: item.SourceTitle,
	}

	var lastErr error

	for attempt := 0; attempt <= len(p.backoff); attempt++ {
		if attempt > 0 {
			if err := worker.Wait(ctx, p.backoff[attempt-1]); err != nil {
				return "", err
			}
		}

		var summary string

		err := worker.RunWithTimeout(ctx, p.timeout, func(ctx context.Context) error {
			var callErr error
			summary, callErr = p.client.Summarize(ctx, request)

			return callErr
		})
		if err == nil {
			err = validateSummary(summary)
			if err == nil {
				return summary, nil
			}
		}

		if errors.Is(err, context.Canceled) {
			return "", err
		}

		lastErr = err

		p.logger.Warn().Err(err).Str("item_id", item.ID).Int("attempt", attempt+1).Msg("summary call failed")
	}

	return "", lastErr
}

func (p *Processor) saveError(ctx context.Context, id string, cause error) {
	// Best effort when the parent context is gone.
	if ctx.Err() != nil {
		ctx = context.Background()
	}

	if err := p.repo.SaveItemSummaryError(ctx, id, cause.Error()); err != nil {
		p.logger.Error().Err(err).Str("item_id", id).Msg("failed to save summary error")
	}

	observability.SummariesProcessed.WithLabelValues("error").Inc()
}

const minSummaryLength = 50

// validateSummary rejects output that is too short or carries no
// Markdown section structure.
func validateSummary(summary string) error {
	if len(summary) < minSummaryLength {
		return fmt.Errorf("%w: too short (%d bytes)", ErrMalformedSummary, len(summary))
	}

	if !containsHeading(summary) {
		return fmt.Errorf("%w: no Markdown headings", ErrMalformedSummary)
	}

	return nil
}

func containsHeading(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '#' && s[i+1] == '#' && (i == 0 || s[i-1] == '\n') {
			return true
		}
	}

	return false
}
