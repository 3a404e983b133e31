// Package labeler classifies ingested items with the tag vocabulary.
// Items move pending -> processing -> done or error; the claim is a
// conditional update so concurrent runs never label the same item twice.
package labeler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"feedpulse/internal/core/domain"
	"feedpulse/internal/llm"
	"feedpulse/internal/platform/observability"
	"feedpulse/internal/platform/worker"
)

const defaultBatchSize = 3

// retryBackoff delays between model call attempts. Two retries after the
// first failure, then the whole batch is marked errored.
var retryBackoff = []time.Duration{time.Second, 2 * time.Second}

// Repository is the storage surface the label processor drives.
type Repository interface {
	GetPendingLabelItems(ctx context.Context, limit int) ([]domain.Item, error)
	ClaimItemsForLabeling(ctx context.Context, ids []string) ([]string, error)
	SaveItemLabels(ctx context.Context, id string, labels *domain.LabelSet) error
	SaveItemLabelError(ctx context.Context, id, message string) error
}

// Processor runs label classification over pending items.
type Processor struct {
	repo          Repository
	client        llm.Client
	batchSize     int
	summarySignal worker.Signal
	backoff       []time.Duration
	logger        *zerolog.Logger
}

// NewProcessor creates a label processor. summarySignal is raised when a
// batch produces at least one summarizable item.
func NewProcessor(repo Repository, client llm.Client, batchSize int, summarySignal worker.Signal, logger *zerolog.Logger) *Processor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Processor{
		repo:          repo,
		client:        client,
		batchSize:     batchSize,
		summarySignal: summarySignal,
		backoff:       retryBackoff,
		logger:        logger,
	}
}

// ProcessPending drains the pending label queue in batches and returns
// how many items left the pending state. Sub-full batches are processed
// too; a failing batch is recorded per item and never blocks later
// batches.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	processed := 0

	for {
		items, err := p.repo.GetPendingLabelItems(ctx, p.batchSize)
		if err != nil {
			return processed, fmt.Errorf("get pending label items: %w", err)
		}

		if len(items) == 0 {
			return processed, nil
		}

		claimed, err := p.claimBatch(ctx, items)
		if err != nil {
			return processed, err
		}

		if len(claimed) > 0 {
			if err := p.processBatch(ctx, claimed); err != nil {
				return processed, err
			}

			processed += len(claimed)
		}

		if len(items) < p.batchSize {
			return processed, nil
		}
	}
}

// claimBatch flips the fetched items to processing. Items another worker
// claimed first drop out of the batch.
func (p *Processor) claimBatch(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	ids := make([]string, 0, len(items))
	for i := range items {
		ids = append(ids, items[i].ID)
	}

	claimedIDs, err := p.repo.ClaimItemsForLabeling(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("claim items for labeling: %w", err)
	}

	claimedSet := make(map[string]bool, len(claimedIDs))
	for _, id := range claimedIDs {
		claimedSet[id] = true
	}

	claimed := make([]domain.Item, 0, len(claimedIDs))

	for i := range items {
		if claimedSet[items[i].ID] {
			claimed = append(claimed, items[i])
		}
	}

	return claimed, nil
}

func (p *Processor) processBatch(ctx context.Context, items []domain.Item) error {
	requests := make([]llm.LabelRequest, 0, len(items))

	for i := range items {
		item := &items[i]

		requests = append(requests, llm.LabelRequest{
			ID:          item.ID,
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			SourceTitle: item.SourceTitle,
		})
	}

	results, err := p.callWithRetry(ctx, requests)
	if err != nil {
		p.logger.Error().Err(err).Int("batch", len(items)).Msg("label batch failed")

		return p.failBatch(ctx, items, err)
	}

	return p.saveResults(ctx, items, results)
}

// callWithRetry retries the model call with fixed backoff. Context
// cancellation aborts immediately.
func (p *Processor) callWithRetry(ctx context.Context, requests []llm.LabelRequest) ([]llm.LabelResult, error) {
	var lastErr error

	for attempt := 0; attempt <= len(p.backoff); attempt++ {
		if attempt > 0 {
			if err := worker.Wait(ctx, p.backoff[attempt-1]); err != nil {
				return nil, err
			}
		}

		results, err := p.client.LabelItems(ctx, requests)
		if err == nil {
			return results, nil
		}

		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		lastErr = err

		p.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("label call failed")
	}

	return nil, lastErr
}

// failBatch records the model failure on every claimed item so the retry
// scheduler can pick them up later.
func (p *Processor) failBatch(ctx context.Context, items []domain.Item, cause error) error {
	// Best effort when the parent context is gone; claimed items must
	// reach the error state or the retry scheduler never sees them.
	if ctx.Err() != nil {
		ctx = context.Background()
	}

	for i := range items {
		if err := p.repo.SaveItemLabelError(ctx, items[i].ID, cause.Error()); err != nil {
			return fmt.Errorf("save label error: %w", err)
		}

		observability.LabelsProcessed.WithLabelValues("error").Inc()
	}

	return nil
}

func (p *Processor) saveResults(ctx context.Context, items []domain.Item, results []llm.LabelResult) error {
	byID := make(map[string]llm.LabelResult, len(results))
	for _, res := range results {
		byID[res.ID] = res
	}

	summarizable := false

	for i := range items {
		item := &items[i]

		res, ok := byID[item.ID]
		if !ok {
			if err := p.repo.SaveItemLabelError(ctx, item.ID, "no result returned for item"); err != nil {
				return fmt.Errorf("save label error: %w", err)
			}

			observability.LabelsProcessed.WithLabelValues("error").Inc()

			continue
		}

		labels := res.LabelSet()

		if err := ValidateLabelSet(&labels); err != nil {
			p.logger.Warn().Err(err).Str("item_id", item.ID).Msg("model returned invalid labels")

			if err := p.repo.SaveItemLabelError(ctx, item.ID, err.Error()); err != nil {
				return fmt.Errorf("save label error: %w", err)
			}

			observability.LabelsProcessed.WithLabelValues("error").Inc()

			continue
		}

		if err := p.repo.SaveItemLabels(ctx, item.ID, &labels); err != nil {
			return fmt.Errorf("save labels: %w", err)
		}

		observability.LabelsProcessed.WithLabelValues("done").Inc()

		if !labels.IsSkip() {
			summarizable = true
		}
	}

	if summarizable {
		p.summarySignal.Raise()
	}

	return nil
}
