// Package retry periodically resets errored items back to pending and
// kicks the owning processor. One scheduler instance serves the label
// pipeline and another the summary pipeline.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"feedpulse/internal/platform/observability"
	"feedpulse/internal/platform/worker"
)

const (
	defaultBatchSize = 3
	defaultBatchGap  = 10 * time.Second
)

// Store lists and resets errored items for one processor.
type Store interface {
	GetErrorItemIDs(ctx context.Context, limit int) ([]string, error)
	ResetErrors(ctx context.Context, ids []string) (int64, error)
}

// Processor re-runs the pending queue after a reset.
type Processor interface {
	ProcessPending(ctx context.Context) (int, error)
}

// Scheduler resets errored items in rate-limited batches, then triggers
// one processing pass over the refilled pending queue.
type Scheduler struct {
	name      string
	store     Store
	proc      Processor
	batchSize int
	batchGap  time.Duration
	logger    *zerolog.Logger
}

// NewScheduler creates a retry scheduler. name labels logs and metrics.
func NewScheduler(name string, store Store, proc Processor, batchSize int, batchGap time.Duration, logger *zerolog.Logger) *Scheduler {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	if batchGap <= 0 {
		batchGap = defaultBatchGap
	}

	return &Scheduler{
		name:      name,
		store:     store,
		proc:      proc,
		batchSize: batchSize,
		batchGap:  batchGap,
		logger:    logger,
	}
}

// Run executes one retry cycle. With no errored items it returns without
// touching the processor. Resets are spaced by the batch gap so a large
// error backlog does not flood the model with immediate work.
func (s *Scheduler) Run(ctx context.Context) error {
	total := 0

	for {
		ids, err := s.store.GetErrorItemIDs(ctx, s.batchSize)
		if err != nil {
			return fmt.Errorf("get error item ids: %w", err)
		}

		if len(ids) == 0 {
			break
		}

		if total > 0 {
			if err := worker.Wait(ctx, s.batchGap); err != nil {
				return err
			}
		}

		reset, err := s.store.ResetErrors(ctx, ids)
		if err != nil {
			return fmt.Errorf("reset errors: %w", err)
		}

		total += int(reset)

		observability.RetryResets.WithLabelValues(s.name).Add(float64(reset))

		if len(ids) < s.batchSize {
			break
		}
	}

	if total == 0 {
		return nil
	}

	processed, err := s.proc.ProcessPending(ctx)
	if err != nil {
		return fmt.Errorf("process pending after retry reset: %w", err)
	}

	s.logger.Info().Str("processor", s.name).Int("reset", total).Int("processed", processed).Msg("retry cycle complete")

	return nil
}
