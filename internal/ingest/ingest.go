// Package ingest persists fetched feed entries, deduplicating on the
// per-source GUID so repeated fetches of overlapping windows are
// idempotent.
package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"feedpulse/internal/core/domain"
	"feedpulse/internal/feed"
	"feedpulse/internal/platform/observability"
)

// Repository is the storage surface ingestion writes through.
type Repository interface {
	InsertItem(ctx context.Context, item *domain.Item) (bool, error)
	RecomputeUnreadCount(ctx context.Context, sourceID string) (int, error)
}

// Engine writes fetched entries into storage.
type Engine struct {
	repo   Repository
	logger *zerolog.Logger
}

// NewEngine creates an ingestion engine.
func NewEngine(repo Repository, logger *zerolog.Logger) *Engine {
	return &Engine{repo: repo, logger: logger}
}

// Ingest inserts the fetched entries for one source and returns how many
// were new. Duplicates (same source and GUID) are silently skipped, so
// re-ingesting the same snapshot inserts nothing. New items start with
// both enrichment states pending.
func (e *Engine) Ingest(ctx context.Context, sourceID string, items []feed.ParsedItem) (int, error) {
	inserted := 0

	for i := range items {
		parsed := &items[i]

		ok, err := e.repo.InsertItem(ctx, &domain.Item{
			SourceID:      sourceID,
			GUID:          parsed.GUID,
			Title:         parsed.Title,
			Link:          parsed.Link,
			Description:   parsed.Description,
			Content:       parsed.Content,
			CoverImage:    parsed.CoverImage,
			PublishedAt:   parsed.PublishedAt,
			LabelStatus:   domain.LabelStatusPending,
			SummaryStatus: domain.SummaryStatusPending,
		})
		if err != nil {
			return inserted, fmt.Errorf("insert item %q: %w", parsed.GUID, err)
		}

		if ok {
			inserted++
		}
	}

	if inserted > 0 {
		observability.ItemsIngested.Add(float64(inserted))

		if _, err := e.repo.RecomputeUnreadCount(ctx, sourceID); err != nil {
			return inserted, fmt.Errorf("recompute unread count: %w", err)
		}
	}

	e.logger.Debug().
		Str("source_id", sourceID).
		Int("fetched", len(items)).
		Int("inserted", inserted).
		Msg("ingested feed items")

	return inserted, nil
}
