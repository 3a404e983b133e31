// Package sources implements the subscription surface: validate a feed
// URL, register it as a source reusing the validated snapshot, and the
// per-item read/favorite/trash state mutations.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"feedpulse/internal/core/domain"
	"feedpulse/internal/feed"
	"feedpulse/internal/platform/worker"
	db "feedpulse/internal/storage"
)

// Repository is the storage surface the service drives.
type Repository interface {
	CreateSource(ctx context.Context, source *domain.Source) error
	GetSource(ctx context.Context, id string) (*domain.Source, error)
	UpdateSource(ctx context.Context, id, title, category, icon string) error
	UpdateSourceLastFetched(ctx context.Context, id string, t time.Time) error
	DeleteSource(ctx context.Context, id string) (int64, error)

	GetItem(ctx context.Context, id string) (*domain.Item, error)
	SetItemRead(ctx context.Context, id string, isRead bool) (int, error)
	SetItemFavorite(ctx context.Context, id string, isFavorite bool) error
	TrashItem(ctx context.Context, id string) error
	RestoreItem(ctx context.Context, id string) error
	EmptyTrash(ctx context.Context) (int64, error)
	GetItemCounts(ctx context.Context) (*db.ItemCounts, error)
}

// Fetcher probes and fetches feeds through the shared validation cache.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*feed.Result, error)
	Validate(ctx context.Context, url string) *feed.Validation
	CachedIcon(url string) string
}

// Ingestor persists fetched entries.
type Ingestor interface {
	Ingest(ctx context.Context, sourceID string, items []feed.ParsedItem) (int, error)
}

// Service is the subscription and item-state surface.
type Service struct {
	repo        Repository
	fetcher     Fetcher
	ingestor    Ingestor
	labelSignal worker.Signal
	logger      *zerolog.Logger
}

// NewService creates the subscription service.
func NewService(repo Repository, fetcher Fetcher, ingestor Ingestor, labelSignal worker.Signal, logger *zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		fetcher:     fetcher,
		ingestor:    ingestor,
		labelSignal: labelSignal,
		logger:      logger,
	}
}

// Validate probes a candidate feed URL without registering it. A valid
// probe leaves the snapshot cached so a Create that follows within the
// cache TTL issues no second fetch.
func (s *Service) Validate(ctx context.Context, url string) *feed.Validation {
	return s.fetcher.Validate(ctx, url)
}

// Create registers a feed as a source and ingests its current entries.
// The fetch goes through the validation cache, so validate-then-create
// costs one upstream request. title and category override the feed's own
// metadata when non-empty.
func (s *Service) Create(ctx context.Context, url, title, category string) (*domain.Source, int, error) {
	result, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch feed: %w", err)
	}

	if title == "" {
		title = result.Meta.Title
	}

	if title == "" {
		title = url
	}

	source := &domain.Source{
		URL:         url,
		Title:       title,
		Description: result.Meta.Description,
		Category:    category,
		Icon:        s.fetcher.CachedIcon(url),
		IsActive:    true,
	}

	if err := s.repo.CreateSource(ctx, source); err != nil {
		return nil, 0, fmt.Errorf("create source: %w", err)
	}

	inserted, err := s.ingestor.Ingest(ctx, source.ID, result.Items)
	if err != nil {
		return source, inserted, fmt.Errorf("ingest initial items: %w", err)
	}

	if err := s.repo.UpdateSourceLastFetched(ctx, source.ID, time.Now()); err != nil {
		return source, inserted, fmt.Errorf("update last fetched: %w", err)
	}

	if inserted > 0 {
		s.labelSignal.Raise()
	}

	s.logger.Info().Str("source_id", source.ID).Str("url", url).Int("items", inserted).Msg("source registered")

	return source, inserted, nil
}

// Get returns one source.
func (s *Service) Get(ctx context.Context, id string) (*domain.Source, error) {
	return s.repo.GetSource(ctx, id)
}

// Update changes a source's editable fields.
func (s *Service) Update(ctx context.Context, id, title, category, icon string) error {
	return s.repo.UpdateSource(ctx, id, title, category, icon)
}

// Delete removes a source and its items, returning how many items went
// with it.
func (s *Service) Delete(ctx context.Context, id string) (int64, error) {
	return s.repo.DeleteSource(ctx, id)
}

// MarkRead sets an item's read flag and returns the source's recomputed
// unread count.
func (s *Service) MarkRead(ctx context.Context, itemID string, isRead bool) (int, error) {
	return s.repo.SetItemRead(ctx, itemID, isRead)
}

// ToggleFavorite flips an item's favorite flag.
func (s *Service) ToggleFavorite(ctx context.Context, itemID string) (bool, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}

	next := !item.IsFavorite
	if err := s.repo.SetItemFavorite(ctx, itemID, next); err != nil {
		return false, err
	}

	return next, nil
}

// Trash soft-deletes an item.
func (s *Service) Trash(ctx context.Context, itemID string) error {
	return s.repo.TrashItem(ctx, itemID)
}

// Restore brings a trashed item back.
func (s *Service) Restore(ctx context.Context, itemID string) error {
	return s.repo.RestoreItem(ctx, itemID)
}

// EmptyTrash permanently deletes all trashed items.
func (s *Service) EmptyTrash(ctx context.Context) (int64, error) {
	return s.repo.EmptyTrash(ctx)
}

// Counts aggregates item states across all sources.
func (s *Service) Counts(ctx context.Context) (*db.ItemCounts, error) {
	return s.repo.GetItemCounts(ctx)
}
