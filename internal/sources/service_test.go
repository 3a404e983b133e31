package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpulse/internal/core/domain"
	"feedpulse/internal/feed"
	"feedpulse/internal/platform/worker"
	db "feedpulse/internal/storage"
)

type fakeRepo struct {
	sources map[string]*domain.Source
	items   map[string]*domain.Item
	nextID  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sources: make(map[string]*domain.Source),
		items:   make(map[string]*domain.Item),
	}
}

func (f *fakeRepo) CreateSource(_ context.Context, source *domain.Source) error {
	f.nextID++
	source.ID = "src-" + string(rune('0'+f.nextID))
	source.CreatedAt = time.Now()
	f.sources[source.ID] = source

	return nil
}

func (f *fakeRepo) GetSource(_ context.Context, id string) (*domain.Source, error) {
	source, ok := f.sources[id]
	if !ok {
		return nil, db.ErrSourceNotFound
	}

	return source, nil
}

func (f *fakeRepo) UpdateSource(_ context.Context, id, title, category, icon string) error {
	source, ok := f.sources[id]
	if !ok {
		return db.ErrSourceNotFound
	}

	source.Title, source.Category, source.Icon = title, category, icon

	return nil
}

func (f *fakeRepo) UpdateSourceLastFetched(_ context.Context, id string, t time.Time) error {
	source, ok := f.sources[id]
	if !ok {
		return db.ErrSourceNotFound
	}

	source.LastFetched = t

	return nil
}

func (f *fakeRepo) DeleteSource(_ context.Context, id string) (int64, error) {
	delete(f.sources, id)

	var removed int64

	for itemID, item := range f.items {
		if item.SourceID == id {
			delete(f.items, itemID)
			removed++
		}
	}

	return removed, nil
}

func (f *fakeRepo) GetItem(_ context.Context, id string) (*domain.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, db.ErrItemNotFound
	}

	return item, nil
}

func (f *fakeRepo) SetItemRead(_ context.Context, id string, isRead bool) (int, error) {
	f.items[id].IsRead = isRead

	unread := 0

	for _, item := range f.items {
		if item.SourceID == f.items[id].SourceID && !item.IsRead {
			unread++
		}
	}

	return unread, nil
}

func (f *fakeRepo) SetItemFavorite(_ context.Context, id string, isFavorite bool) error {
	f.items[id].IsFavorite = isFavorite

	return nil
}

func (f *fakeRepo) TrashItem(_ context.Context, id string) error {
	f.items[id].IsTrashed = true

	return nil
}

func (f *fakeRepo) RestoreItem(_ context.Context, id string) error {
	f.items[id].IsTrashed = false

	return nil
}

func (f *fakeRepo) EmptyTrash(_ context.Context) (int64, error) {
	var removed int64

	for id, item := range f.items {
		if item.IsTrashed {
			delete(f.items, id)
			removed++
		}
	}

	return removed, nil
}

func (f *fakeRepo) GetItemCounts(_ context.Context) (*db.ItemCounts, error) {
	counts := &db.ItemCounts{}

	for _, item := range f.items {
		if item.IsTrashed {
			counts.Trashed++

			continue
		}

		if !item.IsRead {
			counts.Unread++
		}

		if item.IsFavorite {
			counts.Favorite++
		}
	}

	return counts, nil
}

type fakeFetcher struct {
	fetchCalls int
	result     *feed.Result
	err        error
	icon       string
}

func (f *fakeFetcher) Fetch(context.Context, string) (*feed.Result, error) {
	f.fetchCalls++

	if f.err != nil {
		return nil, f.err
	}

	return f.result, nil
}

func (f *fakeFetcher) Validate(context.Context, string) *feed.Validation {
	if f.err != nil {
		return &feed.Validation{Valid: false, Message: f.err.Error()}
	}

	return &feed.Validation{Valid: true, Title: f.result.Meta.Title, Icon: f.icon}
}

func (f *fakeFetcher) CachedIcon(string) string {
	return f.icon
}

type fakeIngestor struct {
	inserted int
}

func (f *fakeIngestor) Ingest(_ context.Context, _ string, items []feed.ParsedItem) (int, error) {
	f.inserted = len(items)

	return len(items), nil
}

func newTestService(repo Repository, fetcher Fetcher, ingestor Ingestor, signal worker.Signal) *Service {
	logger := zerolog.Nop()

	return NewService(repo, fetcher, ingestor, signal, &logger)
}

func TestService_Create(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{
		result: &feed.Result{
			Meta:  feed.Meta{Title: "Go Blog", Description: "The Go Programming Language Blog"},
			Items: []feed.ParsedItem{{GUID: "a"}, {GUID: "b"}},
		},
		icon: "https://go.dev/favicon.ico",
	}
	ingestor := &fakeIngestor{}
	signal := worker.NewSignal()

	svc := newTestService(repo, fetcher, ingestor, signal)

	source, inserted, err := svc.Create(context.Background(), "https://go.dev/feed", "", "tech")
	require.NoError(t, err)

	assert.Equal(t, "Go Blog", source.Title, "feed title used when no override given")
	assert.Equal(t, "tech", source.Category)
	assert.Equal(t, "https://go.dev/favicon.ico", source.Icon)
	assert.True(t, source.IsActive)
	assert.False(t, source.LastFetched.IsZero())
	assert.Equal(t, 2, inserted)

	select {
	case <-signal:
	default:
		t.Fatal("label signal should be raised after initial ingestion")
	}
}

func TestService_CreateTitleOverride(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{result: &feed.Result{Meta: feed.Meta{Title: "Feed Title"}}}

	svc := newTestService(repo, fetcher, &fakeIngestor{}, worker.NewSignal())

	source, _, err := svc.Create(context.Background(), "https://example.com/feed", "My Name", "")
	require.NoError(t, err)
	assert.Equal(t, "My Name", source.Title)
}

func TestService_CreateInvalidFeed(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{err: errors.New("not a feed")}

	svc := newTestService(repo, fetcher, &fakeIngestor{}, worker.NewSignal())

	_, _, err := svc.Create(context.Background(), "https://example.com", "", "")
	require.Error(t, err)
	assert.Empty(t, repo.sources, "no source row for an invalid feed")
}

func TestService_ItemStateMutations(t *testing.T) {
	repo := newFakeRepo()
	repo.items["i1"] = &domain.Item{ID: "i1", SourceID: "src-1"}
	repo.items["i2"] = &domain.Item{ID: "i2", SourceID: "src-1"}

	svc := newTestService(repo, &fakeFetcher{result: &feed.Result{}}, &fakeIngestor{}, worker.NewSignal())
	ctx := context.Background()

	unread, err := svc.MarkRead(ctx, "i1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	fav, err := svc.ToggleFavorite(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, fav)

	fav, err = svc.ToggleFavorite(ctx, "i1")
	require.NoError(t, err)
	assert.False(t, fav)

	require.NoError(t, svc.Trash(ctx, "i2"))
	assert.True(t, repo.items["i2"].IsTrashed)

	require.NoError(t, svc.Restore(ctx, "i2"))
	assert.False(t, repo.items["i2"].IsTrashed)

	require.NoError(t, svc.Trash(ctx, "i2"))

	removed, err := svc.EmptyTrash(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	counts, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Trashed)
	assert.Equal(t, 0, counts.Unread, "remaining item was marked read")
}
