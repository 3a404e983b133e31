package scheduler

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
)

var errFetch = errors.New("upstream unreachable")

type fakeStore struct {
	sources     []domain.Source
	lastFetched []string
}

func (f *fakeStore) GetActiveSources(context.Context) ([]domain.Source, error) {
	return f.sources, nil
}

func (f *fakeStore) UpdateSourceLastFetched(_ context.Context, id string, _ time.Time) error {
	f.lastFetched = append(f.lastFetched, id)

	return nil
}

type fakeFetcher struct {
	fetched []string
	failURL string
	items   map[string][]feed.ParsedItem
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*feed.Result, error) {
	f.fetched = append(f.fetched, url)

	if url == f.failURL {
		return nil, errFetch
	}

	return &feed.Result{Items: f.items[url]}, nil
}

type fakeIngestor struct {
	inserted map[string]int
}

func (f *fakeIngestor) Ingest(_ context.Context, sourceID string, items []feed.ParsedItem) (int, error) {
	if f.inserted == nil {
		f.inserted = make(map[string]int)
	}

	f.inserted[sourceID] = len(items)

	return len(items), nil
}

func testSources() []domain.Source {
	return []domain.Source{
		{ID: "s1", URL: "https://one.example/feed"},
		{ID: "s2", URL: "https://two.example/feed"},
		{ID: "s3", URL: "https://three.example/feed"},
	}
}

func newTestScheduler(store *fakeStore, fetcher *fakeFetcher, ingestor *fakeIngestor, signal worker.Signal) *Scheduler {
	logger := zerolog.Nop()

	return NewScheduler(store, fetcher, ingestor, signal, time.Millisecond, &logger)
}

func TestScheduler_RunCycle(t *testing.T) {
	store := &fakeStore{sources: testSources()}
	fetcher := &fakeFetcher{items: map[string][]feed.ParsedItem{
		"https://one.example/feed": {{GUID: "a"}},
	}}
	ingestor := &fakeIngestor{}
	signal := worker.NewSignal()

	sched := newTestScheduler(store, fetcher, ingestor, signal)

	require.NoError(t, sched.RunCycle(context.Background()))

	assert.Equal(t, []string{
		"https://one.example/feed",
		"https://two.example/feed",
		"https://three.example/feed",
	}, fetcher.fetched, "sources visited in registration order")

	assert.Equal(t, []string{"s1", "s2", "s3"}, store.lastFetched)

	select {
	case <-signal:
	default:
		t.Fatal("label signal should be raised when items were ingested")
	}
}

func TestScheduler_FailingSourceIsolated(t *testing.T) {
	store := &fakeStore{sources: testSources()}
	fetcher := &fakeFetcher{failURL: "https://two.example/feed"}
	ingestor := &fakeIngestor{}

	sched := newTestScheduler(store, fetcher, ingestor, worker.NewSignal())

	require.NoError(t, sched.RunCycle(context.Background()))

	assert.Len(t, fetcher.fetched, 3, "a failing source must not stop the cycle")
	assert.Equal(t, []string{"s1", "s3"}, store.lastFetched, "failed source keeps its last_fetched")
}

func TestScheduler_NoNewItemsNoSignal(t *testing.T) {
	store := &fakeStore{sources: testSources()}
	fetcher := &fakeFetcher{}
	ingestor := &fakeIngestor{}
	signal := worker.NewSignal()

	sched := newTestScheduler(store, fetcher, ingestor, signal)

	require.NoError(t, sched.RunCycle(context.Background()))

	select {
	case <-signal:
		t.Fatal("label signal must not be raised for an empty cycle")
	default:
	}
}

func TestScheduler_CanceledBetweenSources(t *testing.T) {
	store := &fakeStore{sources: testSources()}
	fetcher := &fakeFetcher{}
	ingestor := &fakeIngestor{}

	logger := zerolog.Nop()
	sched := NewScheduler(store, fetcher, ingestor, worker.NewSignal(), time.Hour, &logger)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := sched.RunCycle(ctx)
	require.Error(t, err)
	assert.Len(t, fetcher.fetched, 1, "cancellation during the gap stops the cycle")
}
