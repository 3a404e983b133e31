package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpulse/internal/core/domain"
	"feedpulse/internal/llm"
)

const validSummary = "## Key Arguments\n\n- A real point made by the article.\n\n## Value to Me\n\nUseful context for daily work."

var errModelDown = errors.New("model unavailable")

type fakeRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Item
	order []string
}

func newFakeRepo(items ...*domain.Item) *fakeRepo {
	repo := &fakeRepo{items: make(map[string]*domain.Item)}

	for _, item := range items {
		repo.items[item.ID] = item
		repo.order = append(repo.order, item.ID)
	}

	return repo
}

func (f *fakeRepo) GetPendingSummaryItems(_ context.Context, limit int) ([]domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Item

	for _, id := range f.order {
		if len(out) == limit {
			break
		}

		item := f.items[id]
		if item.SummaryStatus == domain.SummaryStatusPending && item.LabelStatus == domain.LabelStatusDone {
			out = append(out, *item)
		}
	}

	return out, nil
}

func (f *fakeRepo) MarkSummaryIgnored(_ context.Context, id, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item := f.items[id]
	if item.SummaryStatus != domain.SummaryStatusPending {
		return false, nil
	}

	item.SummaryStatus = domain.SummaryStatusIgnored
	item.SummaryError = reason

	return true, nil
}

func (f *fakeRepo) ClaimItemForSummary(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item := f.items[id]
	if item.SummaryStatus != domain.SummaryStatusPending || item.LabelStatus != domain.LabelStatusDone {
		return false, nil
	}

	item.SummaryStatus = domain.SummaryStatusProcessing

	return true, nil
}

func (f *fakeRepo) SaveItemSummary(_ context.Context, id, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	item := f.items[id]
	if item.SummaryStatus != domain.SummaryStatusProcessing {
		return errors.New("item not in processing state")
	}

	item.SummaryStatus = domain.SummaryStatusSuccess
	item.Summary = summary
	item.SummaryError = ""

	return nil
}

func (f *fakeRepo) SaveItemSummaryError(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	item := f.items[id]
	if item.SummaryStatus != domain.SummaryStatusProcessing {
		return errors.New("item not in processing state")
	}

	item.SummaryStatus = domain.SummaryStatusError
	item.SummaryError = message

	return nil
}

type fakeLLM struct {
	calls     atomic.Int32
	inFlight  atomic.Int32
	maxSeen   atomic.Int32
	failUntil int32
	err       error
	response  string
	delay     time.Duration
}

func (f *fakeLLM) LabelItems(context.Context, []llm.LabelRequest) ([]llm.LabelResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) Summarize(ctx context.Context, _ llm.SummaryRequest) (string, error) {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		max := f.maxSeen.Load()
		if current <= max || f.maxSeen.CompareAndSwap(max, current) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if f.calls.Add(1) <= f.failUntil {
		return "", f.err
	}

	if f.response != "" {
		return f.response, nil
	}

	return validSummary, nil
}

func labeledItem(id string) *domain.Item {
	return &domain.Item{
		ID:            id,
		Title:         "item " + id,
		Content:       strings.Repeat("substantial article content. ", 10),
		LabelStatus:   domain.LabelStatusDone,
		Labels:        &domain.LabelSet{Identities: []string{domain.TagDevEssential}},
		SummaryStatus: domain.SummaryStatusPending,
	}
}

func newTestProcessor(repo Repository, client llm.Client, opts Options) *Processor {
	logger := zerolog.Nop()
	proc := NewProcessor(repo, client, opts, &logger)
	proc.backoff = []time.Duration{time.Millisecond, time.Millisecond}

	return proc
}

func TestProcessor_ProcessPending(t *testing.T) {
	repo := newFakeRepo(labeledItem("a"), labeledItem("b"))
	client := &fakeLLM{}
	proc := newTestProcessor(repo, client, Options{})

	_, err := proc.ProcessPending(context.Background())
	require.NoError(t, err)

	for _, id := range []string{"a", "b"} {
		item := repo.items[id]
		assert.Equal(t, domain.SummaryStatusSuccess, item.SummaryStatus)
		assert.Equal(t, validSummary, item.Summary)
	}
}

func TestProcessor_SkipTaggedIgnoredWithoutModelCall(t *testing.T) {
	item := labeledItem("a")
	item.Labels = &domain.LabelSet{Identities: []string{domain.TagIgnore}}

	repo := newFakeRepo(item)
	client := &fakeLLM{}
	proc := newTestProcessor(repo, client, Options{})

	_, err := proc.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.SummaryStatusIgnored, repo.items["a"].SummaryStatus)
	assert.Equal(t, int32(0), client.calls.Load(), "skip-tagged item must not reach the model")
}

func TestProcessor_ShortBodyIgnoredWithoutModelCall(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "ascii", content: "too short"},
		// 40 runes, 120 bytes; the gate counts characters, not bytes.
		{name: "multibyte", content: strings.Repeat("深度学习模型训练", 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := labeledItem("a")
			item.Content = tt.content

			repo := newFakeRepo(item)
			client := &fakeLLM{}
			proc := newTestProcessor(repo, client, Options{})

			_, err := proc.ProcessPending(context.Background())
			require.NoError(t, err)

			assert.Equal(t, domain.SummaryStatusIgnored, repo.items["a"].SummaryStatus)
			assert.Contains(t, repo.items["a"].SummaryError, "too short")
			assert.Equal(t, int32(0), client.calls.Load())
		})
	}
}

func TestProcessor_ConcurrencyBounded(t *testing.T) {
	var items []*domain.Item
	for i := 0; i < 20; i++ {
		items = append(items, labeledItem(fmt.Sprintf("item-%d", i)))
	}

	repo := newFakeRepo(items...)
	client := &fakeLLM{delay: 20 * time.Millisecond}
	proc := newTestProcessor(repo, client, Options{BatchSize: 3, MaxConcurrency: 4})

	_, err := proc.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(20), client.calls.Load())
	assert.LessOrEqual(t, client.maxSeen.Load(), int32(4), "in-flight model calls must not exceed the cap")

	for _, item := range repo.items {
		assert.Equal(t, domain.SummaryStatusSuccess, item.SummaryStatus)
	}
}

func TestProcessor_RetriesThenSucceeds(t *testing.T) {
	repo := newFakeRepo(labeledItem("a"))
	client := &fakeLLM{failUntil: 2, err: errModelDown}
	proc := newTestProcessor(repo, client, Options{})

	_, err := proc.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), client.calls.Load(), "expected 2 failures then 1 success")
	assert.Equal(t, domain.SummaryStatusSuccess, repo.items["a"].SummaryStatus)
}

func TestProcessor_ExhaustedRetriesMarkErrored(t *testing.T) {
	repo := newFakeRepo(labeledItem("a"))
	client := &fakeLLM{failUntil: 10, err: errModelDown}
	proc := newTestProcessor(repo, client, Options{})

	_, err := proc.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), client.calls.Load())
	assert.Equal(t, domain.SummaryStatusError, repo.items["a"].SummaryStatus)
	assert.Contains(t, repo.items["a"].SummaryError, "model unavailable")
}

func TestProcessor_MalformedSummaryCountsAsFailure(t *testing.T) {
	repo := newFakeRepo(labeledItem("a"))
	client := &fakeLLM{response: "ok"}
	proc := newTestProcessor(repo, client, Options{})

	_, err := proc.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), client.calls.Load(), "malformed output should be retried")
	assert.Equal(t, domain.SummaryStatusError, repo.items["a"].SummaryStatus)
	assert.Contains(t, repo.items["a"].SummaryError, "malformed summary")
}

func TestValidateSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		wantErr bool
	}{
		{name: "valid", summary: validSummary},
		{name: "too short", summary: "## ok", wantErr: true},
		{name: "no headings", summary: strings.Repeat("prose without any structure ", 5), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSummary(tt.summary)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedSummary)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
