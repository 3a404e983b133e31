package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	cache := NewCache(time.Minute, 10)

	entry := &Entry{Meta: Meta{Title: "Go Blog"}, FetchedAt: time.Now()}
	cache.Put("https://go.dev/feed", entry)

	got, ok := cache.Get("https://go.dev/feed")
	require.True(t, ok)
	assert.Equal(t, "Go Blog", got.Meta.Title)

	_, ok = cache.Get("https://go.dev/other")
	assert.False(t, ok)
}

func TestCache_ExpiredEntryReadsAsMiss(t *testing.T) {
	cache := NewCache(180*time.Second, 10)

	base := time.Now()
	cache.now = func() time.Time { return base }

	cache.Put("key", &Entry{Meta: Meta{Title: "fresh"}, FetchedAt: base})

	_, ok := cache.Get("key")
	require.True(t, ok, "entry should be fresh before TTL")

	cache.now = func() time.Time { return base.Add(180 * time.Second) }

	_, ok = cache.Get("key")
	assert.False(t, ok, "entry at TTL boundary must read as a miss")
	assert.Equal(t, 0, cache.Len(), "expired entry should be evicted lazily")
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewCache(time.Minute, 3)

	now := time.Now()
	for i := 0; i < 3; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), &Entry{FetchedAt: now})
	}

	// Touch key-0 so key-1 becomes the eviction candidate.
	_, ok := cache.Get("key-0")
	require.True(t, ok)

	cache.Put("key-3", &Entry{FetchedAt: now})

	assert.Equal(t, 3, cache.Len())

	_, ok = cache.Get("key-1")
	assert.False(t, ok, "least recently used entry should be evicted")

	for _, key := range []string{"key-0", "key-2", "key-3"} {
		_, ok = cache.Get(key)
		assert.True(t, ok, "%s should survive eviction", key)
	}
}

func TestCache_PutExistingKeyReplaces(t *testing.T) {
	cache := NewCache(time.Minute, 2)

	now := time.Now()
	cache.Put("key", &Entry{Meta: Meta{Title: "old"}, FetchedAt: now})
	cache.Put("key", &Entry{Meta: Meta{Title: "new"}, FetchedAt: now})

	assert.Equal(t, 1, cache.Len())

	got, ok := cache.Get("key")
	require.True(t, ok)
	assert.Equal(t, "new", got.Meta.Title)
}
