package feed

import (
	"container/list"
	"sync"
	"time"

	"feedpulse/internal/platform/observability"
)

// Cache defaults from the configuration surface.
const (
	DefaultCacheTTL     = 180 * time.Second
	DefaultCacheMaxSize = 999
)

// Entry is a cached feed snapshot, captured on a live fetch and consumed
// when source creation follows validation. Entries are never mutated.
type Entry struct {
	Meta      Meta
	Items     []ParsedItem
	Icon      string
	FetchedAt time.Time
}

// Cache is a TTL- and size-bounded cache of validated feed snapshots,
// keyed by the canonical feed URL. A single mutex guards readers and
// writers; contention is low (a handful of in-flight validations), so
// sharding would buy nothing.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]*list.Element
	order   *list.List // front = most recently used

	now func() time.Time
}

type cacheRecord struct {
	key   string
	entry *Entry
}

// NewCache creates a cache with the given TTL and capacity. Non-positive
// arguments fall back to the defaults.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	if maxSize <= 0 {
		maxSize = DefaultCacheMaxSize
	}

	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the cached snapshot for a normalized URL key. An entry past
// its TTL reads as a miss and is evicted lazily.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		observability.FeedCacheLookups.WithLabelValues("miss").Inc()

		return nil, false
	}

	record := elem.Value.(*cacheRecord)

	if c.now().Sub(record.entry.FetchedAt) >= c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		observability.FeedCacheLookups.WithLabelValues("expired").Inc()

		return nil, false
	}

	c.order.MoveToFront(elem)
	observability.FeedCacheLookups.WithLabelValues("hit").Inc()

	return record.entry, true
}

// Put stores a snapshot, evicting the least recently used entry when the
// cache is full.
func (c *Cache) Put(key string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheRecord).entry = entry
		c.order.MoveToFront(elem)

		return
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}

		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheRecord).key)
	}

	c.entries[key] = c.order.PushFront(&cacheRecord{key: key, entry: entry})
}

// Len returns the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
