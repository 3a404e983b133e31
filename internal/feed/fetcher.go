// Package feed fetches and parses syndicated feeds. Fetches are
// cache-assisted so a validate-then-create flow issues a single network
// request, and individual malformed entries never fail a whole fetch.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"feedpulse/internal/platform/observability"
)

const (
	defaultFeedTimeout = 30 * time.Second
	maxDescriptionLen  = 500

	headerUserAgent = "User-Agent"
	userAgent       = "feedpulse/1.0 (+https://github.com/feedpulse)"
)

// Meta is the feed-level metadata of a fetched document.
type Meta struct {
	Title       string
	Description string
	Link        string
}

// ParsedItem is one normalized feed entry.
type ParsedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	CoverImage  string
	PublishedAt time.Time
}

// Result is a complete fetched feed snapshot.
type Result struct {
	Meta  Meta
	Items []ParsedItem
}

// Fetcher fetches feeds with a bounded timeout, consulting the validation
// cache before any network I/O.
type Fetcher struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	cache      *Cache
	itemLimit  int
	logger     *zerolog.Logger
}

// NewFetcher creates a fetcher. The cache may be shared with the
// validation flow; itemLimit is the retrieval hint appended to feed URLs.
func NewFetcher(cache *Cache, timeout time.Duration, itemLimit int, logger *zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}

	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
		cache:      cache,
		itemLimit:  itemLimit,
		logger:     logger,
	}
}

// Fetch returns the parsed feed at url, from cache when a fresh snapshot
// exists. Live fetches populate the cache; failures are never cached.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	key := CanonicalKey(url, f.itemLimit)

	if entry, ok := f.cache.Get(key); ok {
		f.logger.Debug().Str("url", url).Int("items", len(entry.Items)).Msg("feed cache hit")

		return &Result{Meta: entry.Meta, Items: entry.Items}, nil
	}

	result, err := f.fetchLive(ctx, url)
	if err != nil {
		observability.FeedFetches.WithLabelValues("error").Inc()

		return nil, err
	}

	observability.FeedFetches.WithLabelValues("ok").Inc()

	f.cache.Put(key, &Entry{
		Meta:      result.Meta,
		Items:     result.Items,
		FetchedAt: time.Now(),
	})

	return result, nil
}

// CachedIcon returns the site icon a prior validation of url left in
// the cache, or empty when none is cached.
func (f *Fetcher) CachedIcon(url string) string {
	if entry, ok := f.cache.Get(CanonicalKey(url, f.itemLimit)); ok {
		return entry.Icon
	}

	return ""
}

func (f *Fetcher) fetchLive(ctx context.Context, url string) (*Result, error) {
	hinted := WithRetrievalHint(url, f.itemLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hinted, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchErrNetwork, URL: url, Err: err}
	}

	req.Header.Set(headerUserAgent, userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classifyTransportError(err), URL: url, Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Kind: FetchErrNetwork,
			URL:  url,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: FetchErrParse, URL: url, Err: err}
	}

	result := &Result{
		Meta: Meta{
			Title:       parsed.Title,
			Description: parsed.Description,
			Link:        parsed.Link,
		},
	}

	for _, entry := range parsed.Items {
		item, ok := parseEntry(entry)
		if !ok {
			f.logger.Debug().Str("url", url).Str("entry_title", entry.Title).Msg("skipping unparsable entry")

			continue
		}

		result.Items = append(result.Items, item)
	}

	return result, nil
}

func classifyTransportError(err error) FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FetchErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FetchErrTimeout
	}

	return FetchErrNetwork
}

// parseEntry normalizes one feed entry. Entries without any usable
// identifier are skipped rather than failing the fetch.
func parseEntry(entry *gofeed.Item) (ParsedItem, bool) {
	guid := entry.GUID
	if guid == "" {
		guid = entry.Link
	}

	if guid == "" {
		return ParsedItem{}, false
	}

	title := entry.Title
	if title == "" {
		title = "Untitled"
	}

	description := entry.Description
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		description = string([]rune(description)[:maxDescriptionLen])
	}

	content := entry.Content
	if content == "" {
		content = entry.Description
	}

	return ParsedItem{
		GUID:        guid,
		Title:       title,
		Link:        entry.Link,
		Description: description,
		Content:     content,
		CoverImage:  coverImage(entry),
		PublishedAt: publishedAt(entry),
	}, true
}

func publishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}

	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}

	// Some feeds carry nonstandard date formats gofeed gives up on.
	if entry.Published != "" {
		if t, err := dateparse.ParseAny(entry.Published); err == nil {
			return t
		}
	}

	return time.Time{}
}

func coverImage(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}

	for _, enclosure := range entry.Enclosures {
		if enclosure != nil && len(enclosure.Type) >= 6 && enclosure.Type[:6] == "image/" {
			return enclosure.URL
		}
	}

	if media, ok := entry.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range media[name] {
				if url := ext.Attrs["url"]; url != "" {
					return url
				}
			}
		}
	}

	return ""
}
