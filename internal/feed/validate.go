package feed

import (
	"context"
	"errors"
	"time"
)

// Validation is the outcome of probing a candidate feed URL.
type Validation struct {
	Valid       bool
	Title       string
	Description string
	Icon        string
	Message     string
}

// Validate probes a feed URL and reports whether it parses as a feed,
// together with its metadata and site icon. A successful probe leaves the
// parsed snapshot in the cache so a follow-up source creation reuses it
// without a second fetch. Failed probes are reported, not cached.
func (f *Fetcher) Validate(ctx context.Context, url string) *Validation {
	result, err := f.Fetch(ctx, url)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", url).Msg("feed validation failed")

		return &Validation{Valid: false, Message: validationMessage(err)}
	}

	icon := ""

	siteURL := result.Meta.Link
	if siteURL == "" {
		siteURL = url
	}

	if icon = f.DiscoverFavicon(ctx, siteURL); icon != "" {
		// Re-put so creation picks the icon up from the cache too.
		f.cache.Put(CanonicalKey(url, f.itemLimit), &Entry{
			Meta:      result.Meta,
			Items:     result.Items,
			Icon:      icon,
			FetchedAt: time.Now(),
		})
	}

	return &Validation{
		Valid:       true,
		Title:       result.Meta.Title,
		Description: result.Meta.Description,
		Icon:        icon,
	}
}

func validationMessage(err error) string {
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		return "could not fetch feed"
	}

	switch fetchErr.Kind {
	case FetchErrTimeout:
		return "feed request timed out"
	case FetchErrParse:
		return "URL does not point to a valid RSS or Atom feed"
	default:
		return "could not reach feed URL"
	}
}
