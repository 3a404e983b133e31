package feed

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// retrievalHintParam asks the upstream feed for its maximum entry count.
// Most hosted feed services honor a "limit" query parameter.
const retrievalHintParam = "limit"

// WithRetrievalHint appends the max-item retrieval hint to a feed URL.
// An existing hint is left untouched. Unparsable URLs pass through as-is;
// the fetch itself will surface the error.
func WithRetrievalHint(rawURL string, itemLimit int) string {
	if itemLimit <= 0 {
		return rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query := parsed.Query()
	if query.Get(retrievalHintParam) != "" {
		return rawURL
	}

	query.Set(retrievalHintParam, strconv.Itoa(itemLimit))
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

// CanonicalKey normalizes a feed URL into a cache key: lowercase scheme
// and host, alphabetically sorted query parameters, fragment dropped, and
// the retrieval hint injected. Validation and creation of the same source
// therefore hit the same cache entry regardless of parameter order.
func CanonicalKey(rawURL string, itemLimit int) string {
	parsed, err := url.Parse(WithRetrievalHint(rawURL, itemLimit))
	if err != nil {
		return rawURL
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	query := parsed.Query()

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	for _, k := range keys {
		values := query[k]
		sort.Strings(values)

		for _, v := range values {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}

			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}

	parsed.RawQuery = sb.String()

	return parsed.String()
}
