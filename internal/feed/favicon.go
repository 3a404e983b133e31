package feed

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// DiscoverFavicon resolves a site icon for a feed: it scans the site's
// HTML head for icon links and falls back to /favicon.ico. Returns an
// empty string when nothing usable is found; icon discovery is best
// effort and never fails validation.
func (f *Fetcher) DiscoverFavicon(ctx context.Context, siteURL string) string {
	base, err := url.Parse(siteURL)
	if err != nil || base.Host == "" {
		return ""
	}

	if icon := f.iconFromHTML(ctx, base); icon != "" {
		return icon
	}

	fallback := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/favicon.ico"}
	if f.iconExists(ctx, fallback.String()) {
		return fallback.String()
	}

	return ""
}

func (f *Fetcher) iconFromHTML(ctx context.Context, base *url.URL) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return ""
	}

	req.Header.Set(headerUserAgent, userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return ""
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return ""
	}

	href := findIconLink(doc)
	if href == "" {
		return ""
	}

	resolved, err := base.Parse(href)
	if err != nil {
		return ""
	}

	return resolved.String()
}

func findIconLink(node *html.Node) string {
	if node.Type == html.ElementNode && node.Data == "link" {
		var rel, href string

		for _, attr := range node.Attr {
			switch attr.Key {
			case "rel":
				rel = strings.ToLower(attr.Val)
			case "href":
				href = attr.Val
			}
		}

		if href != "" && strings.Contains(rel, "icon") {
			return href
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findIconLink(child); found != "" {
			return found
		}
	}

	return ""
}

func (f *Fetcher) iconExists(ctx context.Context, iconURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, iconURL, nil)
	if err != nil {
		return false
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return false
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}
