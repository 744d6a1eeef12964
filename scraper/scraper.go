// Package scraper fetches announcement index pages and extracts their links.
package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"relaybot/relay"
)

// Fetcher fetches and parses announcement pages.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a new fetcher.
func New(client *http.Client, logger *slog.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

// Links fetches pageURL and returns the href of every anchor element, in
// document order, resolved against the page URL. A body that is not parseable
// as HTML yields zero links, not an error. There is no retry: a failed fetch
// aborts this source's cycle only.
func (f *Fetcher) Links(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, &relay.FetchError{URL: pageURL, Err: err}
	}

	// Browser-like headers; some announcement hosts reject bare clients.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ja;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &relay.FetchError{URL: pageURL, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &relay.FetchError{URL: pageURL, Status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		f.logger.Warn("page body not parseable as HTML, treating as no links", "url", pageURL, "error", err)
		return nil, nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &relay.FetchError{URL: pageURL, Err: err}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})

	f.logger.Info("page scraped", "url", pageURL, "links", len(links))
	return links, nil
}
