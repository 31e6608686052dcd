package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"hadashot/pkg/domain"
)

// maxFeedEntries caps entries taken from a single feed to bound cost
const maxFeedEntries = 50

// FeedFetcher fetches RSS/Atom feeds and normalizes entries to RawArticle
type FeedFetcher struct {
	client    *http.Client
	userAgent string
	sanitizer *bluemonday.Policy
}

// NewFeedFetcher creates a feed fetcher with the given timeout and user agent
func NewFeedFetcher(timeout time.Duration, userAgent string) *FeedFetcher {
	return &FeedFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Fetch retrieves and parses a feed, returning at most maxFeedEntries
// normalized articles
func (f *FeedFetcher) Fetch(ctx context.Context, feedURL string) ([]domain.RawArticle, error) {
	body, err := f.fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := feed.Items
	if len(items) > maxFeedEntries {
		items = items[:maxFeedEntries]
	}

	articles := make([]domain.RawArticle, 0, len(items))
	for _, item := range items {
		article := domain.RawArticle{
			Title:       item.Title,
			Description: strings.TrimSpace(f.sanitizer.Sanitize(item.Description)),
			Content:     item.Content,
			URL:         item.Link,
			ImageURL:    feedImage(item),
			SourceName:  feed.Title,
		}

		// GUID when present, link otherwise
		if item.GUID != "" {
			article.ExternalID = item.GUID
		} else {
			article.ExternalID = item.Link
		}

		if item.PublishedParsed != nil {
			article.PublishedAt = item.PublishedParsed.Format(time.RFC3339)
		} else if item.UpdatedParsed != nil {
			article.PublishedAt = item.UpdatedParsed.Format(time.RFC3339)
		}

		articles = append(articles, article)
	}

	return articles, nil
}

// feedImage extracts an image URL from a feed entry checking, in order,
// media:content entries, media:thumbnail entries and image-typed enclosures;
// first match wins, else empty string
func feedImage(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, content := range media["content"] {
			if strings.HasPrefix(content.Attrs["type"], "image") && content.Attrs["url"] != "" {
				return content.Attrs["url"]
			}
		}
		for _, thumb := range media["thumbnail"] {
			if thumb.Attrs["url"] != "" {
				return thumb.Attrs["url"]
			}
		}
	}

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image") && enc.URL != "" {
			return enc.URL
		}
	}

	return ""
}

// fetch retrieves content from a URL
func (f *FeedFetcher) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}
