package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"hadashot/pkg/domain"
)

// maxPageCandidates caps article-like elements examined on a single page
const maxPageCandidates = 20

// PageFetcher scrapes article links from a generic news page
type PageFetcher struct {
	client    *http.Client
	userAgent string
}

// NewPageFetcher creates a page fetcher with the given timeout and user agent
func NewPageFetcher(timeout time.Duration, userAgent string) *PageFetcher {
	return &PageFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch loads the page and examines at most maxPageCandidates article
// blocks, taking the first heading-or-link text as the title and the first
// resolvable hyperlink (made absolute against the page URL) as the article
// URL. Candidates lacking either are dropped.
func (p *PageFetcher) Fetch(ctx context.Context, pageURL string) ([]domain.RawArticle, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	doc, err := p.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	source := strings.TrimSpace(doc.Find("title").First().Text())
	if source == "" {
		source = pageURL
	}

	// the cap bounds elements examined, not candidates accepted, so a page
	// full of unusable blocks cannot pull in links from far down the page
	var articles []domain.RawArticle
	doc.Find("article").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		title, link := extractCandidate(sel)
		if title == "" || link == "" {
			return i+1 < maxPageCandidates
		}

		abs, err := base.Parse(link)
		if err != nil {
			return i+1 < maxPageCandidates
		}

		articles = append(articles, domain.RawArticle{
			Title:      title,
			URL:        abs.String(),
			SourceName: source,
		})
		return i+1 < maxPageCandidates
	})

	return articles, nil
}

// extractCandidate pulls the title and link from one article element. The
// title comes from the first h1/h2/h3/a descendant; if that element is an
// anchor its href wins, otherwise the first anchor with an href is used.
func extractCandidate(sel *goquery.Selection) (title, link string) {
	titleElem := sel.Find("h1, h2, h3, a").First()
	title = strings.TrimSpace(titleElem.Text())

	if goquery.NodeName(titleElem) == "a" {
		link, _ = titleElem.Attr("href")
	}
	if link == "" {
		link, _ = sel.Find("a[href]").First().Attr("href")
	}

	return title, link
}

func (p *PageFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	addBrowserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page %s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", pageURL, err)
	}

	return doc, nil
}
