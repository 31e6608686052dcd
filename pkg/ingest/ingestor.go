// Package ingest collects raw articles from all configured sources.
package ingest

import (
	"context"

	"github.com/go-pkgz/lgr"

	"hadashot/pkg/config"
	"hadashot/pkg/domain"
	"hadashot/pkg/fetcher"
)

// queriesPerSector bounds search queries issued for one sector in a full run
const queriesPerSector = 2

// singleSectorQueries bounds queries for a targeted single-sector fetch
const singleSectorQueries = 3

// QueryFetcher pulls articles from the query API
type QueryFetcher interface {
	Everything(ctx context.Context, query string) ([]domain.RawArticle, error)
	TopHeadlines(ctx context.Context, country, category string) ([]domain.RawArticle, error)
}

// FeedFetcher pulls articles from an RSS/Atom feed
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]domain.RawArticle, error)
}

// PageFetcher scrapes articles from a generic news page
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]domain.RawArticle, error)
}

// Ingestor composes the rate limiter, the deduplicator and the source
// fetchers into per-sector article collections. All fetch calls go through
// the shared rate limiter; any single fetch failing contributes an empty
// list, never an error to the caller.
type Ingestor struct {
	limiter *fetcher.RateLimiter
	queries QueryFetcher
	feeds   FeedFetcher
	pages   PageFetcher
	sectors []config.SectorConfig
	country string
}

// New creates an ingestor. The feeds and pages fetchers may be nil, in
// which case their sources are skipped.
func New(limiter *fetcher.RateLimiter, queries QueryFetcher, feeds FeedFetcher, pages PageFetcher, sectors []config.SectorConfig, country string) *Ingestor {
	return &Ingestor{
		limiter: limiter,
		queries: queries,
		feeds:   feeds,
		pages:   pages,
		sectors: sectors,
		country: country,
	}
}

// FetchAll collects articles for the requested sectors. Each sector gets
// its first queries, feeds and pages; one general top-headlines fetch is
// accumulated under the general sector. Every sector list is deduplicated
// independently; the same story may legitimately appear under two sectors.
func (ing *Ingestor) FetchAll(ctx context.Context, sectors []domain.Sector) map[domain.Sector][]domain.RawArticle {
	requested := make(map[domain.Sector]bool, len(sectors))
	result := make(map[domain.Sector][]domain.RawArticle, len(sectors))
	for _, s := range sectors {
		requested[s] = true
		result[s] = []domain.RawArticle{}
	}

	for _, sc := range ing.sectors {
		sector := domain.Sector(sc.Name)
		if !requested[sector] {
			continue
		}

		queries := sc.Queries
		if len(queries) > queriesPerSector {
			queries = queries[:queriesPerSector]
		}
		for _, q := range queries {
			result[sector] = append(result[sector], ing.search(ctx, sector, q)...)
		}

		if ing.feeds != nil {
			for _, feedURL := range sc.Feeds {
				result[sector] = append(result[sector], ing.feed(ctx, sector, feedURL)...)
			}
		}

		if ing.pages != nil {
			for _, pageURL := range sc.Pages {
				result[sector] = append(result[sector], ing.page(ctx, sector, pageURL)...)
			}
		}
	}

	// one general country-wide fetch, always tagged with the default sector
	if requested[domain.SectorGeneral] {
		result[domain.SectorGeneral] = append(result[domain.SectorGeneral], ing.headlines(ctx)...)
	}

	for sector, articles := range result {
		deduped := fetcher.Dedupe(articles)
		if dropped := len(articles) - len(deduped); dropped > 0 {
			lgr.Printf("[DEBUG] dropped %d duplicates in sector %s", dropped, sector)
		}
		result[sector] = deduped
	}

	return result
}

// FetchSector collects articles for a single sector, using up to
// singleSectorQueries of its configured queries
func (ing *Ingestor) FetchSector(ctx context.Context, sector domain.Sector) []domain.RawArticle {
	var articles []domain.RawArticle

	sc, ok := ing.sectorConfig(sector)
	queries := sc.Queries
	if !ok || len(queries) == 0 {
		queries = []string{"Israel " + string(sector)}
	}
	if len(queries) > singleSectorQueries {
		queries = queries[:singleSectorQueries]
	}

	for _, q := range queries {
		articles = append(articles, ing.search(ctx, sector, q)...)
	}

	if ing.feeds != nil {
		for _, feedURL := range sc.Feeds {
			articles = append(articles, ing.feed(ctx, sector, feedURL)...)
		}
	}

	return fetcher.Dedupe(articles)
}

func (ing *Ingestor) sectorConfig(sector domain.Sector) (config.SectorConfig, bool) {
	for _, sc := range ing.sectors {
		if sc.Name == string(sector) {
			return sc, true
		}
	}
	return config.SectorConfig{}, false
}

// search runs one rate-limited query-API search tagged with the sector
func (ing *Ingestor) search(ctx context.Context, sector domain.Sector, query string) []domain.RawArticle {
	ing.limiter.Acquire(ctx)
	if ctx.Err() != nil {
		return nil
	}

	articles, err := ing.queries.Everything(ctx, query)
	if err != nil {
		lgr.Printf("[WARN] search %q for sector %s failed: %v", query, sector, err)
		return nil
	}
	lgr.Printf("[INFO] search %q: %d articles for sector %s", query, len(articles), sector)

	return tag(articles, sector)
}

// headlines runs the general country-wide top-headlines fetch
func (ing *Ingestor) headlines(ctx context.Context) []domain.RawArticle {
	ing.limiter.Acquire(ctx)
	if ctx.Err() != nil {
		return nil
	}

	articles, err := ing.queries.TopHeadlines(ctx, ing.country, "")
	if err != nil {
		lgr.Printf("[WARN] top headlines for %s failed: %v", ing.country, err)
		return nil
	}
	lgr.Printf("[INFO] top headlines: %d articles", len(articles))

	return tag(articles, domain.SectorGeneral)
}

// feed runs one rate-limited feed fetch tagged with the sector
func (ing *Ingestor) feed(ctx context.Context, sector domain.Sector, feedURL string) []domain.RawArticle {
	ing.limiter.Acquire(ctx)
	if ctx.Err() != nil {
		return nil
	}

	articles, err := ing.feeds.Fetch(ctx, feedURL)
	if err != nil {
		lgr.Printf("[WARN] feed %s for sector %s failed: %v", feedURL, sector, err)
		return nil
	}
	lgr.Printf("[INFO] feed %s: %d articles for sector %s", feedURL, len(articles), sector)

	return tag(articles, sector)
}

// page runs one rate-limited page scrape tagged with the sector
func (ing *Ingestor) page(ctx context.Context, sector domain.Sector, pageURL string) []domain.RawArticle {
	ing.limiter.Acquire(ctx)
	if ctx.Err() != nil {
		return nil
	}

	articles, err := ing.pages.Fetch(ctx, pageURL)
	if err != nil {
		lgr.Printf("[WARN] page %s for sector %s failed: %v", pageURL, sector, err)
		return nil
	}
	lgr.Printf("[INFO] page %s: %d articles for sector %s", pageURL, len(articles), sector)

	return tag(articles, sector)
}

func tag(articles []domain.RawArticle, sector domain.Sector) []domain.RawArticle {
	for i := range articles {
		articles[i].Sector = sector
	}
	return articles
}
