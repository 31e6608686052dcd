// Package pipeline sequences ingestion, enrichment, asset resolution and
// persistence over one batch of articles.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"hadashot/pkg/domain"
)

// Ingestor collects raw articles per sector
type Ingestor interface {
	FetchAll(ctx context.Context, sectors []domain.Sector) map[domain.Sector][]domain.RawArticle
	FetchSector(ctx context.Context, sector domain.Sector) []domain.RawArticle
}

// Router assigns a sector to an article
type Router interface {
	Categorize(title, description string) domain.Sector
}

// Summarizer produces an article summary; implementations never fail and
// return the default summary instead
type Summarizer interface {
	Summarize(ctx context.Context, title, description, content string) domain.Summary
}

// Extractor fills in article content from the source page
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Resolver turns an image URL into a hosted URL; implementations never fail
// and return a fallback instead
type Resolver interface {
	Resolve(ctx context.Context, imageURL, articleID string) string
	Fallback(category domain.Sector) string
}

// Store persists processed articles keyed by URL
type Store interface {
	Upsert(ctx context.Context, article *domain.ProcessedArticle) error
}

// ComponentStatus reports whether a collaborator initialized at startup
type ComponentStatus struct {
	Name      string
	Available bool
	Reason    string
}

// Params holds pipeline collaborators. Ingestor and Router are required;
// the others are optional and their stages degrade when absent.
type Params struct {
	Ingestor   Ingestor
	Router     Router
	Summarizer Summarizer
	Extractor  Extractor
	Resolver   Resolver
	Store      Store

	ResolveWorkers int
}

// Pipeline runs the ordered stage sequence over one batch per invocation
type Pipeline struct {
	ingestor   Ingestor
	router     Router
	summarizer Summarizer
	extractor  Extractor
	resolver   Resolver
	store      Store

	resolveWorkers int
	report         []ComponentStatus
}

// New creates a pipeline and builds the startup report from which
// collaborators are present
func New(p Params) (*Pipeline, error) {
	if p.Ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if p.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if p.ResolveWorkers == 0 {
		p.ResolveWorkers = 5
	}

	pl := &Pipeline{
		ingestor:       p.Ingestor,
		router:         p.Router,
		summarizer:     p.Summarizer,
		extractor:      p.Extractor,
		resolver:       p.Resolver,
		store:          p.Store,
		resolveWorkers: p.ResolveWorkers,
	}

	pl.report = []ComponentStatus{
		status("ingestor", p.Ingestor != nil),
		status("summarizer", p.Summarizer != nil),
		status("extractor", p.Extractor != nil),
		status("asset resolver", p.Resolver != nil),
		status("store", p.Store != nil),
	}
	for _, c := range pl.report {
		if c.Available {
			lgr.Printf("[INFO] component %s initialized", c.Name)
		} else {
			lgr.Printf("[WARN] component %s unavailable: %s", c.Name, c.Reason)
		}
	}

	return pl, nil
}

func status(name string, available bool) ComponentStatus {
	s := ComponentStatus{Name: name, Available: available}
	if !available {
		s.Reason = "not configured"
	}
	return s
}

// Report returns the startup component report
func (p *Pipeline) Report() []ComponentStatus {
	return p.report
}

// Run executes INGEST, ENRICH, RESOLVE_ASSETS and PERSIST strictly in
// order over the requested sectors. Stages backed by absent collaborators
// are skipped with the article list passing through; per-article failures
// are recovered and recorded. An error is returned only for contract
// violations, never for degraded collaborators.
func (p *Pipeline) Run(ctx context.Context, sectors []domain.Sector, persist bool) (*RunResult, error) {
	if len(sectors) == 0 {
		return nil, fmt.Errorf("no sectors requested")
	}

	result := newRunResult()
	for _, c := range p.report {
		if !c.Available {
			result.addError(fmt.Sprintf("component %s unavailable: %s", c.Name, c.Reason))
		}
	}

	lgr.Printf("[INFO] pipeline started for sectors %v", sectors)

	// stage 1: ingest; a single requested sector gets the deeper
	// targeted fetch, a full run fans out across all of them
	var raw map[domain.Sector][]domain.RawArticle
	if len(sectors) == 1 {
		raw = map[domain.Sector][]domain.RawArticle{sectors[0]: p.ingestor.FetchSector(ctx, sectors[0])}
	} else {
		raw = p.ingestor.FetchAll(ctx, sectors)
	}
	for sector, articles := range raw {
		result.Categories[sector] = &CategoryStats{RawCount: len(articles)}
		result.TotalRaw += len(articles)
	}
	lgr.Printf("[INFO] ingested %d articles across %d sectors", result.TotalRaw, len(raw))

	// stage 2: enrich (categorize + summarize, per article)
	var processed []domain.ProcessedArticle
	for sector, articles := range raw {
		for _, a := range articles {
			processed = append(processed, p.enrich(ctx, a))
		}
		result.Categories[sector].ProcessedCount = len(articles)
	}
	result.TotalProcessed = len(processed)
	lgr.Printf("[INFO] processed %d articles", result.TotalProcessed)

	// stage 3: resolve assets
	if p.resolver != nil {
		p.resolveAssets(ctx, processed)
	} else {
		lgr.Printf("[WARN] asset resolver unavailable, keeping original image URLs")
	}

	// stage 4: persist
	if persist {
		result.TotalSaved = p.persist(ctx, processed, result)
	} else {
		lgr.Printf("[INFO] persistence disabled, skipping save")
	}

	result.finish()
	lgr.Printf("[INFO] pipeline complete: raw=%d processed=%d saved=%d errors=%d in %v",
		result.TotalRaw, result.TotalProcessed, result.TotalSaved, len(result.Errors), result.Duration.Round(time.Millisecond))

	return result, nil
}

// enrich builds one processed article: deterministic identity, category
// routing, optional content extraction and summarization
func (p *Pipeline) enrich(ctx context.Context, a domain.RawArticle) domain.ProcessedArticle {
	content := a.Content
	if p.extractor != nil && content == "" && a.URL != "" {
		extracted, err := p.extractor.Extract(ctx, a.URL)
		if err != nil {
			lgr.Printf("[DEBUG] content extraction for %s failed: %v", a.URL, err)
		} else {
			content = extracted
		}
	}

	summary := domain.DefaultSummary()
	if p.summarizer != nil {
		summary = p.summarizer.Summarize(ctx, a.Title, a.Description, content)
	}

	return domain.ProcessedArticle{
		ID:          domain.ArticleID(a.Key()),
		Title:       a.Title,
		Description: a.Description,
		Content:     content,
		URL:         a.URL,
		ImageURL:    a.ImageURL,
		PublishedAt: a.PublishedAt,
		SourceName:  a.SourceName,
		ExternalID:  a.ExternalID,
		Category:    p.router.Categorize(a.Title, a.Description),
		Summary:     summary,
		ProcessedAt: time.Now(),
	}
}

// resolveAssets replaces every article's image URL with a hosted one,
// bounded by the worker limit. Each slot is owned by exactly one goroutine.
func (p *Pipeline) resolveAssets(ctx context.Context, articles []domain.ProcessedArticle) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.resolveWorkers)

	for i := range articles {
		g.Go(func() error {
			a := &articles[i]
			if a.ImageURL == "" {
				a.ImageURL = p.resolver.Fallback(a.Category)
				return nil
			}
			a.ImageURL = p.resolver.Resolve(ctx, a.ImageURL, a.ID)
			return nil
		})
	}

	_ = g.Wait() // resolver never returns errors
	lgr.Printf("[INFO] resolved images for %d articles", len(articles))
}

// persist upserts every article, counting successes and recording failures
func (p *Pipeline) persist(ctx context.Context, articles []domain.ProcessedArticle, result *RunResult) int {
	if p.store == nil {
		lgr.Printf("[WARN] store unavailable, skipping save")
		return 0
	}

	saved := 0
	for i := range articles {
		if err := p.store.Upsert(ctx, &articles[i]); err != nil {
			lgr.Printf("[ERROR] save article %s: %v", articles[i].URL, err)
			result.addError(fmt.Sprintf("save article %s: %v", articles[i].URL, err))
			continue
		}
		saved++
	}

	lgr.Printf("[INFO] saved %d of %d articles", saved, len(articles))
	return saved
}

// CategoryStats counts one sector's articles through the stages
type CategoryStats struct {
	RawCount       int
	ProcessedCount int
}

// RunResult is the ephemeral record of one pipeline run
type RunResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	Categories     map[domain.Sector]*CategoryStats
	TotalRaw       int
	TotalProcessed int
	TotalSaved     int
	Errors         []string

	mu sync.Mutex
}

func newRunResult() *RunResult {
	return &RunResult{
		StartTime:  time.Now(),
		Categories: make(map[domain.Sector]*CategoryStats),
	}
}

func (r *RunResult) addError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, msg)
}

func (r *RunResult) finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}
