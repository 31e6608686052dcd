package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hadashot/pkg/domain"
)

type fakeIngestor struct {
	articles        map[domain.Sector][]domain.RawArticle
	fetchAllCalls   int
	fetchSectorArgs []domain.Sector
}

func (f *fakeIngestor) FetchAll(_ context.Context, sectors []domain.Sector) map[domain.Sector][]domain.RawArticle {
	f.fetchAllCalls++
	result := make(map[domain.Sector][]domain.RawArticle, len(sectors))
	for _, s := range sectors {
		result[s] = f.articles[s]
	}
	return result
}

func (f *fakeIngestor) FetchSector(_ context.Context, sector domain.Sector) []domain.RawArticle {
	f.fetchSectorArgs = append(f.fetchSectorArgs, sector)
	return f.articles[sector]
}

type fakeRouter struct{}

func (f *fakeRouter) Categorize(title, _ string) domain.Sector {
	if strings.Contains(strings.ToLower(title), "farm") {
		return domain.SectorFarming
	}
	return domain.SectorGeneral
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSummarizer) Summarize(_ context.Context, _, _, _ string) domain.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return domain.Summary{
		Bullets:    []string{"b1", "b2", "b3"},
		Sentiment:  domain.SentimentPositive,
		Importance: domain.ImportanceHigh,
	}
}

type fakeExtractor struct{}

func (f *fakeExtractor) Extract(_ context.Context, url string) (string, error) {
	if strings.Contains(url, "unreachable") {
		return "", fmt.Errorf("fetch %s: connection refused", url)
	}
	return "extracted body for " + url, nil
}

type fakeResolver struct{}

func (f *fakeResolver) Resolve(_ context.Context, imageURL, _ string) string {
	return "/uploads/hosted-" + imageURL[strings.LastIndex(imageURL, "/")+1:]
}

func (f *fakeResolver) Fallback(category domain.Sector) string {
	return "/uploads/placeholder-" + string(category) + ".jpg"
}

type fakeStore struct {
	mu       sync.Mutex
	saved    []domain.ProcessedArticle
	failWith error
}

func (f *fakeStore) Upsert(_ context.Context, article *domain.ProcessedArticle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.saved = append(f.saved, *article)
	return nil
}

func rawArticle(url, title string) domain.RawArticle {
	return domain.RawArticle{Title: title, URL: url, ExternalID: url, ImageURL: url + "/img.jpg"}
}

func testBatch() map[domain.Sector][]domain.RawArticle {
	return map[domain.Sector][]domain.RawArticle{
		domain.SectorFarming: {
			rawArticle("https://x.com/farm-1", "Farm story one"),
			rawArticle("https://x.com/farm-2", "Farm story two"),
		},
		domain.SectorGeneral: {
			rawArticle("https://x.com/gen-1", "General story"),
		},
	}
}

func TestPipeline_Run(t *testing.T) {
	summarizer := &fakeSummarizer{}
	store := &fakeStore{}
	p, err := New(Params{
		Ingestor:   &fakeIngestor{articles: testBatch()},
		Router:     &fakeRouter{},
		Summarizer: summarizer,
		Extractor:  &fakeExtractor{},
		Resolver:   &fakeResolver{},
		Store:      store,
	})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []domain.Sector{domain.SectorFarming, domain.SectorGeneral}, true)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRaw)
	assert.Equal(t, 3, result.TotalProcessed, "every ingested article is processed")
	assert.Equal(t, 3, result.TotalSaved)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, summarizer.calls)
	assert.False(t, result.EndTime.Before(result.StartTime))

	require.Contains(t, result.Categories, domain.SectorFarming)
	assert.Equal(t, 2, result.Categories[domain.SectorFarming].RawCount)
	assert.Equal(t, 2, result.Categories[domain.SectorFarming].ProcessedCount)

	require.Len(t, store.saved, 3)
	for _, a := range store.saved {
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.ProcessedAt.IsZero())
		assert.Equal(t, []string{"b1", "b2", "b3"}, a.Summary.Bullets)
		assert.True(t, strings.HasPrefix(a.ImageURL, "/uploads/hosted-"), "image replaced with hosted URL")
		assert.Equal(t, "extracted body for "+a.URL, a.Content, "empty content filled by extraction")
	}
}

func TestPipeline_Run_FailingStoreDegrades(t *testing.T) {
	store := &fakeStore{failWith: fmt.Errorf("disk full")}
	p, err := New(Params{
		Ingestor: &fakeIngestor{articles: testBatch()},
		Router:   &fakeRouter{},
		Store:    store,
	})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []domain.Sector{domain.SectorFarming, domain.SectorGeneral}, true)
	require.NoError(t, err, "a failing store degrades the run, it does not abort it")

	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, 0, result.TotalSaved)
	assert.NotEmpty(t, result.Errors)
	for _, e := range result.Errors[len(result.Errors)-3:] {
		assert.Contains(t, e, "disk full")
	}
}

func TestPipeline_Run_NoPersist(t *testing.T) {
	store := &fakeStore{}
	p, err := New(Params{
		Ingestor: &fakeIngestor{articles: testBatch()},
		Router:   &fakeRouter{},
		Store:    store,
	})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []domain.Sector{domain.SectorFarming}, false)
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalSaved)
	assert.Empty(t, store.saved)
	assert.Equal(t, 2, result.TotalProcessed)
}

func TestPipeline_Run_MissingOptionalCollaborators(t *testing.T) {
	p, err := New(Params{
		Ingestor: &fakeIngestor{articles: testBatch()},
		Router:   &fakeRouter{},
	})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []domain.Sector{domain.SectorFarming}, true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalProcessed, "no summarizer/resolver/store still processes everything")
	assert.Equal(t, 0, result.TotalSaved)
	assert.NotEmpty(t, result.Errors, "unavailable components are recorded")

	// absent summarizer yields the default summary
	report := p.Report()
	byName := map[string]ComponentStatus{}
	for _, c := range report {
		byName[c.Name] = c
	}
	assert.True(t, byName["ingestor"].Available)
	assert.False(t, byName["summarizer"].Available)
	assert.False(t, byName["store"].Available)
}

func TestPipeline_Run_DefaultSummaryWithoutSummarizer(t *testing.T) {
	store := &fakeStore{}
	p, err := New(Params{
		Ingestor: &fakeIngestor{articles: testBatch()},
		Router:   &fakeRouter{},
		Store:    store,
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), []domain.Sector{domain.SectorFarming}, true)
	require.NoError(t, err)

	require.NotEmpty(t, store.saved)
	for _, a := range store.saved {
		assert.Equal(t, domain.DefaultSummary(), a.Summary)
	}
}

func TestPipeline_Run_DeterministicIdentity(t *testing.T) {
	url := "https://x.com/farm-1"
	store := &fakeStore{}
	p, err := New(Params{
		Ingestor: &fakeIngestor{articles: map[domain.Sector][]domain.RawArticle{
			domain.SectorFarming: {rawArticle(url, "Farm story")},
		}},
		Router: &fakeRouter{},
		Store:  store,
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), []domain.Sector{domain.SectorFarming}, true)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(url))
	require.Len(t, store.saved, 1)
	assert.Equal(t, hex.EncodeToString(sum[:]), store.saved[0].ID)

	// a second run of the same article produces the same identity
	_, err = p.Run(context.Background(), []domain.Sector{domain.SectorFarming}, true)
	require.NoError(t, err)
	require.Len(t, store.saved, 2)
	assert.Equal(t, store.saved[0].ID, store.saved[1].ID)
}

func TestPipeline_Run_CategorizationOverridesSourceSector(t *testing.T) {
	// a story ingested under general whose text matches farming keywords
	// ends up categorized as farming
	store := &fakeStore{}
	p, err := New(Params{
		Ingestor: &fakeIngestor{articles: map[domain.Sector][]domain.RawArticle{
			domain.SectorGeneral: {rawArticle("https://x.com/g1", "Farmers expand greenhouses")},
		}},
		Router: &fakeRouter{},
		Store:  store,
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), []domain.Sector{domain.SectorGeneral}, true)
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, domain.SectorFarming, store.saved[0].Category)
}

func TestPipeline_Run_FallbackImageForMissing(t *testing.T) {
	store := &fakeStore{}
	noImage := domain.RawArticle{Title: "Farm story", URL: "https://x.com/farm-1"}
	p, err := New(Params{
		Ingestor: &fakeIngestor{articles: map[domain.Sector][]domain.RawArticle{
			domain.SectorFarming: {noImage},
		}},
		Router:   &fakeRouter{},
		Resolver: &fakeResolver{},
		Store:    store,
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), []domain.Sector{domain.SectorFarming}, true)
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "/uploads/placeholder-farming.jpg", store.saved[0].ImageURL)
}

func TestPipeline_Run_SingleSectorUsesTargetedFetch(t *testing.T) {
	ing := &fakeIngestor{articles: testBatch()}
	p, err := New(Params{Ingestor: ing, Router: &fakeRouter{}})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []domain.Sector{domain.SectorFarming}, false)
	require.NoError(t, err)

	assert.Equal(t, []domain.Sector{domain.SectorFarming}, ing.fetchSectorArgs)
	assert.Equal(t, 0, ing.fetchAllCalls, "one requested sector goes through the targeted fetch")
	assert.Equal(t, 2, result.TotalProcessed)

	// a multi-sector run fans out instead
	_, err = p.Run(context.Background(), []domain.Sector{domain.SectorFarming, domain.SectorGeneral}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, ing.fetchAllCalls)
	assert.Len(t, ing.fetchSectorArgs, 1, "targeted fetch not used for multi-sector runs")
}

func TestPipeline_Run_NoSectors(t *testing.T) {
	p, err := New(Params{Ingestor: &fakeIngestor{}, Router: &fakeRouter{}})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sectors")
}

func TestPipeline_New_RequiredCollaborators(t *testing.T) {
	_, err := New(Params{Router: &fakeRouter{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestor")

	_, err = New(Params{Ingestor: &fakeIngestor{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "router")
}
