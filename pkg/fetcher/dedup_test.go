package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hadashot/pkg/domain"
)

func TestDedupe_OrderPreserved(t *testing.T) {
	articles := []domain.RawArticle{
		{Title: "first a", URL: "https://example.com/a"},
		{Title: "first b", URL: "https://example.com/b"},
		{Title: "second a", URL: "https://example.com/a"},
		{Title: "first c", URL: "https://example.com/c"},
	}

	deduped := Dedupe(articles)
	require.Len(t, deduped, 3)
	assert.Equal(t, "first a", deduped[0].Title)
	assert.Equal(t, "first b", deduped[1].Title)
	assert.Equal(t, "first c", deduped[2].Title)
}

func TestDedupe_Idempotent(t *testing.T) {
	articles := []domain.RawArticle{
		{URL: "https://example.com/a"},
		{URL: "https://example.com/b"},
		{URL: "https://example.com/a"},
		{ExternalID: "guid-1"},
		{ExternalID: "guid-1"},
	}

	once := Dedupe(articles)
	twice := Dedupe(once)
	assert.Equal(t, once, twice)
}

func TestDedupe_ExternalIDFallback(t *testing.T) {
	articles := []domain.RawArticle{
		{Title: "no url", ExternalID: "guid-1"},
		{Title: "no url again", ExternalID: "guid-1"},
		{Title: "with url", URL: "https://example.com/a", ExternalID: "guid-2"},
	}

	deduped := Dedupe(articles)
	require.Len(t, deduped, 2)
	assert.Equal(t, "no url", deduped[0].Title)
	assert.Equal(t, "with url", deduped[1].Title)
}

func TestDedupe_DropsEmptyIdentity(t *testing.T) {
	articles := []domain.RawArticle{
		{Title: "nothing to key on"},
		{Title: "keyed", URL: "https://example.com/a"},
	}

	deduped := Dedupe(articles)
	require.Len(t, deduped, 1)
	assert.Equal(t, "keyed", deduped[0].Title)
}

func TestDedupe_Empty(t *testing.T) {
	assert.Empty(t, Dedupe(nil))
	assert.Empty(t, Dedupe([]domain.RawArticle{}))
}
