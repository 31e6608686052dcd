package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hadashot/pkg/config"
	"hadashot/pkg/domain"
)

// openaiServer returns an httptest server answering chat completions with
// the given message content, recording how many calls arrived
func openaiServer(t *testing.T, content string, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func testSummarizer(endpoint string) *Summarizer {
	return NewSummarizer(config.LLMConfig{
		Endpoint: endpoint,
		APIKey:   "test-key",
		Model:    "gpt-4o-mini",
	})
}

func TestSummarizer_Summarize(t *testing.T) {
	calls := 0
	srv := openaiServer(t, `{"bullets": ["Crop yields rise 20%", "New irrigation tech deployed", "Exports to EU grow"], "sentiment": "positive", "importance": "high"}`, &calls)
	defer srv.Close()

	s := testSummarizer(srv.URL)
	summary := s.Summarize(context.Background(), "Israeli farmers boost crop yield", "Record harvest this year", "")

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"Crop yields rise 20%", "New irrigation tech deployed", "Exports to EU grow"}, summary.Bullets)
	assert.Equal(t, domain.SentimentPositive, summary.Sentiment)
	assert.Equal(t, domain.ImportanceHigh, summary.Importance)
}

func TestSummarizer_SurroundingProse(t *testing.T) {
	calls := 0
	srv := openaiServer(t, `Here is the analysis you asked for:
{"bullets": ["one", "two", "three"], "sentiment": "negative", "importance": "low"}
Hope this helps!`, &calls)
	defer srv.Close()

	s := testSummarizer(srv.URL)
	summary := s.Summarize(context.Background(), "headline", "", "")

	assert.Equal(t, []string{"one", "two", "three"}, summary.Bullets)
	assert.Equal(t, domain.SentimentNegative, summary.Sentiment)
	assert.Equal(t, domain.ImportanceLow, summary.Importance)
}

func TestSummarizer_InvalidEnumsNormalized(t *testing.T) {
	calls := 0
	srv := openaiServer(t, `{"bullets": ["a", "b", "c", "d", "e"], "sentiment": "ecstatic", "importance": "critical"}`, &calls)
	defer srv.Close()

	s := testSummarizer(srv.URL)
	summary := s.Summarize(context.Background(), "headline", "", "")

	assert.Len(t, summary.Bullets, 3, "bullets capped at 3")
	assert.Equal(t, domain.SentimentNeutral, summary.Sentiment)
	assert.Equal(t, domain.ImportanceMedium, summary.Importance)
}

func TestSummarizer_RetriesOnBadJSON(t *testing.T) {
	calls := 0
	srv := openaiServer(t, "sorry, I cannot produce JSON today", &calls)
	defer srv.Close()

	s := testSummarizer(srv.URL)
	summary := s.Summarize(context.Background(), "headline", "", "")

	assert.Equal(t, 3, calls, "malformed output retried 3 times")
	assert.Equal(t, domain.DefaultSummary(), summary)
}

func TestSummarizer_APIErrorReturnsDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := testSummarizer(srv.URL)
	summary := s.Summarize(context.Background(), "headline", "", "")

	assert.Equal(t, domain.DefaultSummary(), summary)
	assert.Equal(t, domain.SentimentNeutral, summary.Sentiment)
	assert.Empty(t, summary.Bullets)
}

func TestArticleText_TruncatesOnRuneBoundary(t *testing.T) {
	content := strings.Repeat("ש", 1200)
	text := articleText("כותרת", "", content)

	assert.True(t, utf8.ValidString(text), "truncation must not split a multi-byte rune")
	assert.Equal(t, 1000, strings.Count(text, "ש"), "content capped at 1000 runes")

	// short content passes through untouched
	assert.Contains(t, articleText("t", "d", "קצר"), "Content: קצר")
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"clean json", `{"bullets": ["x"], "sentiment": "neutral", "importance": "medium"}`, false},
		{"no braces", "plain text", true},
		{"broken json", `{"bullets": [`, true},
		{"empty object", `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := parseSummary(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, summary.Bullets)
		})
	}
}
