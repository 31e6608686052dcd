package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Sector is a classification label attached to articles, not an entity
type Sector string

// known sectors; configuration may declare others, General is the fallback
const (
	SectorFarming     Sector = "farming"
	SectorTech        Sector = "tech"
	SectorPolitics    Sector = "politics"
	SectorHospitality Sector = "hospitality"
	SectorGeneral     Sector = "general"
)

// RawArticle is the normalized shape every source fetcher produces.
// Immutable once produced; URL is the natural identity key, ExternalID
// a secondary hint (feed GUID) used when URL is absent.
type RawArticle struct {
	Title       string
	Description string
	Content     string
	URL         string
	ImageURL    string
	PublishedAt string
	SourceName  string
	ExternalID  string
	Sector      Sector
}

// Key returns the identity key used for deduplication and upserts,
// empty when the article has no usable identity
func (a RawArticle) Key() string {
	if a.URL != "" {
		return a.URL
	}
	return a.ExternalID
}

// Sentiment of an article summary
type Sentiment string

// sentiment values returned by the summarizer
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Importance of an article summary
type Importance string

// importance values returned by the summarizer
const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Summary holds summarizer output for a single article. The zero-ish
// default (no bullets, neutral, medium) stands in when summarization fails.
type Summary struct {
	Bullets    []string
	Sentiment  Sentiment
	Importance Importance
}

// DefaultSummary returns the degraded-mode summary used when the
// summarizer is unavailable or fails for an article
func DefaultSummary() Summary {
	return Summary{Bullets: []string{}, Sentiment: SentimentNeutral, Importance: ImportanceMedium}
}

// ProcessedArticle is a RawArticle after enrichment and asset resolution
type ProcessedArticle struct {
	ID          string
	Title       string
	Description string
	Content     string
	URL         string
	ImageURL    string
	PublishedAt string
	SourceName  string
	ExternalID  string
	Category    Sector
	Summary     Summary
	ProcessedAt time.Time
}

// ArticleID derives the deterministic identity for a URL, so re-processing
// the same URL always yields the same ID
func ArticleID(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}
