package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hadashot/pkg/config"
	"hadashot/pkg/domain"
)

// NewsAPIClient fetches articles from a newsapi.org-compatible query API
type NewsAPIClient struct {
	baseURL  string
	apiKey   string
	language string
	pageSize int
	domains  []string
	client   *http.Client
}

// NewNewsAPIClient creates a query-API client from configuration
func NewNewsAPIClient(cfg config.NewsAPIConfig) *NewsAPIClient {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &NewsAPIClient{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		pageSize: pageSize,
		domains:  cfg.Domains,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// newsAPIResponse mirrors the provider's wire shape; field names differ from
// the canonical RawArticle on purpose and are mapped once here
type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		ImageURL    string `json:"image_url"` // some compatible providers use snake_case
		PublishedAt string `json:"publishedAt"`
		Published   string `json:"published_at"`
	} `json:"articles"`
}

// Everything searches all articles matching the query, restricted to the
// configured news domains
func (c *NewsAPIClient) Everything(ctx context.Context, query string) ([]domain.RawArticle, error) {
	params := url.Values{}
	params.Set("q", query)
	if len(c.domains) > 0 {
		params.Set("domains", strings.Join(c.domains, ","))
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	params.Set("sortBy", "publishedAt")
	return c.fetch(ctx, "/everything", params)
}

// TopHeadlines fetches headlines for a country, optionally narrowed to a
// provider category
func (c *NewsAPIClient) TopHeadlines(ctx context.Context, country, category string) ([]domain.RawArticle, error) {
	params := url.Values{}
	if country != "" {
		params.Set("country", country)
	}
	if category != "" {
		params.Set("category", category)
	}
	return c.fetch(ctx, "/top-headlines", params)
}

func (c *NewsAPIClient) fetch(ctx context.Context, endpoint string, params url.Values) ([]domain.RawArticle, error) {
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	addBrowserHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var parsed newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, parsed.Message)
	}
	if parsed.Status != "ok" {
		return nil, fmt.Errorf("%s returned status %q: %s", endpoint, parsed.Status, parsed.Message)
	}

	articles := make([]domain.RawArticle, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		image := a.URLToImage
		if image == "" {
			image = a.ImageURL
		}
		published := a.PublishedAt
		if published == "" {
			published = a.Published
		}
		articles = append(articles, domain.RawArticle{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    image,
			PublishedAt: published,
			SourceName:  a.Source.Name,
			ExternalID:  a.URL,
		})
	}

	return articles, nil
}
