package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	NewsAPI NewsAPIConfig `yaml:"newsapi" json:"newsapi" jsonschema:"description=NewsAPI source configuration"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit" jsonschema:"description=Outbound request rate limiting"`

	Sectors []SectorConfig `yaml:"sectors" json:"sectors" jsonschema:"description=Sector definitions in priority order"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for article summarization"`

	Assets AssetsConfig `yaml:"assets" json:"assets" jsonschema:"description=Image hosting configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Full-text content extraction"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:hadashot.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`
}

// NewsAPIConfig holds query-API source settings
type NewsAPIConfig struct {
	BaseURL  string        `yaml:"base_url" json:"base_url" jsonschema:"default=https://newsapi.org/v2,description=NewsAPI endpoint base URL"`
	APIKey   string        `yaml:"api_key" json:"api_key" jsonschema:"required,description=NewsAPI key (can use environment variable)"`
	Country  string        `yaml:"country" json:"country" jsonschema:"default=il,description=Country code for top headlines"`
	Language string        `yaml:"language" json:"language" jsonschema:"default=en,description=Language filter for search queries"`
	PageSize int           `yaml:"page_size" json:"page_size" jsonschema:"default=100,maximum=100,description=Results per request"`
	Domains  []string      `yaml:"domains" json:"domains" jsonschema:"description=News domains to search within"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
}

// RateLimitConfig bounds outbound fetch calls across all sources
type RateLimitConfig struct {
	MinDelay time.Duration `yaml:"min_delay" json:"min_delay" jsonschema:"default=1s,description=Minimum spacing between outbound requests"`
	DailyMax int           `yaml:"daily_max" json:"daily_max" jsonschema:"default=100,description=Maximum outbound requests per rolling 24h window"`
}

// SectorConfig defines one sector; declaration order is routing priority
type SectorConfig struct {
	Name     string   `yaml:"name" json:"name" jsonschema:"required,description=Sector name"`
	Keywords []string `yaml:"keywords" json:"keywords" jsonschema:"description=Keywords routing an article to this sector"`
	Queries  []string `yaml:"queries" json:"queries" jsonschema:"description=Search queries issued for this sector"`
	Feeds    []string `yaml:"feeds" json:"feeds" jsonschema:"description=RSS/Atom feed URLs for this sector"`
	Pages    []string `yaml:"pages" json:"pages" jsonschema:"description=News page URLs scraped for this sector"`
}

// LLMConfig holds LLM configuration for article summarization
type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"default=gpt-4o-mini,description=Model name"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.7,description=Temperature for response generation"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=500,description=Maximum tokens in response"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
}

// Enabled reports whether the summarizer collaborator is configured
func (c LLMConfig) Enabled() bool { return c.APIKey != "" }

// AssetsConfig holds image hosting settings
type AssetsConfig struct {
	Dir         string        `yaml:"dir" json:"dir" jsonschema:"default=./uploads,description=Local directory for hosted images"`
	BaseURL     string        `yaml:"base_url" json:"base_url" jsonschema:"default=/uploads,description=Public base URL of the hosted images"`
	FallbackURL string        `yaml:"fallback_url" json:"fallback_url" jsonschema:"description=Image URL substituted when resolution fails"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Image download timeout"`
	MaxWorkers  int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,description=Maximum concurrent image resolutions"`
}

// ExtractionConfig holds content extraction settings
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Fill empty article content from the source page"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Hadashot/1.0,description=User agent for HTTP requests"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration used when no config file is
// supplied, with the stock Israeli-news sector set
func Default() *Config {
	cfg := &Config{
		Sectors: []SectorConfig{
			{
				Name:     "farming",
				Keywords: []string{"agriculture", "farming", "farmers", "crops", "livestock", "agtech", "agricultural"},
				Queries:  []string{"Israel agriculture farming", "Israeli farmers"},
				Feeds:    []string{"https://www.israel21c.org/feed/"},
			},
			{
				Name:     "tech",
				Keywords: []string{"technology", "tech", "startup", "innovation", "ai", "cybersecurity", "software", "digital"},
				Queries:  []string{"Israel technology", "Israeli startup", "Tel Aviv tech"},
				Feeds:    []string{"https://www.calcalist.co.il/General/RssFeed.xml"},
			},
			{
				Name:     "politics",
				Keywords: []string{"politics", "government", "knesset", "election", "policy", "minister", "parliament"},
				Queries:  []string{"Israel politics", "Israeli government", "Knesset news"},
			},
			{
				Name:     "hospitality",
				Keywords: []string{"hotel", "tourism", "restaurant", "hospitality", "travel", "accommodation"},
				Queries:  []string{"Israel tourism", "Israeli hotels", "Israel restaurants"},
			},
			{
				Name:  "general",
				Feeds: []string{"https://www.timesofisrael.com/feed/", "https://www.jpost.com/Rss/RssFeeds.aspx"},
			},
		},
	}
	cfg.NewsAPI.APIKey = os.Getenv("NEWSAPI_KEY")
	cfg.NewsAPI.Domains = []string{
		"ynet.co.il", "haaretz.co.il", "timesofisrael.com",
		"calcalist.co.il", "jpost.com", "israelhayom.com",
	}
	cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Assets.FallbackURL = os.Getenv("FALLBACK_IMAGE_URL")
	cfg.setDefaults()
	return cfg
}

// setDefaults fills zero values with their documented defaults
func (c *Config) setDefaults() {
	if c.NewsAPI.BaseURL == "" {
		c.NewsAPI.BaseURL = "https://newsapi.org/v2"
	}
	if c.NewsAPI.Country == "" {
		c.NewsAPI.Country = "il"
	}
	if c.NewsAPI.Language == "" {
		c.NewsAPI.Language = "en"
	}
	if c.NewsAPI.PageSize == 0 {
		c.NewsAPI.PageSize = 100
	}
	if c.NewsAPI.Timeout == 0 {
		c.NewsAPI.Timeout = 30 * time.Second
	}

	if c.RateLimit.MinDelay == 0 {
		c.RateLimit.MinDelay = time.Second
	}
	if c.RateLimit.DailyMax == 0 {
		c.RateLimit.DailyMax = 100
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}

	if c.Assets.Dir == "" {
		c.Assets.Dir = "./uploads"
	}
	if c.Assets.BaseURL == "" {
		c.Assets.BaseURL = "/uploads"
	}
	if c.Assets.Timeout == 0 {
		c.Assets.Timeout = 30 * time.Second
	}
	if c.Assets.MaxWorkers == 0 {
		c.Assets.MaxWorkers = 5
	}

	if c.Extraction.Timeout == 0 {
		c.Extraction.Timeout = 30 * time.Second
	}
	if c.Extraction.UserAgent == "" {
		c.Extraction.UserAgent = "Hadashot/1.0"
	}
	if c.Extraction.MinTextLength == 0 {
		c.Extraction.MinTextLength = 100
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:hadashot.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if len(cfg.Sectors) == 0 {
		return fmt.Errorf("at least one sector is required")
	}
	seen := map[string]bool{}
	for _, s := range cfg.Sectors {
		if s.Name == "" {
			return fmt.Errorf("sector name is required")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate sector %q", s.Name)
		}
		seen[s.Name] = true
	}

	if cfg.RateLimit.MinDelay < 0 {
		return fmt.Errorf("rate_limit.min_delay must be non-negative")
	}
	if cfg.RateLimit.DailyMax < 1 {
		return fmt.Errorf("rate_limit.daily_max must be at least 1")
	}

	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}

	if cfg.Extraction.Enabled && cfg.Extraction.Timeout < time.Second {
		return fmt.Errorf("extraction timeout must be at least 1 second")
	}

	return nil
}

// SectorNames returns configured sector names in declaration order
func (c *Config) SectorNames() []string {
	names := make([]string, 0, len(c.Sectors))
	for _, s := range c.Sectors {
		names = append(names, s.Name)
	}
	return names
}

// Sector returns the configuration of a named sector
func (c *Config) Sector(name string) (SectorConfig, bool) {
	for _, s := range c.Sectors {
		if s.Name == name {
			return s, true
		}
	}
	return SectorConfig{}, false
}
