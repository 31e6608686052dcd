// Package store persists processed articles in SQLite.
package store

import (
	"context"
	"database/sql/driver"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"hadashot/pkg/domain"
)

//go:embed schema.sql
var schemaFS embed.FS

// Config represents database configuration
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store handles article persistence keyed by URL
type Store struct {
	db *sqlx.DB
}

// articleSQL represents an article row for SQL operations
type articleSQL struct {
	ID          string     `db:"id"`
	ExternalID  string     `db:"external_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Content     string     `db:"content"`
	URL         string     `db:"url"`
	ImageURL    string     `db:"image_url"`
	PublishedAt string     `db:"published_at"`
	Source      string     `db:"source"`
	Category    string     `db:"category"`
	Summary     bulletsSQL `db:"summary"`
	Sentiment   string     `db:"sentiment"`
	Importance  string     `db:"importance"`
	ProcessedAt *time.Time `db:"processed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// bulletsSQL is a JSON array of summary bullets for SQL operations
type bulletsSQL []string

// Value implements driver.Valuer for database storage
func (b bulletsSQL) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner for database retrieval
func (b *bulletsSQL) Scan(value interface{}) error {
	if value == nil {
		*b = bulletsSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		*b = bulletsSQL{}
		return nil
	}

	return json.Unmarshal(data, b)
}

// New opens the database, applies pragmas and initializes the schema
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		cfg.DSN = "file:hadashot.db?cache=shared&mode=rwc&_txlock=immediate"
	}

	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return nil, fmt.Errorf("execute schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts an article or, when the URL already exists, overwrites its
// mutable fields. Retries on SQLite lock errors with backoff.
func (s *Store) Upsert(ctx context.Context, article *domain.ProcessedArticle) error {
	if article.URL == "" {
		return fmt.Errorf("article has no url")
	}

	row := toSQL(article)
	query := `
		INSERT INTO articles (
			id, external_id, title, description, content, url, image_url,
			published_at, source, category, summary, sentiment, importance, processed_at
		) VALUES (
			:id, :external_id, :title, :description, :content, :url, :image_url,
			:published_at, :source, :category, :summary, :sentiment, :importance, :processed_at
		)
		ON CONFLICT (url) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			content = excluded.content,
			image_url = excluded.image_url,
			published_at = excluded.published_at,
			category = excluded.category,
			summary = excluded.summary,
			sentiment = excluded.sentiment,
			importance = excluded.importance,
			processed_at = excluded.processed_at,
			updated_at = CURRENT_TIMESTAMP
	`

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("upsert article: %w", err)}
		}
		return nil
	})
}

// GetByCategory retrieves the newest articles for a category
func (s *Store) GetByCategory(ctx context.Context, category domain.Sector, limit int) ([]domain.ProcessedArticle, error) {
	var rows []articleSQL
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM articles WHERE category = ? ORDER BY published_at DESC LIMIT ?",
		string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("get articles by category: %w", err)
	}
	return fromSQL(rows), nil
}

// GetAll retrieves the newest articles across categories
func (s *Store) GetAll(ctx context.Context, limit int) ([]domain.ProcessedArticle, error) {
	var rows []articleSQL
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM articles ORDER BY published_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("get articles: %w", err)
	}
	return fromSQL(rows), nil
}

func toSQL(a *domain.ProcessedArticle) *articleSQL {
	row := &articleSQL{
		ID:          a.ID,
		ExternalID:  a.ExternalID,
		Title:       a.Title,
		Description: a.Description,
		Content:     a.Content,
		URL:         a.URL,
		ImageURL:    a.ImageURL,
		PublishedAt: a.PublishedAt,
		Source:      a.SourceName,
		Category:    string(a.Category),
		Summary:     bulletsSQL(a.Summary.Bullets),
		Sentiment:   string(a.Summary.Sentiment),
		Importance:  string(a.Summary.Importance),
	}
	if !a.ProcessedAt.IsZero() {
		t := a.ProcessedAt
		row.ProcessedAt = &t
	}
	return row
}

func fromSQL(rows []articleSQL) []domain.ProcessedArticle {
	articles := make([]domain.ProcessedArticle, 0, len(rows))
	for _, r := range rows {
		a := domain.ProcessedArticle{
			ID:          r.ID,
			ExternalID:  r.ExternalID,
			Title:       r.Title,
			Description: r.Description,
			Content:     r.Content,
			URL:         r.URL,
			ImageURL:    r.ImageURL,
			PublishedAt: r.PublishedAt,
			SourceName:  r.Source,
			Category:    domain.Sector(r.Category),
			Summary: domain.Summary{
				Bullets:    r.Summary,
				Sentiment:  domain.Sentiment(r.Sentiment),
				Importance: domain.Importance(r.Importance),
			},
		}
		if r.ProcessedAt != nil {
			a.ProcessedAt = *r.ProcessedAt
		}
		articles = append(articles, a)
	}
	return articles
}

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
