// Package assets resolves article images to hosted URLs.
package assets

import (
	"context"
	"crypto/md5" //nolint:gosec // content addressing only, not security
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"hadashot/pkg/config"
	"hadashot/pkg/domain"
)

// maxImageBytes bounds a single image download
const maxImageBytes = 10 << 20 // 10MB

// Resolver downloads article images into a local directory and returns the
// hosted URL. It never returns an error: any failure or empty input yields
// the fallback URL. Resolved URLs are cached for the resolver's lifetime.
type Resolver struct {
	dir         string
	baseURL     string
	fallbackURL string
	client      *http.Client

	mu    sync.Mutex
	cache map[string]string

	now func() time.Time
}

// NewResolver creates a local-hosting image resolver and ensures the
// storage directory exists
func NewResolver(cfg config.AssetsConfig) (*Resolver, error) {
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}

	return &Resolver{
		dir:         cfg.Dir,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		fallbackURL: cfg.FallbackURL,
		client:      &http.Client{Timeout: cfg.Timeout},
		cache:       make(map[string]string),
		now:         time.Now,
	}, nil
}

// Resolve downloads the image and stores it under a year/month subdirectory
// named after the article ID (or the URL hash when the ID is empty),
// returning the hosted URL. Fallback on empty input or any failure.
func (r *Resolver) Resolve(ctx context.Context, imageURL, articleID string) string {
	if imageURL == "" {
		return r.fallback("")
	}

	r.mu.Lock()
	if hosted, ok := r.cache[imageURL]; ok {
		r.mu.Unlock()
		return hosted
	}
	r.mu.Unlock()

	data, err := r.download(ctx, imageURL)
	if err != nil {
		lgr.Printf("[WARN] download image %s: %v", imageURL, err)
		return r.fallback("")
	}

	name := articleID
	if name == "" {
		sum := md5.Sum([]byte(imageURL)) //nolint:gosec // content addressing only
		name = hex.EncodeToString(sum[:])
	}

	now := r.now()
	rel := path.Join(fmt.Sprintf("%d/%02d", now.Year(), now.Month()), name+extension(imageURL))
	full := filepath.Join(r.dir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		lgr.Printf("[WARN] create image dir: %v", err)
		return r.fallback("")
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		lgr.Printf("[WARN] store image %s: %v", imageURL, err)
		return r.fallback("")
	}

	hosted := r.baseURL + "/" + rel

	r.mu.Lock()
	r.cache[imageURL] = hosted
	r.mu.Unlock()

	return hosted
}

// Fallback returns the configured fallback URL, or the category placeholder
// when none is configured
func (r *Resolver) Fallback(category domain.Sector) string {
	return r.fallback(category)
}

func (r *Resolver) fallback(category domain.Sector) string {
	if r.fallbackURL != "" {
		return r.fallbackURL
	}
	return Placeholder(category)
}

// download fetches the image bytes with a size cap
func (r *Resolver) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}

	return data, nil
}

// extension guesses the file extension from the URL, defaulting to .jpg
func extension(imageURL string) string {
	lower := strings.ToLower(imageURL)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.Contains(lower, ext) {
			return ext
		}
	}
	return ".jpg"
}
