// Package fetcher resolves ruleset paths: remote links through a TTL cache,
// local files from disk and data: links inline.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/xiaobei/rulesconv/internal/logger"
	"github.com/xiaobei/rulesconv/internal/ruleconvert"
	"github.com/xiaobei/rulesconv/internal/storage"
	"github.com/xiaobei/rulesconv/pkg/utils"
)

const userAgent = "rulesconv/1.0"

// Cache persists fetched bodies. storage.Store satisfies it.
type Cache interface {
	GetCachedContent(url string) (*storage.CachedContent, error)
	PutCachedContent(c storage.CachedContent) error
}

// Fetcher downloads ruleset bodies. A nil cache disables caching.
type Fetcher struct {
	client *http.Client
	cache  Cache
	ttl    time.Duration
	now    func() time.Time
}

// NewFetcher creates a fetcher whose requests time out after timeout and whose
// cached bodies are served without revalidation for ttl.
func NewFetcher(cache Cache, timeout, ttl time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
	}
}

// FromSettings builds a fetcher using the timeout and TTL in settings.
func FromSettings(cache Cache, settings *storage.Settings) *Fetcher {
	return NewFetcher(cache,
		time.Duration(settings.FetchTimeout)*time.Second,
		time.Duration(settings.CacheTTL)*time.Minute)
}

// IsRemote reports whether path is an http(s) link.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Fetch returns the body behind path. A remote link that cannot be reached is
// served from a stale cache entry when one exists.
func (f *Fetcher) Fetch(ctx context.Context, path string) (string, error) {
	switch {
	case strings.HasPrefix(path, "data:"):
		return decodeDataURL(path)
	case IsRemote(path):
		body, _, err := f.fetchRemote(ctx, path, false)
		if err != nil && body != "" {
			logger.Warnf("[Fetcher] %s: %v, serving cached copy", path, err)
			return body, nil
		}
		return body, err
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	}
}

// Provider returns memoized content for path. Errors are logged and yield
// empty content.
func (f *Fetcher) Provider(ctx context.Context, path string) *ruleconvert.LazyContent {
	return ruleconvert.NewLazyContent(func() (string, error) {
		body, err := f.Fetch(ctx, path)
		if err != nil {
			logger.Warnf("[Fetcher] %v", err)
		}
		return body, err
	})
}

// Refresh re-downloads every remote path regardless of TTL and reports how many
// bodies changed.
func (f *Fetcher) Refresh(ctx context.Context, paths []string) (int, error) {
	changed := 0
	var errs []error
	for _, path := range paths {
		if !IsRemote(path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, updated, err := f.fetchRemote(ctx, path, true)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if updated {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// fetchRemote returns the body and whether it differs from the cached one. On a
// download error the stale body, if any, is returned with the error.
func (f *Fetcher) fetchRemote(ctx context.Context, link string, force bool) (string, bool, error) {
	cached := f.lookup(link)
	if !force && cached != nil && f.ttl > 0 && f.now().Sub(cached.FetchedAt) < f.ttl {
		return cached.Body, false, nil
	}

	etag := ""
	if cached != nil {
		etag = cached.ETag
	}
	body, newETag, notModified, err := f.download(ctx, link, etag)
	if err != nil {
		if cached != nil {
			return cached.Body, false, err
		}
		return "", false, err
	}

	if notModified {
		cached.FetchedAt = f.now()
		f.save(*cached)
		return cached.Body, false, nil
	}

	f.save(storage.CachedContent{URL: link, Body: body, ETag: newETag, FetchedAt: f.now()})
	return body, cached == nil || cached.Body != body, nil
}

func (f *Fetcher) download(ctx context.Context, link, etag string) (body, newETag string, notModified bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", false, fmt.Errorf("failed to fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && etag != "" {
		return "", etag, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", false, fmt.Errorf("fetch %s failed with status code: %d", link, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", false, fmt.Errorf("failed to read %s: %w", link, err)
	}
	return string(data), resp.Header.Get("ETag"), false, nil
}

func (f *Fetcher) lookup(link string) *storage.CachedContent {
	if f.cache == nil {
		return nil
	}
	c, err := f.cache.GetCachedContent(link)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warnf("[Fetcher] cache lookup %s: %v", link, err)
		}
		return nil
	}
	return c
}

func (f *Fetcher) save(c storage.CachedContent) {
	if f.cache == nil {
		return
	}
	if err := f.cache.PutCachedContent(c); err != nil {
		logger.Warnf("[Fetcher] cache store %s: %v", c.URL, err)
	}
}

// decodeDataURL decodes "data:[<mediatype>][;base64],<data>".
func decodeDataURL(link string) (string, error) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(link, "data:"), ",")
	if !ok {
		return "", fmt.Errorf("malformed data link")
	}
	if strings.HasSuffix(meta, ";base64") {
		decoded, err := utils.DecodeBase64(data)
		if err != nil {
			return "", fmt.Errorf("failed to decode data link: %w", err)
		}
		return decoded, nil
	}
	decoded, err := url.PathUnescape(data)
	if err != nil {
		return data, nil
	}
	return decoded, nil
}
