package feed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/oxifinch/dayblazer-calendar/internal/cache"
	"github.com/oxifinch/dayblazer-calendar/internal/log"
)

// Result is the outcome of fetching a single feed.
type Result struct {
	URL       string
	Body      []byte
	FromCache bool // cached body reused after a 304 or a network failure
}

// Fetcher retrieves feed bodies over HTTP with conditional requests
// (ETag / Last-Modified) backed by the shared cache store. Local paths and
// file:// URLs are read straight from disk.
type Fetcher struct {
	client *http.Client
	store  *cache.Store
}

// NewFetcher builds a Fetcher on top of the given cache store. A nil store
// disables conditional requests and cache fallback.
func NewFetcher(store *cache.Store) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		store: store,
	}
}

// Fetch retrieves one feed body, honoring cache validators. On a network
// error or a non-OK status the last cached body is served instead when one
// exists, so a flaky feed degrades to stale data rather than an empty
// calendar.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Result, error) {
	if url == "" {
		return Result{}, errors.New("feed: source URL is empty")
	}

	if path, ok := localPath(url); ok {
		body, err := os.ReadFile(path)
		if err != nil {
			return Result{}, err
		}
		return Result{URL: url, Body: body}, nil
	}

	var meta cache.Entry
	var cachedBody []byte
	if f.store != nil {
		if entry, body, err := f.store.Get(url); err == nil {
			meta = entry
			cachedBody = body
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	log.Debug("feed fetch start", "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			log.Error("feed fetch network error, using cached body", err, "url", redactURL(url))
			return Result{URL: url, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return Result{}, readErr
		}
		if f.store != nil {
			entry := cache.Entry{
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := f.store.Put(url, entry, body); err != nil {
				// Keep serving the fresh body even if caching it failed.
				log.Error("feed cache save failed", err, "url", redactURL(url))
			}
		}
		log.Info("feed fetched", "url", redactURL(url), "bytes", len(body))
		return Result{URL: url, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, errors.New("feed: 304 Not Modified without a cached body")
		}
		log.Debug("feed not modified, using cache", "url", redactURL(url))
		return Result{URL: url, Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			log.Error("feed fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(url), "status", resp.StatusCode)
			return Result{URL: url, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, errors.New(resp.Status)
	}
}

// localPath reports whether url names a local file and returns its path.
func localPath(url string) (string, bool) {
	if strings.HasPrefix(url, "file://") {
		return strings.TrimPrefix(url, "file://"), true
	}
	if !strings.Contains(url, "://") {
		return url, true
	}
	return "", false
}

// redactURL hides the path and query of a feed URL for logging; feed URLs
// routinely embed access tokens.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return u
	}

	j := i + 3
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
