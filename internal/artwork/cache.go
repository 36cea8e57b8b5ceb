// Package artwork owns the translation of raw poster/face paths returned
// by the metadata provider into absolute image URLs, using the provider's
// remotely-published base URL and size-segment configuration.
package artwork

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cinelog/cinelog/pkg/logger"
)

var log = logger.Get("Artwork")

// DefaultRefreshTTL is how long a fetched image configuration is trusted
// before the next URL request triggers a re-fetch.
const DefaultRefreshTTL = 24 * time.Hour

type (
	// Configuration is the image-path tuple published by the remote
	// provider: one shared base URL plus a size path segment per artwork
	// flavour.
	Configuration struct {
		BaseURL      string
		ThumbSegment string
		CoverSegment string
		FaceSegment  string
	}

	// FetchFunc retrieves the latest remote configuration.
	FetchFunc func(context.Context) (*Configuration, error)

	// Cache keeps the latest known configuration, refreshing it when none
	// is cached yet or the last successful check has aged past the TTL. A
	// failed refresh leaves the previous value in place: stale-but-available
	// beats a hard failure. The snapshot pointer is swapped whole, never
	// mutated, so concurrent readers cannot observe a torn tuple.
	Cache struct {
		mu          sync.Mutex
		fetch       FetchFunc
		ttl         time.Duration
		current     *Configuration
		lastChecked time.Time
	}
)

func NewCache(fetch FetchFunc, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}

	return &Cache{fetch: fetch, ttl: ttl}
}

// ThumbnailURL resolves a raw poster path to the absolute URL of its
// list-sized rendition. Blank input yields "".
func (cache *Cache) ThumbnailURL(ctx context.Context, rawPath string) string {
	configuration := cache.configuration(ctx)
	if configuration == nil {
		return ""
	}

	return buildURL(configuration.BaseURL, configuration.ThumbSegment, rawPath)
}

// CoverURL resolves a raw poster path to the absolute URL of its
// detail-sized rendition. Blank input yields "".
func (cache *Cache) CoverURL(ctx context.Context, rawPath string) string {
	configuration := cache.configuration(ctx)
	if configuration == nil {
		return ""
	}

	return buildURL(configuration.BaseURL, configuration.CoverSegment, rawPath)
}

// FaceURL resolves a raw profile path to the absolute URL of a staff
// member's headshot. Blank input yields "".
func (cache *Cache) FaceURL(ctx context.Context, rawPath string) string {
	configuration := cache.configuration(ctx)
	if configuration == nil {
		return ""
	}

	return buildURL(configuration.BaseURL, configuration.FaceSegment, rawPath)
}

// configuration returns the current snapshot, refreshing first when the
// cache is empty or the last check is older than the TTL.
func (cache *Cache) configuration(ctx context.Context) *Configuration {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cache.current != nil && time.Since(cache.lastChecked) <= cache.ttl {
		return cache.current
	}

	fetched, err := cache.fetch(ctx)
	if err != nil {
		log.Warnf("Configuration refresh failed (%s); retaining previous value\n", err.Error())

		// Push the next attempt out rather than re-fetching on every URL
		// request while the provider is down.
		cache.lastChecked = time.Now().Add(time.Minute - cache.ttl)
		return cache.current
	}

	cache.current = fetched
	cache.lastChecked = time.Now()
	return cache.current
}

// buildURL joins base URL, size segment and raw path with exactly one
// slash between each part, defaulting scheme-less bases to https.
func buildURL(baseURL string, sizeSegment string, rawPath string) string {
	if strings.TrimSpace(rawPath) == "" {
		return ""
	}

	if strings.HasPrefix(baseURL, "//") {
		baseURL = "https:" + baseURL
	} else if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	parts := []string{
		strings.TrimSuffix(baseURL, "/"),
		strings.Trim(sizeSegment, "/"),
		strings.TrimPrefix(rawPath, "/"),
	}

	joined := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			joined = append(joined, part)
		}
	}

	return strings.Join(joined, "/")
}
