package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
)

// CachedExtractor fronts an Extractor with a short-lived cache keyed by URL so
// several users tracking the same link cost one outbound call per run.
// Only usable results are cached.
type CachedExtractor struct {
	cache domain.CacheRepository
	inner domain.Extractor
	ttl   time.Duration
}

// NewCachedExtractor wraps inner. A ttl <= 0 disables caching.
func NewCachedExtractor(cache domain.CacheRepository, inner domain.Extractor, ttl time.Duration) *CachedExtractor {
	return &CachedExtractor{cache: cache, inner: inner, ttl: ttl}
}

// Extract implements domain.Extractor.
func (c *CachedExtractor) Extract(ctx context.Context, url string) *domain.ExtractionResult {
	if c.ttl <= 0 || c.cache == nil {
		return c.inner.Extract(ctx, url)
	}

	key := extractionCacheKey(url)
	if cached, err := c.getFromCache(ctx, key); err == nil {
		logx.Debug().Str("url", url).Msg("extraction cache hit")
		return cached
	}

	result := c.inner.Extract(ctx, url)
	if result == nil || strings.TrimSpace(result.CurrentPrice) == "" {
		return result
	}

	if err := c.setInCache(ctx, key, result); err != nil {
		logx.Warn().Err(err).Str("url", url).Msg("failed to cache extraction result")
	}
	return result
}

// extractionCacheKey format: "extraction:{url}"
func extractionCacheKey(url string) string {
	return "extraction:" + strings.TrimSpace(url)
}

func (c *CachedExtractor) getFromCache(ctx context.Context, key string) (*domain.ExtractionResult, error) {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		if delErr := c.cache.Delete(ctx, key); delErr != nil {
			logx.Warn().Err(delErr).Str("key", key).Msg("failed to evict corrupt cache entry")
		}
		return nil, domain.ErrCacheMiss
	}
	return &result, nil
}

func (c *CachedExtractor) setInCache(ctx context.Context, key string, result *domain.ExtractionResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, key, raw, c.ttl)
}
