// Package bootstrap builds the infrastructure selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nombiemugi/rastreador-de-precios/config"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/nombiemugi/rastreador-de-precios/internal/infrastructure/cache"
	"github.com/nombiemugi/rastreador-de-precios/internal/infrastructure/firecrawl"
	"github.com/nombiemugi/rastreador-de-precios/internal/infrastructure/gemini"
	"github.com/nombiemugi/rastreador-de-precios/internal/infrastructure/htmlmeta"
	"github.com/nombiemugi/rastreador-de-precios/internal/infrastructure/notify"
	"github.com/nombiemugi/rastreador-de-precios/internal/infrastructure/storage/postgres"
	"github.com/nombiemugi/rastreador-de-precios/internal/infrastructure/storage/sqlite"
	"github.com/nombiemugi/rastreador-de-precios/internal/usecase"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
)

const extractionCachePrefix = "pricewatch:"

// Store is a tracked-product store that owns a connection.
type Store interface {
	domain.ProductRepository
	domain.UserRepository
	io.Closer
}

// Cache is an extraction cache that owns a connection.
type Cache interface {
	domain.CacheRepository
	io.Closer
}

// OpenStore opens the store selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logx.Info().Str("path", cfg.Path).Msg("Using SQLite store")
		return store, nil
	case "postgres":
		store, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres store: %w", err)
		}
		logx.Info().Msg("Using PostgreSQL store")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

// OpenCache opens the extraction cache selected by cfg.Type.
func OpenCache(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logx.Info().Msg("Using Redis extraction cache")
		return &redisCache{RedisCache: cache.NewRedisCache(rdb, extractionCachePrefix), closer: rdb}, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

type redisCache struct {
	*cache.RedisCache
	closer io.Closer
}

func (c *redisCache) Close() error {
	return c.closer.Close()
}

// NewExtractor builds the provider selected by cfg.Provider and wraps it in
// the extraction cache.
func NewExtractor(ctx context.Context, cfg config.ExtractionConfig, c domain.CacheRepository, ttl time.Duration) (domain.Extractor, error) {
	var inner domain.Extractor
	switch cfg.Provider {
	case "firecrawl":
		inner = firecrawl.NewClient(
			cfg.Firecrawl.APIKey,
			cfg.Firecrawl.BaseURL,
			firecrawl.WithRateLimit(cfg.RatePerMinute, cfg.Burst),
		)
	case "html":
		inner = htmlmeta.NewExtractor(cfg.RatePerMinute, cfg.Burst)
	case "gemini":
		ext, err := gemini.NewExtractor(ctx, gemini.Config{
			APIKey:        cfg.Gemini.APIKey,
			BaseURL:       cfg.Gemini.BaseURL,
			Model:         cfg.Gemini.Model,
			RatePerMinute: cfg.RatePerMinute,
			Burst:         cfg.Burst,
		})
		if err != nil {
			return nil, err
		}
		inner = ext
	default:
		return nil, fmt.Errorf("unknown extraction provider: %s", cfg.Provider)
	}

	logx.Info().Str("provider", cfg.Provider).Dur("cache_ttl", ttl).Msg("Extraction client ready")
	return usecase.NewCachedExtractor(c, inner, ttl), nil
}

// NewNotifier builds the sink selected by cfg.Type.
func NewNotifier(cfg config.NotifyConfig) (domain.Notifier, error) {
	switch cfg.Type {
	case "log":
		return notify.NewLogSink(), nil
	case "email":
		return notify.NewEmailSink(cfg.Email.APIKey, cfg.Email.From, cfg.Email.BaseURL)
	case "telegram":
		sender, err := notify.NewBotSender(cfg.Telegram.Token)
		if err != nil {
			return nil, err
		}
		return notify.NewTelegramSink(sender), nil
	default:
		return nil, fmt.Errorf("unknown notify type: %s", cfg.Type)
	}
}
