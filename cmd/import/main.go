// Command import bulk-loads users and their tracked product links from a
// YAML file. Each link goes through the same extraction as the API's add
// endpoint. Failures are reported and skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nombiemugi/rastreador-de-precios/config"
	"github.com/nombiemugi/rastreador-de-precios/internal/bootstrap"
	"github.com/nombiemugi/rastreador-de-precios/internal/usecase"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
)

func main() {
	file := flag.String("file", "products.yaml", "YAML file with users and product URLs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Server.Env(), Output: os.Stderr})

	f, err := os.Open(*file)
	if err != nil {
		logx.Fatal().Err(err).Str("file", *file).Msg("Failed to open import file")
	}
	defer f.Close()

	manifest, err := parseManifest(f)
	if err != nil {
		logx.Fatal().Err(err).Str("file", *file).Msg("Failed to parse import file")
	}

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg.Store)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	extractionCache, err := bootstrap.OpenCache(ctx, cfg.Cache)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open cache")
	}
	defer extractionCache.Close()

	extractor, err := bootstrap.NewExtractor(ctx, cfg.Extraction, extractionCache, cfg.Cache.TTL)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create extractor")
	}

	products := usecase.NewProductService(store, store, extractor, usecase.ProductServiceConfig{
		ExtractTimeout:  cfg.Extraction.Timeout,
		DefaultCurrency: cfg.Pricing.DefaultCurrency,
	})

	failed := importManifest(ctx, products, manifest, os.Stdout)
	if failed > 0 {
		// Deferred closes do not run after os.Exit.
		extractionCache.Close()
		store.Close()
		fmt.Fprintf(os.Stderr, "%d import(s) failed\n", failed)
		os.Exit(1)
	}
}

// importManifest saves every user, then adds each of their links. It returns
// the number of failures and writes one line per link to out.
func importManifest(ctx context.Context, products productAdder, m *manifest, out io.Writer) int {
	failed := 0
	for _, u := range m.Users {
		user := u.toDomain()
		if err := products.SaveUser(ctx, user); err != nil {
			fmt.Fprintf(out, "FAIL user %s: %v\n", u.ID, err)
			failed += len(u.Products) + 1
			continue
		}

		for _, link := range u.Products {
			result, err := products.AddProduct(ctx, user.ID, link)
			if err != nil {
				fmt.Fprintf(out, "FAIL %s %s: %v\n", user.ID, link, err)
				failed++
				continue
			}

			action := "updated"
			if result.Created {
				action = "added"
			}
			fmt.Fprintf(out, "OK   %s %s: %s %q %s %s\n",
				user.ID, link, action, result.Product.Name,
				result.Product.CurrentPrice.Decimal.StringFixed(2), result.Product.Currency)
		}
	}
	return failed
}
