package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nombiemugi/rastreador-de-precios/config"
	"github.com/nombiemugi/rastreador-de-precios/internal/bootstrap"
	httpDelivery "github.com/nombiemugi/rastreador-de-precios/internal/delivery/http"
	"github.com/nombiemugi/rastreador-de-precios/internal/infrastructure/scheduler"
	"github.com/nombiemugi/rastreador-de-precios/internal/usecase"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logx.Init(logx.LoggerOpts{Environment: cfg.Server.Env()})
	logx.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Str("cache", cfg.Cache.Type).
		Str("notify", cfg.Notify.Type).
		Msg("Starting pricewatch")

	if err := run(cfg); err != nil {
		logx.Fatal().Err(err).Msg("Server stopped with error")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure dependencies
	store, err := bootstrap.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	extractionCache, err := bootstrap.OpenCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer extractionCache.Close()

	extractor, err := bootstrap.NewExtractor(ctx, cfg.Extraction, extractionCache, cfg.Cache.TTL)
	if err != nil {
		return err
	}

	notifier, err := bootstrap.NewNotifier(cfg.Notify)
	if err != nil {
		return err
	}

	if cfg.Cron.Secret == "" {
		logx.Warn().Msg("PRICEWATCH_CRON_SECRET is empty: every price check trigger will be rejected")
	}
	if cfg.Server.APIToken == "" {
		logx.Warn().Msg("PRICEWATCH_SERVER_API_TOKEN is empty: the product API will reject every request")
	}

	// Initialize usecase layer
	reconciliation := usecase.NewReconciliationService(store, store, extractor, notifier, usecase.ReconciliationServiceConfig{
		MaxConcurrency:  cfg.Extraction.MaxConcurrency,
		ExtractTimeout:  cfg.Extraction.Timeout,
		DefaultCurrency: cfg.Pricing.DefaultCurrency,
	})
	products := usecase.NewProductService(store, store, extractor, usecase.ProductServiceConfig{
		ExtractTimeout:  cfg.Extraction.Timeout,
		DefaultCurrency: cfg.Pricing.DefaultCurrency,
	})

	handler := httpDelivery.NewHandler(reconciliation, products)
	router := httpDelivery.SetupRouter(cfg, handler)

	var sched *scheduler.Scheduler
	if cfg.Cron.Enabled {
		sched, err = scheduler.New(cfg.Cron.Schedule, cfg.Cron.Timezone, reconciliation)
		if err != nil {
			return err
		}
		sched.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
		logx.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logx.Warn().Err(err).Msg("Scheduled price check did not finish before shutdown")
		}
	}
	return srv.Shutdown(shutdownCtx)
}
