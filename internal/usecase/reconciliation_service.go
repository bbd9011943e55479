package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ReconciliationServiceConfig holds configuration for the reconciliation service
type ReconciliationServiceConfig struct {
	MaxConcurrency  int
	ExtractTimeout  time.Duration
	DefaultCurrency string
	Clock           func() time.Time
}

// ReconciliationService re-checks every tracked product, records price
// changes and alerts owners of price drops.
type ReconciliationService struct {
	products        domain.ProductRepository
	users           domain.UserRepository
	extractor       domain.Extractor
	notifier        domain.Notifier
	maxConcurrency  int
	extractTimeout  time.Duration
	defaultCurrency string
	clock           func() time.Time
	running         atomic.Bool
}

// NewReconciliationService creates a new reconciliation service with dependencies
func NewReconciliationService(
	products domain.ProductRepository,
	users domain.UserRepository,
	extractor domain.Extractor,
	notifier domain.Notifier,
	config ReconciliationServiceConfig,
) *ReconciliationService {
	maxConcurrency := config.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	extractTimeout := config.ExtractTimeout
	if extractTimeout <= 0 {
		extractTimeout = 45 * time.Second
	}

	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	return &ReconciliationService{
		products:        products,
		users:           users,
		extractor:       extractor,
		notifier:        notifier,
		maxConcurrency:  maxConcurrency,
		extractTimeout:  extractTimeout,
		defaultCurrency: config.DefaultCurrency,
		clock:           clock,
	}
}

// Run performs one reconciliation pass over every tracked product.
// It only fails when no product could be processed at all: the store is
// unreachable or another run is active. Per-product failures are counted in
// the summary.
func (s *ReconciliationService) Run(ctx context.Context) (domain.RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return domain.RunSummary{}, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	started := s.clock()

	products, err := s.products.ListProducts(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("price check aborted: could not list products")
		return domain.RunSummary{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	logx.Info().Int("products", len(products)).Int("concurrency", s.maxConcurrency).Msg("starting price check")

	outcomes := make([]domain.ProductOutcome, len(products))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i := range products {
		g.Go(func() error {
			outcomes[i] = s.reconcileProduct(ctx, products[i])
			return nil
		})
	}
	_ = g.Wait()

	summary := domain.Summarize(outcomes)

	logx.Info().
		Int("total", summary.Total).
		Int("updated", summary.Updated).
		Int("failed", summary.Failed).
		Int("price_changes", summary.PriceChanges).
		Int("alerts_sent", summary.AlertsSent).
		Dur("duration", s.clock().Sub(started)).
		Msg("price check completed")

	return summary, nil
}

// reconcileProduct refreshes one product. Nothing it does can abort the run.
func (s *ReconciliationService) reconcileProduct(ctx context.Context, product domain.TrackedProduct) (outcome domain.ProductOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = s.failed(product, fmt.Errorf("panic: %v", r))
		}
	}()

	extractCtx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	result := s.extractor.Extract(extractCtx, product.URL)
	cancel()

	if result == nil {
		return s.failed(product, domain.ErrExtractionFailed)
	}
	if strings.TrimSpace(result.CurrentPrice) == "" {
		return s.failed(product, fmt.Errorf("%w: missing price", domain.ErrIncompleteExtraction))
	}

	price, err := NormalizePrice(result.CurrentPrice, result.CurrencyCode, product.Currency, s.defaultCurrency)
	if err != nil {
		return s.failed(product, err)
	}

	// The history and alert decisions use the price read with the product,
	// never a value re-read after the update below.
	oldPrice := product.CurrentPrice

	next := applyObservation(product, result, price, s.clock().UTC())
	changed := priceChanged(oldPrice, price.Amount)

	// Row and history entry commit together or not at all.
	var entry *domain.PriceHistoryEntry
	if changed {
		entry = newHistoryEntry(next.ID, price, next.UpdatedAt)
	}
	if err := s.products.UpdateProduct(ctx, &next, entry); err != nil {
		return s.failed(product, fmt.Errorf("update product: %w", err))
	}

	outcome = domain.ProductOutcome{ProductID: product.ID, Status: domain.OutcomeUnchanged}
	if !changed {
		logx.Debug().Str("product_id", product.ID).Str("price", price.Amount.String()).Msg("price unchanged")
		return outcome
	}
	outcome.Status = domain.OutcomeUpdated
	outcome.PriceChanged = oldPrice.Valid

	logx.Info().
		Str("product_id", product.ID).
		Str("old_price", formatNullDecimal(oldPrice)).
		Str("new_price", price.Amount.String()).
		Str("currency", price.Currency).
		Msg("price recorded")

	if oldPrice.Valid && price.Amount.LessThan(oldPrice.Decimal) {
		outcome.AlertSent = s.sendDropAlert(ctx, next, domain.Price{Amount: oldPrice.Decimal, Currency: product.Currency}, price)
	}

	return outcome
}

// sendDropAlert reports whether the sink confirmed delivery. Owners without a
// resolvable address are skipped silently.
func (s *ReconciliationService) sendDropAlert(ctx context.Context, product domain.TrackedProduct, oldPrice, price domain.Price) bool {
	if s.notifier == nil || s.users == nil {
		return false
	}

	user, err := s.users.GetUser(ctx, product.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			logx.Warn().Err(err).Str("user_id", product.UserID).Msg("could not resolve alert recipient")
		}
		return false
	}

	to := s.notifier.Recipient(user)
	if to == "" {
		logx.Debug().Str("user_id", product.UserID).Msg("user has no notification address, skipping alert")
		return false
	}

	alert := domain.PriceDropAlert{
		Product:     product,
		OldPrice:    oldPrice.Amount,
		OldCurrency: ResolveCurrency(oldPrice.Currency, price.Currency),
		NewPrice:    price.Amount,
		Currency:    price.Currency,
	}
	if err := s.notifier.SendPriceDrop(ctx, to, alert); err != nil {
		logx.Warn().Err(err).Str("product_id", product.ID).Msg("price drop alert not delivered")
		return false
	}

	logx.Info().Str("product_id", product.ID).Str("user_id", product.UserID).Msg("price drop alert sent")
	return true
}

func (s *ReconciliationService) failed(product domain.TrackedProduct, reason error) domain.ProductOutcome {
	logx.Warn().Err(reason).Str("product_id", product.ID).Str("url", product.URL).Msg("price check failed for product")
	return domain.ProductOutcome{
		ProductID: product.ID,
		Status:    domain.OutcomeFailed,
		Reason:    reason,
	}
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "none"
	}
	return d.Decimal.String()
}
