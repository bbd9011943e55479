package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
)

// ProductServiceConfig holds configuration for the product service
type ProductServiceConfig struct {
	ExtractTimeout  time.Duration
	DefaultCurrency string
	Clock           func() time.Time
}

// ProductService handles the user-facing side of tracking: adding a link,
// listing, deleting and reading history.
type ProductService struct {
	products        domain.ProductRepository
	users           domain.UserRepository
	extractor       domain.Extractor
	extractTimeout  time.Duration
	defaultCurrency string
	clock           func() time.Time
}

// AddResult is returned by AddProduct.
type AddResult struct {
	Product *domain.TrackedProduct
	Created bool
}

// NewProductService creates a new product service with dependencies
func NewProductService(
	products domain.ProductRepository,
	users domain.UserRepository,
	extractor domain.Extractor,
	config ProductServiceConfig,
) *ProductService {
	extractTimeout := config.ExtractTimeout
	if extractTimeout <= 0 {
		extractTimeout = 45 * time.Second
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	return &ProductService{
		products:        products,
		users:           users,
		extractor:       extractor,
		extractTimeout:  extractTimeout,
		defaultCurrency: config.DefaultCurrency,
		clock:           clock,
	}
}

// AddProduct starts tracking rawURL for userID, or refreshes the existing row
// for that pair. It is a one-product reconciliation: write the row, then
// append history when the product is new or its price moved. No alert is sent.
func (s *ProductService) AddProduct(ctx context.Context, userID, rawURL string) (*AddResult, error) {
	userID = strings.TrimSpace(userID)
	productURL, err := validateProductURL(rawURL)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	result := s.extractor.Extract(extractCtx, productURL)
	cancel()

	if result == nil {
		return nil, domain.ErrExtractionFailed
	}
	if strings.TrimSpace(result.ProductName) == "" || strings.TrimSpace(result.CurrentPrice) == "" {
		return nil, domain.ErrIncompleteExtraction
	}

	existing, err := s.products.FindProduct(ctx, userID, productURL)
	if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
		return nil, fmt.Errorf("lookup product: %w", err)
	}

	if existing == nil {
		created, err := s.insert(ctx, userID, productURL, result)
		if !errors.Is(err, domain.ErrDuplicateProduct) {
			return created, err
		}
		// Someone else inserted the same (user, url) between lookup and insert.
		existing, err = s.products.FindProduct(ctx, userID, productURL)
		if err != nil {
			return nil, fmt.Errorf("lookup product after conflict: %w", err)
		}
	}

	return s.update(ctx, *existing, result)
}

func (s *ProductService) insert(ctx context.Context, userID, productURL string, result *domain.ExtractionResult) (*AddResult, error) {
	price, err := NormalizePrice(result.CurrentPrice, result.CurrencyCode, "", s.defaultCurrency)
	if err != nil {
		logx.Warn().Str("url", productURL).Str("raw_price", result.CurrentPrice).Msg("invalid price detected")
		return nil, err
	}

	now := s.clock().UTC()
	product := applyObservation(domain.TrackedProduct{
		ID:        uuid.NewString(),
		UserID:    userID,
		URL:       productURL,
		CreatedAt: now,
	}, result, price, now)

	if err := s.products.InsertProduct(ctx, &product, newHistoryEntry(product.ID, price, now)); err != nil {
		if errors.Is(err, domain.ErrDuplicateProduct) {
			return nil, err
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}

	logx.Info().Str("product_id", product.ID).Str("user_id", userID).Str("url", productURL).Msg("product added")
	return &AddResult{Product: &product, Created: true}, nil
}

func (s *ProductService) update(ctx context.Context, existing domain.TrackedProduct, result *domain.ExtractionResult) (*AddResult, error) {
	price, err := NormalizePrice(result.CurrentPrice, result.CurrencyCode, existing.Currency, s.defaultCurrency)
	if err != nil {
		logx.Warn().Str("url", existing.URL).Str("raw_price", result.CurrentPrice).Msg("invalid price detected")
		return nil, err
	}

	next := applyObservation(existing, result, price, s.clock().UTC())
	var entry *domain.PriceHistoryEntry
	if priceChanged(existing.CurrentPrice, price.Amount) {
		entry = newHistoryEntry(next.ID, price, next.UpdatedAt)
	}
	if err := s.products.UpdateProduct(ctx, &next, entry); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	logx.Info().Str("product_id", next.ID).Str("user_id", next.UserID).Msg("product refreshed with latest price")
	return &AddResult{Product: &next, Created: false}, nil
}

// ListProducts returns the user's tracked products, newest first.
func (s *ProductService) ListProducts(ctx context.Context, userID string) ([]domain.TrackedProduct, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}
	return s.products.ListProductsByUser(ctx, userID)
}

// DeleteProduct stops tracking a product and drops its history.
func (s *ProductService) DeleteProduct(ctx context.Context, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidRequest)
	}
	return s.products.DeleteProduct(ctx, productID)
}

// PriceHistory returns a product's price history, oldest first.
func (s *ProductService) PriceHistory(ctx context.Context, productID string) ([]domain.PriceHistoryEntry, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.products.ListPriceHistory(ctx, productID)
}

// SaveUser creates or updates a product owner.
func (s *ProductService) SaveUser(ctx context.Context, user *domain.User) error {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.clock().UTC()
	}
	return s.users.SaveUser(ctx, user)
}

func validateProductURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: product url is required", domain.ErrInvalidRequest)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an http(s) url", domain.ErrInvalidRequest, raw)
	}
	return raw, nil
}
