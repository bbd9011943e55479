package usecase

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/shopspring/decimal"
)

// applyObservation returns the product's next stored state for a fresh
// extraction. Name and image keep their previous values when the extraction
// omitted them.
func applyObservation(p domain.TrackedProduct, r *domain.ExtractionResult, price domain.Price, now time.Time) domain.TrackedProduct {
	p.CurrentPrice = decimal.NewNullDecimal(price.Amount)
	p.Currency = price.Currency
	if name := strings.TrimSpace(r.ProductName); name != "" {
		p.Name = name
	}
	if image := strings.TrimSpace(r.ProductImageURL); image != "" {
		p.ImageURL = image
	}
	p.UpdatedAt = now
	return p
}

// priceChanged reports whether newPrice must be recorded in history.
func priceChanged(oldPrice decimal.NullDecimal, newPrice decimal.Decimal) bool {
	return !oldPrice.Valid || !oldPrice.Decimal.Equal(newPrice)
}

func newHistoryEntry(productID string, price domain.Price, at time.Time) *domain.PriceHistoryEntry {
	return &domain.PriceHistoryEntry{
		ID:        uuid.NewString(),
		ProductID: productID,
		Price:     price.Amount,
		Currency:  price.Currency,
		CheckedAt: at,
	}
}
