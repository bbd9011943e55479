package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackedProduct is a (user, URL) pair the system monitors for price changes.
// UserID + URL is unique across the store.
type TrackedProduct struct {
	ID           string              `json:"id"`
	UserID       string              `json:"userId"`
	URL          string              `json:"url"`
	Name         string              `json:"name"`
	CurrentPrice decimal.NullDecimal `json:"currentPrice"`
	Currency     string              `json:"currency"`
	ImageURL     string              `json:"imageUrl,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// HasPrice reports whether the product has ever been priced.
func (p *TrackedProduct) HasPrice() bool {
	return p.CurrentPrice.Valid
}

// PriceHistoryEntry is one append-only observation of a product's price.
type PriceHistoryEntry struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	CheckedAt time.Time       `json:"checkedAt"`
}

// ExtractionResult is the product snapshot returned by an extraction service.
// Any field may be empty; callers decide what is usable.
type ExtractionResult struct {
	ProductName     string `json:"productName"`
	CurrentPrice    string `json:"currentPrice"`
	CurrencyCode    string `json:"currencyCode,omitempty"`
	ProductImageURL string `json:"productImageUrl,omitempty"`
}

// Price is a normalized amount in an ISO 4217 currency.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// PriceDropAlert carries everything a notification sink needs to describe a drop.
type PriceDropAlert struct {
	Product  TrackedProduct
	OldPrice decimal.Decimal
	// OldCurrency is the currency OldPrice was recorded in. Empty means Currency.
	OldCurrency string
	NewPrice    decimal.Decimal
	Currency    string
}

// PreviousCurrency returns OldCurrency, falling back to Currency.
func (a PriceDropAlert) PreviousCurrency() string {
	if a.OldCurrency != "" {
		return a.OldCurrency
	}
	return a.Currency
}

// Savings returns OldPrice - NewPrice.
func (a PriceDropAlert) Savings() decimal.Decimal {
	return a.OldPrice.Sub(a.NewPrice)
}

// SavingsPercent returns the drop as a percentage of the old price, rounded to one decimal.
func (a PriceDropAlert) SavingsPercent() decimal.Decimal {
	if a.OldPrice.IsZero() {
		return decimal.Zero
	}
	return a.Savings().Div(a.OldPrice).Mul(decimal.NewFromInt(100)).Round(1)
}
