package domain

import (
	"context"
	"time"
)

// ProductRepository is the Tracked-Product Store: tracked products plus their
// append-only price history.
type ProductRepository interface {
	Ping(ctx context.Context) error
	ListProducts(ctx context.Context) ([]TrackedProduct, error)
	ListProductsByUser(ctx context.Context, userID string) ([]TrackedProduct, error)
	GetProduct(ctx context.Context, id string) (*TrackedProduct, error)
	// FindProduct looks a product up by its dedup key.
	FindProduct(ctx context.Context, userID, url string) (*TrackedProduct, error)
	// InsertProduct writes the product and, when entry is non-nil, its
	// history entry atomically. It returns ErrDuplicateProduct when
	// (UserID, URL) already exists.
	InsertProduct(ctx context.Context, product *TrackedProduct, entry *PriceHistoryEntry) error
	// UpdateProduct writes the product's mutable fields and, when entry is
	// non-nil, appends it to history in the same transaction.
	UpdateProduct(ctx context.Context, product *TrackedProduct, entry *PriceHistoryEntry) error
	DeleteProduct(ctx context.Context, id string) error
	ListPriceHistory(ctx context.Context, productID string) ([]PriceHistoryEntry, error)
}

// UserRepository stores product owners.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*User, error)
	SaveUser(ctx context.Context, user *User) error
}

// Extractor calls a content-extraction service for one URL. A nil result
// means nothing usable came back; transport errors are never surfaced.
type Extractor interface {
	Extract(ctx context.Context, url string) *ExtractionResult
}

// Notifier is a notification sink for price drop alerts.
type Notifier interface {
	// Recipient returns the address this sink delivers to for the user,
	// or "" when the user has none.
	Recipient(user *User) string
	SendPriceDrop(ctx context.Context, to string, alert PriceDropAlert) error
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
