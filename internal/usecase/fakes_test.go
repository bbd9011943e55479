package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/shopspring/decimal"
)

// MockProductRepository is an in-memory domain.ProductRepository
type MockProductRepository struct {
	mu          sync.Mutex
	products    map[string]domain.TrackedProduct
	history     []domain.PriceHistoryEntry
	listErr     error
	updateErrs  map[string]error
	historyErr  error
	insertErr   error
	updateCalls int
}

func NewMockProductRepository(products ...domain.TrackedProduct) *MockProductRepository {
	m := &MockProductRepository{
		products:   make(map[string]domain.TrackedProduct),
		updateErrs: make(map[string]error),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MockProductRepository) Ping(ctx context.Context) error {
	return m.listErr
}

func (m *MockProductRepository) ListProducts(ctx context.Context) ([]domain.TrackedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.TrackedProduct, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockProductRepository) ListProductsByUser(ctx context.Context, userID string) ([]domain.TrackedProduct, error) {
	all, err := m.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.TrackedProduct
	for _, p := range all {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockProductRepository) GetProduct(ctx context.Context, id string) (*domain.TrackedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (m *MockProductRepository) FindProduct(ctx context.Context, userID, url string) (*domain.TrackedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.UserID == userID && p.URL == url {
			found := p
			return &found, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

// InsertProduct and UpdateProduct are all-or-nothing: a historyErr leaves
// the product untouched, like the SQL stores' transactions.
func (m *MockProductRepository) InsertProduct(ctx context.Context, product *domain.TrackedProduct, entry *domain.PriceHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, p := range m.products {
		if p.UserID == product.UserID && p.URL == product.URL {
			return domain.ErrDuplicateProduct
		}
	}
	if entry != nil && m.historyErr != nil {
		return m.historyErr
	}
	m.products[product.ID] = *product
	if entry != nil {
		m.history = append(m.history, *entry)
	}
	return nil
}

func (m *MockProductRepository) UpdateProduct(ctx context.Context, product *domain.TrackedProduct, entry *domain.PriceHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if err := m.updateErrs[product.ID]; err != nil {
		return err
	}
	if _, ok := m.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	if entry != nil && m.historyErr != nil {
		return m.historyErr
	}
	m.products[product.ID] = *product
	if entry != nil {
		m.history = append(m.history, *entry)
	}
	return nil
}

func (m *MockProductRepository) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MockProductRepository) ListPriceHistory(ctx context.Context, productID string) ([]domain.PriceHistoryEntry, error) {
	return m.historyFor(productID), nil
}

func (m *MockProductRepository) historyFor(productID string) []domain.PriceHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PriceHistoryEntry
	for _, e := range m.history {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockProductRepository) product(id string) domain.TrackedProduct {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id]
}

// MockUserRepository is an in-memory domain.UserRepository
type MockUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
	err   error
}

func NewMockUserRepository(users ...domain.User) *MockUserRepository {
	m := &MockUserRepository{users: make(map[string]domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *MockUserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *MockUserRepository) SaveUser(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = *user
	return nil
}

// MockExtractor returns canned results per URL
type MockExtractor struct {
	mu      sync.Mutex
	results map[string]*domain.ExtractionResult
	panics  map[string]bool
	calls   map[string]int
}

func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		results: make(map[string]*domain.ExtractionResult),
		panics:  make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (m *MockExtractor) set(url string, result *domain.ExtractionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[url] = result
}

func (m *MockExtractor) Extract(ctx context.Context, url string) *domain.ExtractionResult {
	m.mu.Lock()
	m.calls[url]++
	result, shouldPanic := m.results[url], m.panics[url]
	m.mu.Unlock()
	if shouldPanic {
		panic("extractor exploded")
	}
	if result == nil {
		return nil
	}
	copied := *result
	return &copied
}

func (m *MockExtractor) callCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

type sentAlert struct {
	to    string
	alert domain.PriceDropAlert
}

// MockNotifier records alerts and resolves users to their e-mail
type MockNotifier struct {
	mu      sync.Mutex
	sent    []sentAlert
	sendErr error
}

func (m *MockNotifier) Recipient(user *domain.User) string {
	return user.Email
}

func (m *MockNotifier) SendPriceDrop(ctx context.Context, to string, alert domain.PriceDropAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentAlert{to: to, alert: alert})
	return m.sendErr
}

func (m *MockNotifier) attempts() []sentAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentAlert(nil), m.sent...)
}

// MockCacheRepository is a map-backed domain.CacheRepository
type MockCacheRepository struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var errStoreDown = errors.New("connection refused")

func nullPrice(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
