// Package postgres is the Tracked-Product Store for a hosted Postgres
// (e.g. Supabase) database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		telegram_chat_id BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		url TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		current_price NUMERIC,
		currency TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, url)
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		price NUMERIC NOT NULL,
		currency TEXT NOT NULL,
		checked_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// Older deployments created these as NUMERIC(14, 2), which rounds
	// three-decimal currencies.
	`ALTER TABLE products ALTER COLUMN current_price TYPE NUMERIC`,
	`ALTER TABLE price_history ALTER COLUMN price TYPE NUMERIC`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history (product_id, checked_at)`,
}

const productColumns = `id, user_id, url, name, current_price::text, currency, image_url, created_at, updated_at`

// Store provides Postgres-backed persistence for users, tracked products and price history.
type Store struct {
	db *pgxpool.Pool
}

// Connect opens a pool for dsn, pings it and creates missing tables.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logx.Info().Msg("connected to postgres")
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func scanProduct(row pgx.Row) (*domain.TrackedProduct, error) {
	var (
		p     domain.TrackedProduct
		price *string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.URL, &p.Name, &price, &p.Currency, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	current, err := parseNullDecimal(price)
	if err != nil {
		return nil, err
	}
	p.CurrentPrice = current
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.TrackedProduct, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []domain.TrackedProduct{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// ListProducts returns every tracked product.
func (s *Store) ListProducts(ctx context.Context) ([]domain.TrackedProduct, error) {
	products, err := s.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list products: %w", err)
	}
	return products, nil
}

// ListProductsByUser returns a user's products, newest first.
func (s *Store) ListProductsByUser(ctx context.Context, userID string) ([]domain.TrackedProduct, error) {
	products, err := s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: list products for user %s: %w", userID, err)
	}
	return products, nil
}

// GetProduct returns domain.ErrProductNotFound for unknown ids.
func (s *Store) GetProduct(ctx context.Context, id string) (*domain.TrackedProduct, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get product %s: %w", id, err)
	}
	return p, nil
}

// FindProduct looks a product up by (user, url).
func (s *Store) FindProduct(ctx context.Context, userID, url string) (*domain.TrackedProduct, error) {
	p, err := scanProduct(s.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = $1 AND url = $2`, userID, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: find product: %w", err)
	}
	return p, nil
}

// InsertProduct adds a product, plus its first history entry when entry is
// non-nil, in one transaction. It returns domain.ErrDuplicateProduct when
// (user, url) is taken.
func (s *Store) InsertProduct(ctx context.Context, p *domain.TrackedProduct, entry *domain.PriceHistoryEntry) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO products (id, user_id, url, name, current_price, currency, image_url, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`,
			p.ID, p.UserID, p.URL, p.Name, nullDecimalArg(p.CurrentPrice), p.Currency, p.ImageURL, p.CreatedAt, p.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return domain.ErrDuplicateProduct
		}
		if err != nil {
			return fmt.Errorf("storage: insert product: %w", err)
		}
		return appendPriceHistory(ctx, tx, entry)
	})
}

// UpdateProduct writes the mutable fields of an existing product and appends
// entry to its history in the same transaction.
func (s *Store) UpdateProduct(ctx context.Context, p *domain.TrackedProduct, entry *domain.PriceHistoryEntry) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE products SET name = $1, current_price = $2::numeric, currency = $3, image_url = $4, updated_at = $5 WHERE id = $6`,
			p.Name, nullDecimalArg(p.CurrentPrice), p.Currency, p.ImageURL, p.UpdatedAt, p.ID,
		)
		if err != nil {
			return fmt.Errorf("storage: update product %s: %w", p.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrProductNotFound
		}
		return appendPriceHistory(ctx, tx, entry)
	})
}

// DeleteProduct removes a product; its history goes with it.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func appendPriceHistory(ctx context.Context, tx pgx.Tx, e *domain.PriceHistoryEntry) error {
	if e == nil {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO price_history (id, product_id, price, currency, checked_at) VALUES ($1, $2, $3::numeric, $4, $5)`,
		e.ID, e.ProductID, e.Price.String(), e.Currency, e.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: append price history for %s: %w", e.ProductID, err)
	}
	return nil
}

// ListPriceHistory returns a product's history, oldest first.
func (s *Store) ListPriceHistory(ctx context.Context, productID string) ([]domain.PriceHistoryEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, product_id, price::text, currency, checked_at FROM price_history WHERE product_id = $1 ORDER BY checked_at, id`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("storage: list price history for %s: %w", productID, err)
	}
	defer rows.Close()

	entries := []domain.PriceHistoryEntry{}
	for rows.Next() {
		var (
			e     domain.PriceHistoryEntry
			price string
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &price, &e.Currency, &e.CheckedAt); err != nil {
			return nil, fmt.Errorf("storage: scan price history: %w", err)
		}
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("storage: parse price %q: %w", price, err)
		}
		e.CheckedAt = e.CheckedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetUser returns domain.ErrUserNotFound for unknown ids.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx,
		`SELECT id, email, telegram_chat_id, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.TelegramChatID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get user %s: %w", id, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// SaveUser inserts a user or updates its contact details.
func (s *Store) SaveUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (id, email, telegram_chat_id, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, telegram_chat_id = EXCLUDED.telegram_chat_id`,
		u.ID, u.Email, u.TelegramChatID, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: save user %s: %w", u.ID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// nullDecimalArg renders a price as a numeric literal, or nil for SQL NULL.
func nullDecimalArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse price %q: %w", *s, err)
	}
	return decimal.NewNullDecimal(d), nil
}

var (
	_ domain.ProductRepository = (*Store)(nil)
	_ domain.UserRepository    = (*Store)(nil)
)
