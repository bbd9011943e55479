// Package sqlite is the default Tracked-Product Store, backed by an embedded
// SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	telegram_chat_id INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	url TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	current_price TEXT,
	currency TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (user_id, url)
);

CREATE TABLE IF NOT EXISTS price_history (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	price TEXT NOT NULL,
	currency TEXT NOT NULL,
	checked_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history (product_id, checked_at);
`

const productColumns = `id, user_id, url, name, current_price, currency, image_url, created_at, updated_at`

// Store provides SQLite-backed persistence for users, tracked products and price history.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath, creates tables if they don't exist, and returns a Store.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	// Writers are serialised by SQLite anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.TrackedProduct, error) {
	var (
		p                    domain.TrackedProduct
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.URL, &p.Name, &p.CurrentPrice, &p.Currency, &p.ImageURL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.TrackedProduct, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
		`SELECT `+productColumns+` FROM products WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: list products for user %s: %w", userID, err)
	}
	return products, nil
}

// GetProduct returns domain.ErrProductNotFound for unknown ids.
func (s *Store) GetProduct(ctx context.Context, id string) (*domain.TrackedProduct, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get product %s: %w", id, err)
	}
	return p, nil
}

// FindProduct looks a product up by (user, url).
func (s *Store) FindProduct(ctx context.Context, userID, url string) (*domain.TrackedProduct, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = ? AND url = ?`, userID, url))
	if errors.Is(err, sql.ErrNoRows) {
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
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.UserID, p.URL, p.Name, p.CurrentPrice, p.Currency, p.ImageURL,
			toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
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
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET name = ?, current_price = ?, currency = ?, image_url = ?, updated_at = ? WHERE id = ?`,
			p.Name, p.CurrentPrice, p.Currency, p.ImageURL, toMillis(p.UpdatedAt), p.ID,
		)
		if err != nil {
			return fmt.Errorf("storage: update product %s: %w", p.ID, err)
		}
		if err := requireAffected(res, domain.ErrProductNotFound); err != nil {
			return err
		}
		return appendPriceHistory(ctx, tx, entry)
	})
}

// DeleteProduct removes a product; its history goes with it.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete product %s: %w", id, err)
	}
	return requireAffected(res, domain.ErrProductNotFound)
}

func appendPriceHistory(ctx context.Context, tx *sql.Tx, e *domain.PriceHistoryEntry) error {
	if e == nil {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO price_history (id, product_id, price, currency, checked_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ProductID, e.Price, e.Currency, toMillis(e.CheckedAt),
	)
	if err != nil {
		return fmt.Errorf("storage: append price history for %s: %w", e.ProductID, err)
	}
	return nil
}

// ListPriceHistory returns a product's history, oldest first.
func (s *Store) ListPriceHistory(ctx context.Context, productID string) ([]domain.PriceHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, price, currency, checked_at FROM price_history WHERE product_id = ? ORDER BY checked_at, rowid`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("storage: list price history for %s: %w", productID, err)
	}
	defer rows.Close()

	entries := []domain.PriceHistoryEntry{}
	for rows.Next() {
		var (
			e         domain.PriceHistoryEntry
			checkedAt int64
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Price, &e.Currency, &checkedAt); err != nil {
			return nil, fmt.Errorf("storage: scan price history: %w", err)
		}
		e.CheckedAt = fromMillis(checkedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetUser returns domain.ErrUserNotFound for unknown ids.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, telegram_chat_id, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.TelegramChatID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get user %s: %w", id, err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// SaveUser inserts a user or updates its contact details.
func (s *Store) SaveUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, telegram_chat_id, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email, telegram_chat_id = excluded.telegram_chat_id`,
		u.ID, u.Email, u.TelegramChatID, toMillis(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage: save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Without extended result codes only the message tells UNIQUE apart.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var (
	_ domain.ProductRepository = (*Store)(nil)
	_ domain.UserRepository    = (*Store)(nil)
)
