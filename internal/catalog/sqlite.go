package catalog

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	pErrors "github.com/stockyard/stockyard/internal/errors"
	"github.com/stockyard/stockyard/pkg/types"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)
}

// NewSQLiteStore creates a new SQLite-backed catalog store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, pErrors.NewStoreError(pErrors.CodeStoreClosed, "opening catalog database", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	// Read connection pool for the list/get API
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, pErrors.NewStoreError(pErrors.CodeStoreClosed, "opening catalog read database", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	store := &SQLiteStore{
		db:     db,
		readDB: readDB,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates the two catalog tables. The CHECK constraints are the
// store-level backstop for invariants the commit stage already validates.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL CHECK (length(title) > 0),
		description TEXT NOT NULL CHECK (length(description) > 0),
		price       REAL NOT NULL CHECK (price > 0),
		created_at  INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS stocks (
		product_id  TEXT PRIMARY KEY REFERENCES products(id),
		count       INTEGER NOT NULL CHECK (count >= 0)
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return pErrors.NewStoreError(pErrors.CodeWriteFailed, "initializing catalog schema", err)
	}
	return nil
}

// CreateProduct atomically writes the product/stock pair inside one
// transaction. ON CONFLICT upserts make redelivered messages no-ops rather
// than duplicates.
func (s *SQLiteStore) CreateProduct(ctx context.Context, p types.Product, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pErrors.NewStoreError(pErrors.CodeWriteFailed, "beginning catalog transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, title, description, price, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			price = excluded.price`,
		p.ID, p.Title, p.Description, p.Price, time.Now().UnixMilli())
	if err != nil {
		return pErrors.NewStoreError(pErrors.CodeWriteFailed, "writing product row", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stocks (product_id, count)
		VALUES (?, ?)
		ON CONFLICT(product_id) DO UPDATE SET count = excluded.count`,
		p.ID, count)
	if err != nil {
		return pErrors.NewStoreError(pErrors.CodeWriteFailed, "writing stock row", err)
	}

	if err := tx.Commit(); err != nil {
		return pErrors.NewStoreError(pErrors.CodeWriteFailed, "committing catalog transaction", err)
	}
	return nil
}

// GetProduct returns the product joined with its stock count.
func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (types.ProductWithStock, error) {
	var p types.ProductWithStock
	err := s.readDB.QueryRowContext(ctx, `
		SELECT p.id, p.title, p.description, p.price, COALESCE(st.count, 0)
		FROM products p
		LEFT JOIN stocks st ON st.product_id = p.id
		WHERE p.id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Count)
	if err == sql.ErrNoRows {
		return types.ProductWithStock{}, pErrors.NewStoreError(pErrors.CodeNotFound, "product not found", nil)
	}
	if err != nil {
		return types.ProductWithStock{}, pErrors.NewStoreError(pErrors.CodeWriteFailed, "reading product", err)
	}
	return p, nil
}

// ListProducts returns all products joined with stock counts.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]types.ProductWithStock, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT p.id, p.title, p.description, p.price, COALESCE(st.count, 0)
		FROM products p
		LEFT JOIN stocks st ON st.product_id = p.id
		ORDER BY p.created_at, p.id`)
	if err != nil {
		return nil, pErrors.NewStoreError(pErrors.CodeWriteFailed, "listing products", err)
	}
	defer rows.Close()

	var products []types.ProductWithStock
	for rows.Next() {
		var p types.ProductWithStock
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Count); err != nil {
			return nil, pErrors.NewStoreError(pErrors.CodeWriteFailed, "scanning product row", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pErrors.NewStoreError(pErrors.CodeWriteFailed, "iterating products", err)
	}
	return products, nil
}

// Close closes both database connections.
func (s *SQLiteStore) Close() error {
	var firstErr error
	if err := s.readDB.Close(); err != nil {
		firstErr = err
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
