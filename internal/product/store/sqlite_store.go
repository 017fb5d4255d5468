package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fernandoirangph/pms-i/internal/product"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a sqlite catalog database. Prices
// are stored as text and parsed into decimals so money never goes
// through floating point.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, description, price, image_url, stock, created_at`

func scanProduct(row interface{ Scan(...any) error }) (*product.Product, error) {
	p := &product.Product{}
	var price string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.ImageURL, &p.Stock, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price for product %d: %w", p.ID, err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ?`, productColumns)

	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]*product.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY id`, productColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (s *SQLiteStore) InsertProduct(ctx context.Context, p *product.Product) (int64, error) {
	query := `
		INSERT INTO products (name, description, price, image_url, stock)
		VALUES (?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		p.Name, p.Description, p.Price.StringFixed(2), p.ImageURL, p.Stock)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	return res.LastInsertId()
}

// DecrementStock applies one checkout's decrements inside a single
// transaction: validate every product against live stock, then update.
// Any failure rolls the whole transaction back.
func (s *SQLiteStore) DecrementStock(ctx context.Context, quantities map[int64]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Stable ascending order keeps row access deterministic across
	// concurrent checkouts.
	for _, id := range sortedIDs(quantities) {
		qty := quantities[id]

		var stock int
		err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, id).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read stock: %w", err)
		}

		if stock == 0 {
			return &OutOfStockError{ProductID: id, Requested: qty}
		}
		if stock < qty {
			return &InsufficientStockError{ProductID: id, Available: stock, Requested: qty}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - ? WHERE id = ?`, qty, id); err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock decrement: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReleaseStock(ctx context.Context, quantities map[int64]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range sortedIDs(quantities) {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock + ? WHERE id = ?`, quantities[id], id)
		if err != nil {
			return fmt.Errorf("failed to release stock: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrProductNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock release: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetStock(ctx context.Context, id int64, stock int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET stock = ? WHERE id = ?`, stock, id)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}
