package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"bakery-pos/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

// foreign_key_violation
const pqForeignKeyViolation = "23503"

// PostgresStore is the Postgres implementation of Repository
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new database store
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema files in name order
func (s *PostgresStore) Migrate(ctx context.Context) ([]string, error) {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return nil, err
		}
		if _, err := s.db.ExecContext(ctx, string(body)); err != nil {
			return nil, fmt.Errorf("migration %s failed: %w", name, err)
		}
	}
	return names, nil
}

// Seed inserts the catalog when the products table is empty
func (s *PostgresStore) Seed(ctx context.Context, catalog *Catalog) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM products"); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	for _, c := range catalog.Categories {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO categories (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
			c.ID, c.Name); err != nil {
			return false, fmt.Errorf("failed to seed category %d: %w", c.ID, err)
		}
	}
	for _, p := range catalog.Products {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO products (id, name, price, category_id, image_url, is_weight_product, current_stock)
			VALUES (:id, :name, :price, :category_id, :image_url, :is_weight_product, :current_stock)`, p); err != nil {
			return false, fmt.Errorf("failed to seed product %d: %w", p.ID, err)
		}
	}
	for _, stmt := range []string{
		"SELECT setval(pg_get_serial_sequence('categories', 'id'), COALESCE(MAX(id), 1)) FROM categories",
		"SELECT setval(pg_get_serial_sequence('products', 'id'), COALESCE(MAX(id), 1)) FROM products",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, err
		}
	}

	return true, tx.Commit()
}

// ListCategories retrieves all categories
func (s *PostgresStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories, "SELECT id, name FROM categories ORDER BY id")
	return categories, err
}

// GetCategory retrieves a category by ID
func (s *PostgresStore) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT id, name FROM categories WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateCategory inserts a category
func (s *PostgresStore) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	category := models.Category{Name: name}
	err := s.db.GetContext(ctx, &category.ID, "INSERT INTO categories (name) VALUES ($1) RETURNING id", name)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// UpdateCategory renames a category
func (s *PostgresStore) UpdateCategory(ctx context.Context, id int64, name string) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category,
		"UPDATE categories SET name = $1 WHERE id = $2 RETURNING id, name", name, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory removes a category that no product references
func (s *PostgresStore) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var inUse bool
	if err := tx.GetContext(ctx, &inUse,
		"SELECT EXISTS(SELECT 1 FROM products WHERE category_id = $1)", id); err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("category %d: %w", id, models.ErrCategoryInUse)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return fmt.Errorf("category %d: %w", id, models.ErrCategoryInUse)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	return tx.Commit()
}

const productColumns = "id, name, price, category_id, image_url, is_weight_product, current_stock"

// ListProducts retrieves all products
func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY id")
	return products, err
}

// GetProduct retrieves a product by ID
func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a product and assigns its ID
func (s *PostgresStore) CreateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	query := `
		INSERT INTO products (name, price, category_id, image_url, is_weight_product, current_stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := s.db.GetContext(ctx, &product.ID, query,
		product.Name, product.Price, product.CategoryID, product.ImageURL,
		product.IsWeightProduct, product.CurrentStock)
	if err != nil {
		return nil, s.mapProductErr(product, err)
	}
	return &product, nil
}

// UpdateProduct overwrites a product. Last write wins.
func (s *PostgresStore) UpdateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE products
		SET name = :name, price = :price, category_id = :category_id, image_url = :image_url,
		    is_weight_product = :is_weight_product, current_stock = :current_stock
		WHERE id = :id`, product)
	if err != nil {
		return nil, s.mapProductErr(product, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("product %d: %w", product.ID, models.ErrNotFound)
	}
	return &product, nil
}

// DeleteProduct removes a product
func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) mapProductErr(product models.Product, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
		return fmt.Errorf("category %d: %w", product.CategoryID, models.ErrNotFound)
	}
	return err
}
