package store

import (
	"context"
	"fmt"
	"time"

	"bakery-pos/internal/models"

	"github.com/shopspring/decimal"
)

// CatalogRepository stores products and categories
type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	UpdateCategory(ctx context.Context, id int64, name string) (*models.Category, error)
	// DeleteCategory fails with models.ErrCategoryInUse while any product references it
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, product models.Product) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// SaleRepository stores the sale log
type SaleRepository interface {
	// CommitSale assigns the sale id, appends it to the log and decrements the
	// stock of every sold product, clamped at zero, as one unit.
	CommitSale(ctx context.Context, sale *models.SaleRecord) ([]StockChange, error)
	GetSale(ctx context.Context, id string) (*models.SaleRecord, error)
	// ListSales returns the working set in commit order
	ListSales(ctx context.Context) ([]models.SaleRecord, error)
	// PurgeSales removes every sale paid with method and returns how many were removed
	PurgeSales(ctx context.Context, method models.PaymentMethod) (int, error)
}

// Repository is the full persistence surface of the service
type Repository interface {
	CatalogRepository
	SaleRepository
	Close() error
}

// StockChange describes the stock movement of one product during a sale
type StockChange struct {
	ProductID int64
	Before    decimal.Decimal
	Sold      decimal.Decimal
	After     decimal.Decimal
}

// Oversold reports whether more was sold than was in stock
func (c StockChange) Oversold() bool {
	return c.Sold.GreaterThan(c.Before)
}

// FormatSaleID builds the public id of a sale from its commit sequence
func FormatSaleID(seq int64, at time.Time) string {
	return fmt.Sprintf("SALE-%d-%d", seq, at.UnixMilli())
}

// ClampedDecrement subtracts qty from stock without going below zero
func ClampedDecrement(stock, qty decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, stock.Sub(qty))
}
