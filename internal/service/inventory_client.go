package service

import (
	"context"
	"fmt"

	"bakery-pos/internal/models"
	"bakery-pos/internal/store"
	"bakery-pos/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockMirror is a fast read copy of product stock. redisclient.Client satisfies it.
type StockMirror interface {
	SetStock(ctx context.Context, productID int64, stock decimal.Decimal) error
	SetStocks(ctx context.Context, stocks map[int64]decimal.Decimal) error
	GetStock(ctx context.Context, productID int64) (decimal.Decimal, bool, error)
	DecrementStock(ctx context.Context, productID int64, qty decimal.Decimal) (decimal.Decimal, bool, error)
	DeleteStock(ctx context.Context, productID int64) error
}

// InventoryClient handles product lookups and keeps the stock mirror in step
// with the repository. The repository is always authoritative.
type InventoryClient struct {
	repo   store.CatalogRepository
	mirror StockMirror
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory client. mirror may be nil.
func NewInventoryClient(repo store.CatalogRepository, mirror StockMirror) *InventoryClient {
	return &InventoryClient{
		repo:   repo,
		mirror: mirror,
		logger: util.GetLogger(),
	}
}

// GetProduct returns a product with its stock read from the mirror when available
func (ic *InventoryClient) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.GetProduct")
	defer span.End()

	product, err := ic.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if ic.mirror == nil {
		return product, nil
	}

	stock, ok, err := ic.mirror.GetStock(ctx, productID)
	if err != nil {
		ic.logger.Warn("Stock mirror read failed, using repository stock",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return product, nil
	}
	if ok {
		product.CurrentStock = stock
	}
	return product, nil
}

// ApplySale mirrors the stock movements of a committed sale
func (ic *InventoryClient) ApplySale(ctx context.Context, changes []store.StockChange) {
	if ic.mirror == nil {
		return
	}
	ctx, span := util.StartSpan(ctx, "InventoryClient.ApplySale")
	defer span.End()

	for _, change := range changes {
		remaining, ok, err := ic.mirror.DecrementStock(ctx, change.ProductID, change.Sold)
		if err != nil {
			ic.logger.Error("Failed to decrement mirrored stock",
				zap.Int64("product_id", change.ProductID),
				zap.Error(err))
		}
		if err != nil || !ok || !remaining.Equal(change.After) {
			ic.resync(ctx, change.ProductID, change.After)
		}
	}
}

// ProductChanged refreshes the mirror after a catalog write
func (ic *InventoryClient) ProductChanged(ctx context.Context, product *models.Product) {
	if ic.mirror == nil {
		return
	}
	ic.resync(ctx, product.ID, product.CurrentStock)
}

// ProductDeleted drops a product from the mirror
func (ic *InventoryClient) ProductDeleted(ctx context.Context, productID int64) {
	if ic.mirror == nil {
		return
	}
	if err := ic.mirror.DeleteStock(ctx, productID); err != nil {
		ic.logger.Error("Failed to delete mirrored stock",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}
}

// SyncInventoryToRedis copies the stock of every product to the mirror
func (ic *InventoryClient) SyncInventoryToRedis(ctx context.Context) error {
	if ic.mirror == nil {
		return nil
	}
	ic.logger.Info("Starting inventory sync to Redis")

	products, err := ic.repo.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	stocks := make(map[int64]decimal.Decimal, len(products))
	for _, p := range products {
		stocks[p.ID] = p.CurrentStock
	}
	if err := ic.mirror.SetStocks(ctx, stocks); err != nil {
		return fmt.Errorf("failed to sync inventory: %w", err)
	}

	ic.logger.Info("Inventory sync completed", zap.Int("count", len(products)))
	return nil
}

func (ic *InventoryClient) resync(ctx context.Context, productID int64, stock decimal.Decimal) {
	if err := ic.mirror.SetStock(ctx, productID, stock); err != nil {
		ic.logger.Error("Failed to set mirrored stock",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}
}
