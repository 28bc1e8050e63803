package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bakery-pos/internal/models"
	"bakery-pos/internal/store"
	"bakery-pos/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductPatch carries the fields edited inline from the inventory grid.
// Nil fields are left unchanged.
type ProductPatch struct {
	Name            *string          `json:"name"`
	Price           *decimal.Decimal `json:"price"`
	CategoryID      *int64           `json:"category_id"`
	ImageURL        *string          `json:"image_url"`
	IsWeightProduct *bool            `json:"is_weight_product"`
	CurrentStock    *decimal.Decimal `json:"current_stock"`
}

// CatalogService handles product and category administration. Writes are last write wins.
type CatalogService struct {
	repo      store.CatalogRepository
	inventory *InventoryClient
	publisher EventPublisher
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo store.CatalogRepository, inventory *InventoryClient, publisher EventPublisher) *CatalogService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &CatalogService{
		repo:      repo,
		inventory: inventory,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

func (cs *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return cs.repo.ListCategories(ctx)
}

func (cs *CatalogService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateCategory")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrEmptyName
	}

	category, err := cs.repo.CreateCategory(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	util.CatalogChangesTotal.WithLabelValues("category", "create").Inc()
	cs.logger.Info("Category created", zap.Int64("category_id", category.ID), zap.String("name", name))
	return category, nil
}

func (cs *CatalogService) UpdateCategory(ctx context.Context, id int64, name string) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateCategory")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrEmptyName
	}

	category, err := cs.repo.UpdateCategory(ctx, id, name)
	if err != nil {
		return nil, err
	}

	util.CatalogChangesTotal.WithLabelValues("category", "update").Inc()
	return category, nil
}

// DeleteCategory fails with models.ErrCategoryInUse while products reference it
func (cs *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteCategory")
	defer span.End()

	if err := cs.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}

	util.CatalogChangesTotal.WithLabelValues("category", "delete").Inc()
	cs.logger.Info("Category deleted", zap.Int64("category_id", id))
	return nil
}

// ListProducts returns the catalog with live stock and prices
func (cs *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return cs.repo.ListProducts(ctx)
}

func (cs *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return cs.repo.GetProduct(ctx, id)
}

// CreateProduct stores a new product under a freshly assigned id
func (cs *CatalogService) CreateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	product.ID = 0
	if err := cs.validateProduct(ctx, &product); err != nil {
		return nil, err
	}

	created, err := cs.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	util.CatalogChangesTotal.WithLabelValues("product", "create").Inc()
	cs.logger.Info("Product created", zap.Int64("product_id", created.ID), zap.String("name", created.Name))
	cs.productChanged(ctx, created)
	return created, nil
}

// UpdateProduct replaces every field of an existing product
func (cs *CatalogService) UpdateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if err := cs.validateProduct(ctx, &product); err != nil {
		return nil, err
	}

	updated, err := cs.repo.UpdateProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	util.CatalogChangesTotal.WithLabelValues("product", "update").Inc()
	cs.productChanged(ctx, updated)
	return updated, nil
}

// PatchProduct changes only the fields set in patch
func (cs *CatalogService) PatchProduct(ctx context.Context, id int64, patch ProductPatch) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.PatchProduct")
	defer span.End()

	current, err := cs.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	product := *current
	if patch.Name != nil {
		product.Name = *patch.Name
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.CategoryID != nil {
		product.CategoryID = *patch.CategoryID
	}
	if patch.ImageURL != nil {
		product.ImageURL = *patch.ImageURL
	}
	if patch.IsWeightProduct != nil {
		product.IsWeightProduct = *patch.IsWeightProduct
	}
	if patch.CurrentStock != nil {
		product.CurrentStock = *patch.CurrentStock
	}
	return cs.UpdateProduct(ctx, product)
}

func (cs *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	if err := cs.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	util.CatalogChangesTotal.WithLabelValues("product", "delete").Inc()
	cs.logger.Info("Product deleted", zap.Int64("product_id", id))

	if cs.inventory != nil {
		cs.inventory.ProductDeleted(ctx, id)
	}
	event := &models.ProductDeletedEvent{
		BaseEvent: newBaseEvent(models.EventTypeProductDeleted),
		ProductID: id,
	}
	if err := cs.publisher.PublishProductDeleted(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeProductDeleted).Inc()
		cs.logger.Error("Failed to publish ProductDeleted event", zap.Error(err))
	}
	return nil
}

func (cs *CatalogService) validateProduct(ctx context.Context, product *models.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return models.ErrEmptyName
	}
	if product.Price.IsNegative() || !models.FitsPlaces(product.Price, models.MoneyPlaces) {
		return fmt.Errorf("price %s: %w", product.Price, models.ErrInvalidAmount)
	}
	if product.CurrentStock.IsNegative() || !models.FitsPlaces(product.CurrentStock, models.QuantityPlaces) {
		return fmt.Errorf("stock %s: %w", product.CurrentStock, models.ErrInvalidAmount)
	}
	if !product.IsWeightProduct && !product.CurrentStock.Equal(product.CurrentStock.Truncate(0)) {
		return fmt.Errorf("unit product stock %s must be whole: %w", product.CurrentStock, models.ErrInvalidAmount)
	}
	if _, err := cs.repo.GetCategory(ctx, product.CategoryID); err != nil {
		return fmt.Errorf("category %d: %w", product.CategoryID, err)
	}
	return nil
}

func (cs *CatalogService) productChanged(ctx context.Context, product *models.Product) {
	if cs.inventory != nil {
		cs.inventory.ProductChanged(ctx, product)
	}
	event := &models.ProductChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeProductChanged),
		Product:   *product,
	}
	if err := cs.publisher.PublishProductChanged(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeProductChanged).Inc()
		cs.logger.Error("Failed to publish ProductChanged event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
