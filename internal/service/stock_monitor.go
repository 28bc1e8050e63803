package service

import (
	"context"
	"strconv"
	"sync"

	"bakery-pos/internal/models"
	"bakery-pos/internal/store"
	"bakery-pos/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxProcessedEvents bounds the memory used to drop redelivered events
const maxProcessedEvents = 10000

// StockMonitor reacts to sale and catalog events by tracking stock levels
// and raising an alert when a product drops to the low stock threshold.
type StockMonitor struct {
	repo      store.CatalogRepository
	threshold decimal.Decimal
	logger    *zap.Logger

	mu        sync.Mutex
	processed map[string]struct{}
	order     []string
	low       map[int64]bool
}

// NewStockMonitor creates a new stock monitor
func NewStockMonitor(repo store.CatalogRepository, threshold decimal.Decimal) *StockMonitor {
	return &StockMonitor{
		repo:      repo,
		threshold: threshold,
		logger:    util.GetLogger(),
		processed: make(map[string]struct{}),
		low:       make(map[int64]bool),
	}
}

// HandleSaleRecorded updates stock levels for every product in a sale
func (sm *StockMonitor) HandleSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error {
	ctx, span := util.StartSpan(ctx, "StockMonitor.HandleSaleRecorded")
	defer span.End()

	if sm.seen(event.EventID) {
		sm.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	for _, item := range event.Items {
		stock := item.StockAfter
		if stock == nil {
			product, err := sm.repo.GetProduct(ctx, item.ProductID)
			if err != nil {
				sm.logger.Warn("Sold product no longer in catalog",
					zap.Int64("product_id", item.ProductID),
					zap.Error(err))
				continue
			}
			stock = &product.CurrentStock
		}
		sm.observe(item.ProductID, "", *stock)
	}
	return nil
}

// HandleProductChanged records the stock of an edited product
func (sm *StockMonitor) HandleProductChanged(ctx context.Context, event *models.ProductChangedEvent) error {
	if sm.seen(event.EventID) {
		return nil
	}
	sm.observe(event.Product.ID, event.Product.Name, event.Product.CurrentStock)
	return nil
}

// HandleProductDeleted stops tracking a removed product
func (sm *StockMonitor) HandleProductDeleted(ctx context.Context, event *models.ProductDeletedEvent) error {
	if sm.seen(event.EventID) {
		return nil
	}

	sm.mu.Lock()
	delete(sm.low, event.ProductID)
	sm.mu.Unlock()

	util.ProductStockLevel.DeleteLabelValues(strconv.FormatInt(event.ProductID, 10))
	return nil
}

// IsLow reports whether the product was last seen at or below the threshold
func (sm *StockMonitor) IsLow(productID int64) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.low[productID]
}

// observe alerts once when a product crosses into low stock
func (sm *StockMonitor) observe(productID int64, name string, stock decimal.Decimal) {
	level, _ := stock.Float64()
	util.ProductStockLevel.WithLabelValues(strconv.FormatInt(productID, 10)).Set(level)

	isLow := stock.LessThanOrEqual(sm.threshold)

	sm.mu.Lock()
	wasLow := sm.low[productID]
	sm.low[productID] = isLow
	sm.mu.Unlock()

	if isLow && !wasLow {
		util.LowStockAlertsTotal.Inc()
		sm.logger.Warn("Low stock",
			zap.Int64("product_id", productID),
			zap.String("name", name),
			zap.String("stock", stock.String()),
			zap.String("threshold", sm.threshold.String()))
	}
}

// seen marks an event id as processed and reports whether it already was
func (sm *StockMonitor) seen(eventID string) bool {
	if eventID == "" {
		return false
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.processed[eventID]; ok {
		return true
	}
	sm.processed[eventID] = struct{}{}
	sm.order = append(sm.order, eventID)
	if len(sm.order) > maxProcessedEvents {
		delete(sm.processed, sm.order[0])
		sm.order = sm.order[1:]
	}
	return false
}
