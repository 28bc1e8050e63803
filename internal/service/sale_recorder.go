package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bakery-pos/internal/models"
	"bakery-pos/internal/redisclient"
	"bakery-pos/internal/store"
	"bakery-pos/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IdempotencyStore remembers which sale a client request produced.
// redisclient.Client satisfies it.
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, string, error)
	SetIdempotencyKey(ctx context.Context, key string, value string, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// FinalizeRequest is a ticket ready to be committed as a sale
type FinalizeRequest struct {
	Items          []models.TicketItem
	Total          decimal.Decimal
	Method         models.PaymentMethod
	User           string
	Customer       string
	IdempotencyKey string
}

// SaleRecorder commits finalized tickets as immutable sale records
type SaleRecorder struct {
	repo      store.SaleRepository
	inventory *InventoryClient
	publisher EventPublisher
	faults    FaultPolicy
	keys      IdempotencyStore
	keyTTL    time.Duration
	logger    *zap.Logger
	now       func() time.Time

	// commitMu serializes commits so ids follow completion order
	commitMu sync.Mutex
}

// NewSaleRecorder creates a new sale recorder
func NewSaleRecorder(
	repo store.SaleRepository,
	inventory *InventoryClient,
	publisher EventPublisher,
	faults FaultPolicy,
) *SaleRecorder {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if faults == nil {
		faults = NoFaults{}
	}
	return &SaleRecorder{
		repo:      repo,
		inventory: inventory,
		publisher: publisher,
		faults:    faults,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// EnableIdempotency makes repeated requests carrying the same key return the first sale
func (r *SaleRecorder) EnableIdempotency(keys IdempotencyStore, ttl time.Duration) {
	r.keys = keys
	r.keyTTL = ttl
}

// Finalize validates and commits a sale. A simulated transport fault returns
// models.ErrTransaction and commits nothing.
func (r *SaleRecorder) Finalize(ctx context.Context, req FinalizeRequest) (*models.SaleRecord, error) {
	ctx, span := util.StartSpan(ctx, "SaleRecorder.Finalize")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SaleFinalizeLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateFinalize(req); err != nil {
		util.SalesFailedTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	claimed := false
	if req.IdempotencyKey != "" && r.keys != nil {
		ok, existing, err := r.keys.ClaimIdempotencyKey(ctx, req.IdempotencyKey, r.keyTTL)
		switch {
		case err != nil:
			r.logger.Warn("Idempotency check failed, recording without it",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		case !ok:
			return r.duplicate(ctx, req.IdempotencyKey, existing)
		default:
			claimed = true
		}
	}

	release := func() {
		if !claimed {
			return
		}
		if err := r.keys.ReleaseIdempotencyKey(context.WithoutCancel(ctx), req.IdempotencyKey); err != nil {
			r.logger.Error("Failed to release idempotency key",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		}
	}

	if err := r.faults.Delay(ctx); err != nil {
		release()
		util.SalesFailedTotal.WithLabelValues("cancelled").Inc()
		return nil, fmt.Errorf("sale finalize interrupted: %w", err)
	}
	if r.faults.ShouldFail() {
		release()
		util.SalesFailedTotal.WithLabelValues("transaction").Inc()
		util.RecordError(span, models.ErrTransaction)
		r.logger.Warn("Simulated transaction fault while recording sale",
			zap.String("user", req.User),
			zap.String("method", string(req.Method)))
		return nil, models.ErrTransaction
	}

	sale := &models.SaleRecord{
		Items:      append([]models.TicketItem(nil), req.Items...),
		Total:      models.RoundMoney(req.Total),
		Method:     req.Method,
		User:       req.User,
		Customer:   req.Customer,
		IsFinished: true,
	}

	changes, err := r.commit(context.WithoutCancel(ctx), sale)
	if err != nil {
		release()
		util.SalesFailedTotal.WithLabelValues("store").Inc()
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to commit sale: %w", err)
	}

	if claimed {
		if err := r.keys.SetIdempotencyKey(ctx, req.IdempotencyKey, sale.ID, r.keyTTL); err != nil {
			r.logger.Error("Failed to store idempotency key",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		}
	}

	stockAfter := make(map[int64]decimal.Decimal, len(changes))
	for _, change := range changes {
		stockAfter[change.ProductID] = change.After
		if change.Oversold() {
			util.StockOversoldTotal.Inc()
			r.logger.Warn("Sale sold more than the stock on hand",
				zap.String("sale_id", sale.ID),
				zap.Int64("product_id", change.ProductID),
				zap.String("stock", change.Before.String()),
				zap.String("sold", change.Sold.String()))
		}
	}

	util.SalesRecordedTotal.WithLabelValues(string(sale.Method)).Inc()
	total, _ := sale.Total.Float64()
	util.SalesAmountTotal.WithLabelValues(string(sale.Method)).Add(total)

	r.logger.Info("Sale recorded",
		zap.String("sale_id", sale.ID),
		zap.String("user", sale.User),
		zap.String("method", string(sale.Method)),
		zap.String("total", sale.Total.String()))

	r.publishSaleRecorded(ctx, sale, stockAfter)
	return sale, nil
}

// CommitLock is held for the duration of every commit
func (r *SaleRecorder) CommitLock() sync.Locker {
	return &r.commitMu
}

func (r *SaleRecorder) commit(ctx context.Context, sale *models.SaleRecord) ([]store.StockChange, error) {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	sale.Timestamp = r.now()
	changes, err := r.repo.CommitSale(ctx, sale)
	if err != nil {
		return nil, err
	}
	if r.inventory != nil {
		r.inventory.ApplySale(ctx, changes)
	}
	return changes, nil
}

// duplicate resolves a request whose idempotency key was already used
func (r *SaleRecorder) duplicate(ctx context.Context, key, existing string) (*models.SaleRecord, error) {
	if existing == redisclient.PendingMarker {
		return nil, fmt.Errorf("sale for idempotency key %s is still in progress: %w", key, models.ErrTransaction)
	}

	r.logger.Info("Duplicate sale request detected",
		zap.String("idempotency_key", key),
		zap.String("sale_id", existing))

	sale, err := r.repo.GetSale(ctx, existing)
	if errors.Is(err, models.ErrNotFound) {
		// already banked by a cashout
		return &models.SaleRecord{ID: existing, IsFinished: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (r *SaleRecorder) publishSaleRecorded(ctx context.Context, sale *models.SaleRecord, stockAfter map[int64]decimal.Decimal) {
	items := make([]models.SaleItemData, 0, len(sale.Items))
	for _, item := range sale.Items {
		data := models.SaleItemData{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		}
		if after, ok := stockAfter[item.ID]; ok {
			data.StockAfter = &after
		}
		items = append(items, data)
	}

	event := &models.SaleRecordedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleRecorded,
			Timestamp: sale.Timestamp,
		},
		SaleID:   sale.ID,
		User:     sale.User,
		Method:   sale.Method,
		Total:    sale.Total,
		Items:    items,
		Customer: sale.Customer,
	}

	if err := r.publisher.PublishSaleRecorded(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeSaleRecorded).Inc()
		r.logger.Error("Failed to publish SaleRecorded event", zap.Error(err))
	}
}

func validateFinalize(req FinalizeRequest) error {
	if !req.Method.Valid() {
		return fmt.Errorf("%q: %w", req.Method, models.ErrInvalidPaymentMethod)
	}
	if req.Method == models.PaymentMethodStoreCredit && strings.TrimSpace(req.Customer) == "" {
		return models.ErrCustomerRequired
	}
	if len(req.Items) == 0 {
		return models.ErrEmptyTicket
	}
	return nil
}
