package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"bakery-pos/internal/models"
	"bakery-pos/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter sends one keyed event. Producer satisfies it.
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	writer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter) *EventPublisher {
	return &EventPublisher{writer: writer}
}

// PublishSaleRecorded publishes SaleRecorded event
func (ep *EventPublisher) PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error {
	return ep.writer.PublishEvent(ctx, "sale-"+event.SaleID, event)
}

// PublishCashDrawerReconciled publishes CashDrawerReconciled event
func (ep *EventPublisher) PublishCashDrawerReconciled(ctx context.Context, event *models.CashDrawerReconciledEvent) error {
	return ep.writer.PublishEvent(ctx, "cashdrawer", event)
}

// PublishProductChanged publishes ProductChanged event
func (ep *EventPublisher) PublishProductChanged(ctx context.Context, event *models.ProductChangedEvent) error {
	return ep.writer.PublishEvent(ctx, fmt.Sprintf("product-%d", event.Product.ID), event)
}

// PublishProductDeleted publishes ProductDeleted event
func (ep *EventPublisher) PublishProductDeleted(ctx context.Context, event *models.ProductDeletedEvent) error {
	return ep.writer.PublishEvent(ctx, fmt.Sprintf("product-%d", event.ProductID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onSaleRecorded   func(context.Context, *models.SaleRecordedEvent) error
	onCashReconciled func(context.Context, *models.CashDrawerReconciledEvent) error
	onProductChanged func(context.Context, *models.ProductChangedEvent) error
	onProductDeleted func(context.Context, *models.ProductDeletedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSaleRecorded registers a handler for SaleRecorded events
func (eh *EventHandler) OnSaleRecorded(handler func(context.Context, *models.SaleRecordedEvent) error) {
	eh.onSaleRecorded = handler
}

// OnCashDrawerReconciled registers a handler for CashDrawerReconciled events
func (eh *EventHandler) OnCashDrawerReconciled(handler func(context.Context, *models.CashDrawerReconciledEvent) error) {
	eh.onCashReconciled = handler
}

// OnProductChanged registers a handler for ProductChanged events
func (eh *EventHandler) OnProductChanged(handler func(context.Context, *models.ProductChangedEvent) error) {
	eh.onProductChanged = handler
}

// OnProductDeleted registers a handler for ProductDeleted events
func (eh *EventHandler) OnProductDeleted(handler func(context.Context, *models.ProductDeletedEvent) error) {
	eh.onProductDeleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSaleRecorded:
		if eh.onSaleRecorded != nil {
			var event models.SaleRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleRecorded event: %w", err)
			}
			return eh.onSaleRecorded(ctx, &event)
		}

	case models.EventTypeCashDrawerReconciled:
		if eh.onCashReconciled != nil {
			var event models.CashDrawerReconciledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CashDrawerReconciled event: %w", err)
			}
			return eh.onCashReconciled(ctx, &event)
		}

	case models.EventTypeProductChanged:
		if eh.onProductChanged != nil {
			var event models.ProductChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductChanged event: %w", err)
			}
			return eh.onProductChanged(ctx, &event)
		}

	case models.EventTypeProductDeleted:
		if eh.onProductDeleted != nil {
			var event models.ProductDeletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductDeleted event: %w", err)
			}
			return eh.onProductDeleted(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
