package service

import (
	"context"

	"bakery-pos/internal/models"
)

// EventPublisher publishes domain events. broker.EventPublisher satisfies it.
type EventPublisher interface {
	PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error
	PublishCashDrawerReconciled(ctx context.Context, event *models.CashDrawerReconciledEvent) error
	PublishProductChanged(ctx context.Context, event *models.ProductChangedEvent) error
	PublishProductDeleted(ctx context.Context, event *models.ProductDeletedEvent) error
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishSaleRecorded(context.Context, *models.SaleRecordedEvent) error {
	return nil
}

func (NoopPublisher) PublishCashDrawerReconciled(context.Context, *models.CashDrawerReconciledEvent) error {
	return nil
}

func (NoopPublisher) PublishProductChanged(context.Context, *models.ProductChangedEvent) error {
	return nil
}

func (NoopPublisher) PublishProductDeleted(context.Context, *models.ProductDeletedEvent) error {
	return nil
}
