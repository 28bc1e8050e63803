package worker

import (
	"context"

	"bakery-pos/internal/broker"
	"bakery-pos/internal/service"
	"bakery-pos/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Source delivers broker messages to a handler until ctx ends.
type Source interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// StockAlertWorker consumes sale and catalog events and feeds them to the
// stock monitor. Cash drawer events go to the cashout auditor.
type StockAlertWorker struct {
	source       Source
	eventHandler *broker.EventHandler
	monitor      *service.StockMonitor
	auditor      *service.CashoutAuditor
	logger       *zap.Logger
}

// NewStockAlertWorker creates a new stock alert worker. A nil auditor
// leaves cash drawer events unhandled.
func NewStockAlertWorker(source Source, monitor *service.StockMonitor, auditor *service.CashoutAuditor) *StockAlertWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnSaleRecorded(monitor.HandleSaleRecorded)
	eventHandler.OnProductChanged(monitor.HandleProductChanged)
	eventHandler.OnProductDeleted(monitor.HandleProductDeleted)
	if auditor != nil {
		eventHandler.OnCashDrawerReconciled(auditor.HandleCashDrawerReconciled)
	}

	return &StockAlertWorker{
		source:       source,
		eventHandler: eventHandler,
		monitor:      monitor,
		auditor:      auditor,
		logger:       util.GetLogger(),
	}
}

// Handle processes a single message.
func (w *StockAlertWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Start starts the worker
func (w *StockAlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock alert worker...")
	return w.source.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *StockAlertWorker) Stop() error {
	w.logger.Info("Stopping stock alert worker...")
	return w.source.Close()
}
