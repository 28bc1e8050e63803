package service

import (
	"context"
	"sync"

	"bakery-pos/internal/models"
	"bakery-pos/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cashout audit outcomes
const (
	CashoutBalanced = "balanced"
	CashoutOver     = "over"
	CashoutShort    = "short"
)

// CashoutAuditor consumes reconciled cash drawer events, logging each one
// and counting them by outcome.
type CashoutAuditor struct {
	threshold decimal.Decimal
	logger    *zap.Logger

	mu       sync.Mutex
	seenIDs  map[string]struct{}
	outcomes map[string]int
}

// NewCashoutAuditor creates an auditor that warns when |difference| exceeds threshold
func NewCashoutAuditor(threshold decimal.Decimal) *CashoutAuditor {
	return &CashoutAuditor{
		threshold: threshold,
		logger:    util.GetLogger(),
		seenIDs:   make(map[string]struct{}),
		outcomes:  make(map[string]int),
	}
}

// HandleCashDrawerReconciled records one reconciliation
func (a *CashoutAuditor) HandleCashDrawerReconciled(ctx context.Context, event *models.CashDrawerReconciledEvent) error {
	_, span := util.StartSpan(ctx, "CashoutAuditor.HandleCashDrawerReconciled")
	defer span.End()

	outcome := CashoutBalanced
	switch event.Difference.Sign() {
	case 1:
		outcome = CashoutOver
	case -1:
		outcome = CashoutShort
	}

	a.mu.Lock()
	if event.EventID != "" {
		if _, ok := a.seenIDs[event.EventID]; ok {
			a.mu.Unlock()
			return nil
		}
		a.seenIDs[event.EventID] = struct{}{}
	}
	a.outcomes[outcome]++
	a.mu.Unlock()

	util.CashoutAuditsTotal.WithLabelValues(outcome).Inc()

	fields := []zap.Field{
		zap.String("event_id", event.EventID),
		zap.String("user", event.User),
		zap.String("expected", event.Expected.String()),
		zap.String("counted", event.Counted.String()),
		zap.String("difference", event.Difference.String()),
		zap.String("outcome", outcome),
	}
	if event.Difference.Abs().GreaterThan(a.threshold) {
		a.logger.Warn("Cash drawer variance over threshold", fields...)
		return nil
	}
	a.logger.Info("Cash drawer reconciled", fields...)
	return nil
}

// Count returns how many reconciliations ended with the given outcome
func (a *CashoutAuditor) Count(outcome string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcomes[outcome]
}
