package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bakery-pos/internal/models"
	"bakery-pos/internal/store"
	"bakery-pos/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultDenominations are the bills and coins accepted by CountDenominations
var DefaultDenominations = []int64{2000, 1000, 500, 200, 100, 50, 20, 10}

// CashDrawer is the ledger of cash taken since the last reconciliation
type CashDrawer struct {
	repo          store.SaleRepository
	publisher     EventPublisher
	threshold     decimal.Decimal
	denominations map[string]decimal.Decimal
	logger        *zap.Logger
	now           func() time.Time

	// commitLock is held while reading and purging so no sale lands in between
	commitLock sync.Locker
}

// NewCashDrawer creates a cash drawer. Differences larger than threshold in
// either direction are flagged as a large variance. commitLock should be the
// sale recorder's CommitLock; nil uses a private mutex.
func NewCashDrawer(repo store.SaleRepository, publisher EventPublisher, threshold decimal.Decimal, commitLock sync.Locker) *CashDrawer {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if commitLock == nil {
		commitLock = &sync.Mutex{}
	}
	denominations := make(map[string]decimal.Decimal, len(DefaultDenominations))
	for _, d := range DefaultDenominations {
		v := decimal.NewFromInt(d)
		denominations[v.String()] = v
	}
	return &CashDrawer{
		repo:          repo,
		publisher:     publisher,
		threshold:     threshold,
		denominations: denominations,
		logger:        util.GetLogger(),
		now:           time.Now,
		commitLock:    commitLock,
	}
}

// ExpectedCash sums the finished cash sales in the working set
func (cd *CashDrawer) ExpectedCash(ctx context.Context) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "CashDrawer.ExpectedCash")
	defer span.End()

	sales, err := cd.repo.ListSales(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list sales: %w", err)
	}

	expected := decimal.Zero
	for _, sale := range sales {
		if sale.Method == models.PaymentMethodCash && sale.IsFinished {
			expected = expected.Add(sale.Total)
		}
	}
	return expected, nil
}

// Reconcile closes the drawer against the counted cash. Cash sales are purged
// from the working set and the expected total starts again from zero.
func (cd *CashDrawer) Reconcile(ctx context.Context, counted decimal.Decimal, user string) (*models.CashoutReport, error) {
	ctx, span := util.StartSpan(ctx, "CashDrawer.Reconcile")
	defer span.End()

	if counted.IsNegative() {
		return nil, fmt.Errorf("counted cash %s: %w", counted, models.ErrInvalidAmount)
	}

	cd.commitLock.Lock()
	expected, err := cd.ExpectedCash(ctx)
	if err != nil {
		cd.commitLock.Unlock()
		return nil, err
	}
	purged, err := cd.repo.PurgeSales(ctx, models.PaymentMethodCash)
	cd.commitLock.Unlock()
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to purge cash sales: %w", err)
	}

	difference := counted.Sub(expected)
	report := &models.CashoutReport{
		Expected:      expected,
		Counted:       counted,
		Difference:    difference,
		LargeVariance: difference.Abs().GreaterThan(cd.threshold),
		PurgedSales:   purged,
		ReconciledBy:  user,
		ReconciledAt:  cd.now(),
	}

	util.CashoutsTotal.Inc()
	diff, _ := difference.Float64()
	util.CashoutDifference.Observe(diff)

	fields := []zap.Field{
		zap.String("user", user),
		zap.String("expected", expected.String()),
		zap.String("counted", counted.String()),
		zap.String("difference", difference.String()),
		zap.Int("purged_sales", purged),
	}
	if report.LargeVariance {
		cd.logger.Warn("Large cash drawer variance", fields...)
	} else {
		cd.logger.Info("Cash drawer reconciled", fields...)
	}

	event := &models.CashDrawerReconciledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCashDrawerReconciled,
			Timestamp: report.ReconciledAt,
		},
		Expected:   expected,
		Counted:    counted,
		Difference: difference,
		User:       user,
	}
	if err := cd.publisher.PublishCashDrawerReconciled(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeCashDrawerReconciled).Inc()
		cd.logger.Error("Failed to publish CashDrawerReconciled event", zap.Error(err))
	}

	return report, nil
}

// ReconcileWithDifference accepts a difference computed by the client. The
// ledger recomputes it; a mismatch is logged and the ledger value wins.
func (cd *CashDrawer) ReconcileWithDifference(ctx context.Context, difference, counted decimal.Decimal, user string) (*models.CashoutReport, error) {
	report, err := cd.Reconcile(ctx, counted, user)
	if err != nil {
		return nil, err
	}
	if !report.Difference.Equal(difference) {
		cd.logger.Warn("Client cash difference disagrees with ledger",
			zap.String("client_difference", difference.String()),
			zap.String("ledger_difference", report.Difference.String()))
	}
	return report, nil
}

// CountDenominations totals a count of bills keyed by face value
func (cd *CashDrawer) CountDenominations(counts map[string]int) (decimal.Decimal, error) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := decimal.Zero
	for _, k := range keys {
		n := counts[k]
		if n < 0 {
			return decimal.Zero, fmt.Errorf("count for %s is negative: %w", k, models.ErrInvalidAmount)
		}
		face, err := decimal.NewFromString(k)
		if err != nil {
			return decimal.Zero, fmt.Errorf("denomination %q: %w", k, models.ErrInvalidAmount)
		}
		value, ok := cd.denominations[face.String()]
		if !ok {
			return decimal.Zero, fmt.Errorf("unknown denomination %s: %w", k, models.ErrInvalidAmount)
		}
		total = total.Add(value.Mul(decimal.NewFromInt(int64(n))))
	}
	return total, nil
}
