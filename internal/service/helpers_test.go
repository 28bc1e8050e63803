package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"bakery-pos/internal/auth"
	"bakery-pos/internal/models"
	"bakery-pos/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	catalog, err := store.LoadCatalog("")
	require.NoError(t, err)
	return store.NewMemoryStore(catalog)
}

func mustProduct(t *testing.T, repo store.CatalogRepository, id int64) models.Product {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return *p
}

func item(t *testing.T, repo store.CatalogRepository, id int64, qty string) models.TicketItem {
	t.Helper()
	return models.TicketItem{Product: mustProduct(t, repo, id), Quantity: d(qty)}
}

func newTestSessions() *SessionService {
	return NewSessionService(auth.NewTokenService("test-secret", time.Hour))
}

// recordingPublisher keeps every event it is given
type recordingPublisher struct {
	mu              sync.Mutex
	sales           []*models.SaleRecordedEvent
	cashouts        []*models.CashDrawerReconciledEvent
	productsChanged []*models.ProductChangedEvent
	productsDeleted []*models.ProductDeletedEvent
	err             error
}

func (p *recordingPublisher) PublishSaleRecorded(_ context.Context, e *models.SaleRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, e)
	return p.err
}

func (p *recordingPublisher) PublishCashDrawerReconciled(_ context.Context, e *models.CashDrawerReconciledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cashouts = append(p.cashouts, e)
	return p.err
}

func (p *recordingPublisher) PublishProductChanged(_ context.Context, e *models.ProductChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.productsChanged = append(p.productsChanged, e)
	return p.err
}

func (p *recordingPublisher) PublishProductDeleted(_ context.Context, e *models.ProductDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.productsDeleted = append(p.productsDeleted, e)
	return p.err
}
