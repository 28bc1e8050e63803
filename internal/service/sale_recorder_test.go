package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bakery-pos/internal/models"
	"bakery-pos/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redisclient.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redisclient.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestFinalize_DecrementsStock(t *testing.T) {
	repo := newTestStore(t)
	recorder := NewSaleRecorder(repo, NewInventoryClient(repo, nil), nil, NoFaults{})

	sale, err := recorder.Finalize(context.Background(), FinalizeRequest{
		Items:  []models.TicketItem{item(t, repo, 101, "2")},
		Total:  d("3.00"),
		Method: models.PaymentMethodCard,
		User:   "maria",
	})

	require.NoError(t, err)
	assert.Regexp(t, `^SALE-1-\d+$`, sale.ID)
	assert.True(t, sale.IsFinished)
	assert.False(t, sale.Timestamp.IsZero())
	assert.True(t, mustProduct(t, repo, 101).CurrentStock.Equal(d("48")))

	stored, err := repo.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "maria", stored.User)
	assert.Len(t, stored.Items, 1)
}

func TestFinalize_RoundsTotalToCents(t *testing.T) {
	repo := newTestStore(t)
	recorder := NewSaleRecorder(repo, NewInventoryClient(repo, nil), nil, NoFaults{})
	ctx := context.Background()

	sale, err := recorder.Finalize(ctx, FinalizeRequest{
		Items:  []models.TicketItem{item(t, repo, 103, "0.333")},
		Total:  d("1.1655"),
		Method: models.PaymentMethodCash,
		User:   "maria",
	})

	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(d("1.17")), "total %s", sale.Total)

	stored, err := repo.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(d("1.17")))

	drawer := NewCashDrawer(repo, nil, d("500"), recorder.CommitLock())
	expected, err := drawer.ExpectedCash(ctx)
	require.NoError(t, err)
	assert.True(t, expected.Equal(d("1.17")), "expected cash %s", expected)
}

func TestFinalize_ClampsStockAtZero(t *testing.T) {
	repo := newTestStore(t)
	pub := &recordingPublisher{}
	recorder := NewSaleRecorder(repo, NewInventoryClient(repo, nil), pub, NoFaults{})

	_, err := recorder.Finalize(context.Background(), FinalizeRequest{
		Items:  []models.TicketItem{item(t, repo, 203, "10")},
		Total:  d("11.00"),
		Method: models.PaymentMethodCash,
		User:   "maria",
	})

	require.NoError(t, err)
	assert.True(t, mustProduct(t, repo, 203).CurrentStock.IsZero())

	require.Len(t, pub.sales, 1)
	require.Len(t, pub.sales[0].Items, 1)
	require.NotNil(t, pub.sales[0].Items[0].StockAfter)
	assert.True(t, pub.sales[0].Items[0].StockAfter.IsZero())
}

func TestFinalize_TransactionFaultCommitsNothing(t *testing.T) {
	repo := newTestStore(t)
	pub := &recordingPublisher{}
	recorder := NewSaleRecorder(repo, NewInventoryClient(repo, nil), pub, AlwaysFail{})

	sale, err := recorder.Finalize(context.Background(), FinalizeRequest{
		Items:  []models.TicketItem{item(t, repo, 101, "2")},
		Total:  d("3.00"),
		Method: models.PaymentMethodCash,
		User:   "maria",
	})

	assert.ErrorIs(t, err, models.ErrTransaction)
	assert.Nil(t, sale)
	assert.True(t, mustProduct(t, repo, 101).CurrentStock.Equal(d("50")))

	sales, err := repo.ListSales(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.Empty(t, pub.sales)
}

func TestFinalize_Validation(t *testing.T) {
	repo := newTestStore(t)
	recorder := NewSaleRecorder(repo, nil, nil, NoFaults{})
	items := []models.TicketItem{item(t, repo, 101, "1")}

	tests := []struct {
		name string
		req  FinalizeRequest
		want error
	}{
		{"store credit without customer", FinalizeRequest{Items: items, Method: models.PaymentMethodStoreCredit, Customer: "  "}, models.ErrCustomerRequired},
		{"unknown method", FinalizeRequest{Items: items, Method: "BARTER"}, models.ErrInvalidPaymentMethod},
		{"no items", FinalizeRequest{Method: models.PaymentMethodCard}, models.ErrEmptyTicket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := recorder.Finalize(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFinalize_StoreCreditWithCustomer(t *testing.T) {
	repo := newTestStore(t)
	recorder := NewSaleRecorder(repo, nil, nil, NoFaults{})

	sale, err := recorder.Finalize(context.Background(), FinalizeRequest{
		Items:    []models.TicketItem{item(t, repo, 102, "1")},
		Total:    d("2.00"),
		Method:   models.PaymentMethodStoreCredit,
		User:     "maria",
		Customer: "Doña Rosa",
	})

	require.NoError(t, err)
	assert.Equal(t, "Doña Rosa", sale.Customer)
}

func TestFinalize_ZeroTotalAllowed(t *testing.T) {
	repo := newTestStore(t)
	recorder := NewSaleRecorder(repo, nil, nil, NoFaults{})

	_, err := recorder.Finalize(context.Background(), FinalizeRequest{
		Items:  []models.TicketItem{item(t, repo, 102, "1")},
		Total:  d("0"),
		Method: models.PaymentMethodCard,
	})

	assert.NoError(t, err)
}

func TestFinalize_CancelledDuringDelay(t *testing.T) {
	repo := newTestStore(t)
	recorder := NewSaleRecorder(repo, nil, nil, NewRandomFaultPolicy(0, time.Second, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := recorder.Finalize(ctx, FinalizeRequest{
		Items:  []models.TicketItem{item(t, repo, 101, "1")},
		Method: models.PaymentMethodCard,
	})

	assert.True(t, errors.Is(err, context.Canceled))
	sales, _ := repo.ListSales(context.Background())
	assert.Empty(t, sales)
}

func TestFinalize_ConcurrentCommitsKeepOrderAndStock(t *testing.T) {
	repo := newTestStore(t)
	recorder := NewSaleRecorder(repo, NewInventoryClient(repo, nil), nil, NoFaults{})

	const workers = 30
	line := item(t, repo, 202, "1")
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := recorder.Finalize(context.Background(), FinalizeRequest{
				Items:  []models.TicketItem{line},
				Total:  d("1.00"),
				Method: models.PaymentMethodCard,
				User:   "maria",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, mustProduct(t, repo, 202).CurrentStock.Equal(d("70")))

	sales, err := repo.ListSales(context.Background())
	require.NoError(t, err)
	require.Len(t, sales, workers)
	for i := 1; i < len(sales); i++ {
		assert.Greater(t, sales[i].Seq, sales[i-1].Seq)
		assert.False(t, sales[i].Timestamp.Before(sales[i-1].Timestamp))
	}
}

func TestFinalize_MirrorsStockToRedis(t *testing.T) {
	repo := newTestStore(t)
	mirror := setupTestRedis(t)
	inventory := NewInventoryClient(repo, mirror)
	require.NoError(t, inventory.SyncInventoryToRedis(context.Background()))

	recorder := NewSaleRecorder(repo, inventory, nil, NoFaults{})
	_, err := recorder.Finalize(context.Background(), FinalizeRequest{
		Items:  []models.TicketItem{item(t, repo, 103, "0.75")},
		Total:  d("2.625"),
		Method: models.PaymentMethodCard,
	})
	require.NoError(t, err)

	stock, ok, err := mirror.GetStock(context.Background(), 103)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, stock.Equal(d("14.25")))
}

func TestFinalize_IdempotentRetry(t *testing.T) {
	repo := newTestStore(t)
	keys := setupTestRedis(t)
	recorder := NewSaleRecorder(repo, NewInventoryClient(repo, nil), nil, NoFaults{})
	recorder.EnableIdempotency(keys, time.Minute)

	req := FinalizeRequest{
		Items:          []models.TicketItem{item(t, repo, 101, "2")},
		Total:          d("3.00"),
		Method:         models.PaymentMethodCash,
		User:           "maria",
		IdempotencyKey: "till-1-0001",
	}

	first, err := recorder.Finalize(context.Background(), req)
	require.NoError(t, err)
	second, err := recorder.Finalize(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, mustProduct(t, repo, 101).CurrentStock.Equal(d("48")))
	sales, _ := repo.ListSales(context.Background())
	assert.Len(t, sales, 1)
}

func TestFinalize_FaultReleasesIdempotencyKey(t *testing.T) {
	repo := newTestStore(t)
	keys := setupTestRedis(t)
	failing := NewSaleRecorder(repo, nil, nil, AlwaysFail{})
	failing.EnableIdempotency(keys, time.Minute)

	req := FinalizeRequest{
		Items:          []models.TicketItem{item(t, repo, 101, "1")},
		Total:          d("1.50"),
		Method:         models.PaymentMethodCard,
		IdempotencyKey: "till-1-0002",
	}

	_, err := failing.Finalize(context.Background(), req)
	require.ErrorIs(t, err, models.ErrTransaction)

	recorder := NewSaleRecorder(repo, nil, nil, NoFaults{})
	recorder.EnableIdempotency(keys, time.Minute)
	sale, err := recorder.Finalize(context.Background(), req)

	require.NoError(t, err)
	assert.NotEmpty(t, sale.ID)
}

func TestFinalize_InFlightKeyIsRetryable(t *testing.T) {
	repo := newTestStore(t)
	keys := setupTestRedis(t)
	claimed, _, err := keys.ClaimIdempotencyKey(context.Background(), "busy", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	recorder := NewSaleRecorder(repo, nil, nil, NoFaults{})
	recorder.EnableIdempotency(keys, time.Minute)

	_, err = recorder.Finalize(context.Background(), FinalizeRequest{
		Items:          []models.TicketItem{item(t, repo, 101, "1")},
		Method:         models.PaymentMethodCard,
		IdempotencyKey: "busy",
	})

	assert.ErrorIs(t, err, models.ErrTransaction)
}

func TestFinalize_PublishFailureDoesNotFailSale(t *testing.T) {
	repo := newTestStore(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	recorder := NewSaleRecorder(repo, nil, pub, NoFaults{})

	sale, err := recorder.Finalize(context.Background(), FinalizeRequest{
		Items:  []models.TicketItem{item(t, repo, 101, "1")},
		Total:  d("1.50"),
		Method: models.PaymentMethodCard,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, sale.ID)
	assert.Len(t, pub.sales, 1)
}
