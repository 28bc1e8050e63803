package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"bakery-pos/internal/auth"
	"bakery-pos/internal/models"
	"bakery-pos/internal/service"
	"bakery-pos/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
}

func newTestServer(t *testing.T, faults service.FaultPolicy) *testServer {
	t.Helper()

	catalog, err := store.LoadCatalog("")
	require.NoError(t, err)
	repo := store.NewMemoryStore(catalog)

	sessions := service.NewSessionService(auth.NewTokenService("test-secret", time.Hour))
	inventory := service.NewInventoryClient(repo, nil)
	recorder := service.NewSaleRecorder(repo, inventory, nil, faults)

	handler := NewHandler(Services{
		Sessions:          sessions,
		Tickets:           service.NewTicketService(sessions, inventory),
		Payments:          service.NewPaymentService(sessions, recorder),
		CashDrawer:        service.NewCashDrawer(repo, nil, decimal.NewFromInt(500), recorder.CommitLock()),
		Catalog:           service.NewCatalogService(repo, inventory, nil),
		Reports:           service.NewReportService(repo),
		LowStockThreshold: decimal.NewFromInt(5),
	})

	router := gin.New()
	handler.SetupRoutes(router)
	return &testServer{router: router}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": "x"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp service.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, service.NoFaults{})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", "", nil).Code)
}

func TestReadyReportsBackendFailure(t *testing.T) {
	handler := NewHandler(Services{Ready: func(context.Context) error { return errors.New("redis down") }})
	router := gin.New()
	handler.SetupRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, service.NoFaults{})

	w := s.do(t, http.MethodGet, "/api/v1/ticket", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/ticket", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "maria"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, w).Code)

	token := s.login(t, "maria")
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/categories", token, nil).Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/categories", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleGate(t *testing.T) {
	s := newTestServer(t, service.NoFaults{})
	employee := s.login(t, "maria")
	admin := s.login(t, "Admin")

	w := s.do(t, http.MethodPost, "/api/v1/admin/categories", employee, gin.H{"name": "Seasonal"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, w).Code)

	w = s.do(t, http.MethodGet, "/api/v1/ticket", admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/products", admin, nil).Code)
}

func TestSaleAndCashoutFlow(t *testing.T) {
	s := newTestServer(t, service.NoFaults{})
	token := s.login(t, "maria")

	w := s.do(t, http.MethodPost, "/api/v1/ticket/items", token, gin.H{"product_id": 101, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/ticket/items/weighed", token, gin.H{"product_id": 103, "weight": 0.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var snap struct {
		State string          `json:"state"`
		Total decimal.Decimal `json:"total"`
	}
	w = s.do(t, http.MethodGet, "/api/v1/ticket", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "BUILDING", snap.State)
	assert.True(t, snap.Total.Equal(decimal.RequireFromString("4.75")), snap.Total.String())

	w = s.do(t, http.MethodPost, "/api/v1/ticket/checkout", token,
		gin.H{"method": "CASH", "amount_received": 10}, "Idempotency-Key", "till-1-0001")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result struct {
		Sale   models.SaleRecord `json:"sale"`
		Change decimal.Decimal   `json:"change"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Change.Equal(decimal.RequireFromString("5.25")))
	assert.True(t, result.Sale.Total.Equal(decimal.RequireFromString("4.75")))

	w = s.do(t, http.MethodGet, "/api/v1/ticket", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "EMPTY", snap.State)

	var sales []models.SaleRecord
	w = s.do(t, http.MethodGet, "/api/v1/sales", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sales))
	assert.Len(t, sales, 1)

	var expected struct {
		Expected decimal.Decimal `json:"expected"`
	}
	w = s.do(t, http.MethodGet, "/api/v1/cashdrawer", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &expected))
	assert.True(t, expected.Expected.Equal(decimal.RequireFromString("4.75")))

	var report models.CashoutReport
	w = s.do(t, http.MethodPost, "/api/v1/cashdrawer/reconcile", token, gin.H{"counted_total": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Difference.Equal(decimal.RequireFromString("-0.75")))
	assert.Equal(t, 1, report.PurgedSales)
	assert.Equal(t, "maria", report.ReconciledBy)

	w = s.do(t, http.MethodGet, "/api/v1/cashdrawer", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &expected))
	assert.True(t, expected.Expected.IsZero())
}

func TestReconcileByDenominations(t *testing.T) {
	s := newTestServer(t, service.NoFaults{})
	token := s.login(t, "maria")

	var report models.CashoutReport
	w := s.do(t, http.MethodPost, "/api/v1/cashdrawer/reconcile", token,
		gin.H{"denominations": map[string]int{"100": 2, "20": 1}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Counted.Equal(decimal.NewFromInt(220)))

	w = s.do(t, http.MethodPost, "/api/v1/cashdrawer/reconcile", token,
		gin.H{"denominations": map[string]int{"3": 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_AMOUNT", decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/cashdrawer/reconcile", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, service.NoFaults{})
	token := s.login(t, "maria")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"out of stock", http.MethodPost, "/api/v1/ticket/items", gin.H{"product_id": 201}, http.StatusConflict, "OUT_OF_STOCK"},
		{"unknown product", http.MethodPost, "/api/v1/ticket/items", gin.H{"product_id": 999}, http.StatusNotFound, "NOT_FOUND"},
		{"weight required", http.MethodPost, "/api/v1/ticket/items", gin.H{"product_id": 103}, http.StatusBadRequest, "WEIGHT_REQUIRED"},
		{"not weighed", http.MethodPost, "/api/v1/ticket/items/weighed", gin.H{"product_id": 101, "weight": 1}, http.StatusBadRequest, "NOT_WEIGHT_PRODUCT"},
		{"negative discount", http.MethodPut, "/api/v1/ticket/discount", gin.H{"amount": -1}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"empty ticket", http.MethodPost, "/api/v1/ticket/checkout", gin.H{"method": "CASH", "amount_received": 5}, http.StatusBadRequest, "EMPTY_TICKET"},
		{"bad id", http.MethodDelete, "/api/v1/ticket/items/abc", nil, http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestCheckoutValidation(t *testing.T) {
	s := newTestServer(t, service.NoFaults{})
	token := s.login(t, "maria")
	require.Equal(t, http.StatusOK,
		s.do(t, http.MethodPost, "/api/v1/ticket/items", token, gin.H{"product_id": 301}).Code)

	w := s.do(t, http.MethodPost, "/api/v1/ticket/checkout", token, gin.H{"method": "CASH", "amount_received": 10})
	assert.Equal(t, "INSUFFICIENT_PAYMENT", decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/ticket/checkout", token, gin.H{"method": "STORE_CREDIT"})
	assert.Equal(t, "CUSTOMER_REQUIRED", decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/ticket/checkout", token, gin.H{"method": "BARTER"})
	assert.Equal(t, "INVALID_PAYMENT_METHOD", decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/ticket/checkout", token, gin.H{"method": "STORE_CREDIT", "customer": "Don Jose"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCheckoutTransactionFailure(t *testing.T) {
	s := newTestServer(t, service.AlwaysFail{})
	token := s.login(t, "maria")
	require.Equal(t, http.StatusOK,
		s.do(t, http.MethodPost, "/api/v1/ticket/items", token, gin.H{"product_id": 101}).Code)

	w := s.do(t, http.MethodPost, "/api/v1/ticket/checkout", token, gin.H{"method": "CARD"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "TRANSACTION", body.Code)
	assert.True(t, body.Retryable)

	var snap struct {
		State string `json:"state"`
	}
	w = s.do(t, http.MethodGet, "/api/v1/ticket", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "BUILDING", snap.State)
}

func TestAdminCatalog(t *testing.T) {
	s := newTestServer(t, service.NoFaults{})
	admin := s.login(t, "admin")

	var category models.Category
	w := s.do(t, http.MethodPost, "/api/v1/admin/categories", admin, gin.H{"name": "  Seasonal "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &category))
	assert.Equal(t, "Seasonal", category.Name)

	w = s.do(t, http.MethodPost, "/api/v1/admin/categories", admin, gin.H{"name": "  "})
	assert.Equal(t, "EMPTY_NAME", decodeError(t, w).Code)

	var product models.Product
	w = s.do(t, http.MethodPost, "/api/v1/admin/products", admin, gin.H{
		"name":          "Pan Dulce",
		"price":         12.5,
		"category_id":   category.ID,
		"current_stock": 4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	assert.NotZero(t, product.ID)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/categories/"+itoa(category.ID), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CATEGORY_IN_USE", decodeError(t, w).Code)

	w = s.do(t, http.MethodPatch, "/api/v1/admin/products/"+itoa(product.ID), admin, gin.H{"price": 13})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	assert.True(t, product.Price.Equal(decimal.NewFromInt(13)))
	assert.Equal(t, "Pan Dulce", product.Name)

	var low []models.Product
	w = s.do(t, http.MethodGet, "/api/v1/admin/products/low-stock", admin, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &low))
	assert.Contains(t, productIDs(low), product.ID)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/products/"+itoa(product.ID), admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/categories/"+itoa(category.ID), admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/admin/products/999", admin, gin.H{"name": "Ghost", "price": 1, "category_id": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminReports(t *testing.T) {
	s := newTestServer(t, service.NoFaults{})
	employee := s.login(t, "maria")
	admin := s.login(t, "admin")

	s.do(t, http.MethodPost, "/api/v1/ticket/items", employee, gin.H{"product_id": 401, "quantity": 2})
	require.Equal(t, http.StatusCreated,
		s.do(t, http.MethodPost, "/api/v1/ticket/checkout", employee, gin.H{"method": "CARD"}).Code)

	var summary models.SalesSummary
	w := s.do(t, http.MethodGet, "/api/v1/admin/sales/summary", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Count)
	assert.True(t, summary.Total.Equal(decimal.NewFromInt(5)))

	var sales []models.SaleRecord
	w = s.do(t, http.MethodGet, "/api/v1/admin/sales", admin, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sales))
	assert.Len(t, sales, 1)

	var products []models.Product
	w = s.do(t, http.MethodGet, "/api/v1/products?category_id=4", admin, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	assert.Len(t, products, 3)

	w = s.do(t, http.MethodGet, "/api/v1/products?category_id=x", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func productIDs(products []models.Product) []int64 {
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}
