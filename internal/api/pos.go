package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bakery-pos/internal/models"
	"bakery-pos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type addUnitRequest struct {
	ProductID int64            `json:"product_id" binding:"required"`
	Quantity  *decimal.Decimal `json:"quantity"`
}

type addWeighedRequest struct {
	ProductID int64            `json:"product_id" binding:"required"`
	Weight    *decimal.Decimal `json:"weight"`
}

type quantityRequest struct {
	Quantity *decimal.Decimal `json:"quantity"`
}

type discountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type checkoutRequest struct {
	Method         models.PaymentMethod `json:"method" binding:"required"`
	AmountReceived decimal.Decimal      `json:"amount_received"`
	Customer       string               `json:"customer"`
	IdempotencyKey string               `json:"idempotency_key"`
}

type reconcileRequest struct {
	CountedTotal  *decimal.Decimal `json:"counted_total"`
	Denominations map[string]int   `json:"denominations"`
	Difference    *decimal.Decimal `json:"difference"`
}

var errMissingAmount = errors.New("amount is required")

// login handles session creation
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// logout handles session close
func (h *Handler) logout(c *gin.Context) {
	if err := h.svc.Sessions.Logout(c.Request.Context(), currentSession(c).ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// listCategories handles GET /categories
func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.svc.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// listProducts handles GET /products with optional category_id and q filters
func (h *Handler) listProducts(c *gin.Context) {
	var filter service.ProductFilter
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, fmt.Errorf("category_id: %w", err))
			return
		}
		filter.CategoryID = id
	}
	filter.Query = c.Query("q")

	products, err := h.svc.Reports.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) viewTicket(c *gin.Context) {
	snap, err := h.svc.Tickets.View(currentSession(c).ID)
	h.respondTicket(c, snap, err)
}

func (h *Handler) clearTicket(c *gin.Context) {
	snap, err := h.svc.Tickets.Clear(currentSession(c).ID)
	h.respondTicket(c, snap, err)
}

func (h *Handler) addUnit(c *gin.Context) {
	var req addUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	qty := decimal.NewFromInt(1)
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	snap, err := h.svc.Tickets.AddUnit(c.Request.Context(), currentSession(c).ID, req.ProductID, qty)
	h.respondTicket(c, snap, err)
}

func (h *Handler) addWeighed(c *gin.Context) {
	var req addWeighedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Weight == nil {
		badRequest(c, fmt.Errorf("weight: %w", errMissingAmount))
		return
	}

	snap, err := h.svc.Tickets.AddWeighed(c.Request.Context(), currentSession(c).ID, req.ProductID, *req.Weight)
	h.respondTicket(c, snap, err)
}

func (h *Handler) setQuantity(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == nil {
		badRequest(c, fmt.Errorf("quantity: %w", errMissingAmount))
		return
	}

	snap, err := h.svc.Tickets.SetQuantity(currentSession(c).ID, id, *req.Quantity)
	h.respondTicket(c, snap, err)
}

func (h *Handler) removeItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	snap, err := h.svc.Tickets.Remove(currentSession(c).ID, id)
	h.respondTicket(c, snap, err)
}

func (h *Handler) applyDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Amount == nil {
		badRequest(c, fmt.Errorf("amount: %w", errMissingAmount))
		return
	}

	snap, err := h.svc.Tickets.ApplyDiscount(currentSession(c).ID, *req.Amount)
	h.respondTicket(c, snap, err)
}

func (h *Handler) respondTicket(c *gin.Context, snap interface{}, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// checkout records the session ticket as a sale
func (h *Handler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.svc.Payments.Checkout(c.Request.Context(), service.CheckoutRequest{
		SessionID:      currentSession(c).ID,
		Method:         req.Method,
		AmountReceived: req.AmountReceived,
		Customer:       req.Customer,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) expectedCash(c *gin.Context) {
	expected, err := h.svc.CashDrawer.ExpectedCash(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expected": expected})
}

// reconcile closes the cash drawer. The count is either a total or a
// breakdown by denomination.
func (h *Handler) reconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var counted decimal.Decimal
	switch {
	case req.CountedTotal != nil:
		counted = *req.CountedTotal
	case req.Denominations != nil:
		total, err := h.svc.CashDrawer.CountDenominations(req.Denominations)
		if err != nil {
			h.writeError(c, err)
			return
		}
		counted = total
	default:
		badRequest(c, fmt.Errorf("counted_total or denominations: %w", errMissingAmount))
		return
	}

	ctx := c.Request.Context()
	user := currentSession(c).Username

	var (
		report *models.CashoutReport
		err    error
	)
	if req.Difference != nil {
		report, err = h.svc.CashDrawer.ReconcileWithDifference(ctx, *req.Difference, counted, user)
	} else {
		report, err = h.svc.CashDrawer.Reconcile(ctx, counted, user)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// salesHistory lists the sales recorded by the current user
func (h *Handler) salesHistory(c *gin.Context) {
	sales, err := h.svc.Reports.SalesHistory(c.Request.Context(), currentSession(c).Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}
