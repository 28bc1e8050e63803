package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"bakery-pos/internal/models"
	"bakery-pos/internal/service"
	"bakery-pos/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Services are the application services the HTTP layer drives
type Services struct {
	Sessions   *service.SessionService
	Tickets    *service.TicketService
	Payments   *service.PaymentService
	CashDrawer *service.CashDrawer
	Catalog    *service.CatalogService
	Reports    *service.ReportService

	// LowStockThreshold is used when a low stock report names no threshold
	LowStockThreshold decimal.Decimal

	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services) *Handler {
	return &Handler{
		svc:    svc,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", h.login)

	authed := v1.Group("")
	authed.Use(h.authMiddleware())
	{
		authed.POST("/auth/logout", h.logout)
		authed.GET("/categories", h.listCategories)
		authed.GET("/products", h.listProducts)
	}

	pos := authed.Group("")
	pos.Use(requireRole(models.RoleEmployee))
	{
		pos.GET("/ticket", h.viewTicket)
		pos.DELETE("/ticket", h.clearTicket)
		pos.POST("/ticket/items", h.addUnit)
		pos.POST("/ticket/items/weighed", h.addWeighed)
		pos.PUT("/ticket/items/:id", h.setQuantity)
		pos.DELETE("/ticket/items/:id", h.removeItem)
		pos.PUT("/ticket/discount", h.applyDiscount)
		pos.POST("/ticket/checkout", h.checkout)

		pos.GET("/cashdrawer", h.expectedCash)
		pos.POST("/cashdrawer/reconcile", h.reconcile)

		pos.GET("/sales", h.salesHistory)
	}

	admin := authed.Group("/admin")
	admin.Use(requireRole(models.RoleAdmin))
	{
		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:id", h.updateProduct)
		admin.PATCH("/products/:id", h.patchProduct)
		admin.DELETE("/products/:id", h.deleteProduct)
		admin.GET("/products/low-stock", h.lowStock)

		admin.POST("/categories", h.createCategory)
		admin.PUT("/categories/:id", h.updateCategory)
		admin.DELETE("/categories/:id", h.deleteCategory)

		admin.GET("/sales", h.allSales)
		admin.GET("/sales/summary", h.salesSummary)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.svc.Ready != nil {
		if err := h.svc.Ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"details": err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger writes one structured line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid id",
			"code":  "BAD_REQUEST",
		})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"code":    "BAD_REQUEST",
		"details": err.Error(),
	})
}
