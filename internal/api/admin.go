package api

import (
	"fmt"
	"net/http"

	"bakery-pos/internal/models"
	"bakery-pos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) createProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		badRequest(c, err)
		return
	}

	created, err := h.svc.Catalog.CreateProduct(c.Request.Context(), product)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		badRequest(c, err)
		return
	}
	product.ID = id

	updated, err := h.svc.Catalog.UpdateProduct(c.Request.Context(), product)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) patchProduct(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var patch service.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	updated, err := h.svc.Catalog.PatchProduct(c.Request.Context(), id, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// lowStock lists products at or below ?threshold=, defaulting to the configured one
func (h *Handler) lowStock(c *gin.Context) {
	threshold := h.svc.LowStockThreshold
	if raw := c.Query("threshold"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			badRequest(c, fmt.Errorf("threshold: %w", err))
			return
		}
		threshold = v
	}

	products, err := h.svc.Reports.LowStock(c.Request.Context(), threshold)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	category, err := h.svc.Catalog.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *Handler) updateCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	category, err := h.svc.Catalog.UpdateCategory(c.Request.Context(), id, req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) deleteCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Catalog.DeleteCategory(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) allSales(c *gin.Context) {
	sales, err := h.svc.Reports.AllSales(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (h *Handler) salesSummary(c *gin.Context) {
	summary, err := h.svc.Reports.Summary(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
