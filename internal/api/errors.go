package api

import (
	"errors"
	"net/http"

	"bakery-pos/internal/auth"
	"bakery-pos/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{models.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{models.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
	{models.ErrCategoryInUse, http.StatusConflict, "CATEGORY_IN_USE"},
	{models.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{models.ErrEmptyName, http.StatusBadRequest, "EMPTY_NAME"},
	{models.ErrCustomerRequired, http.StatusBadRequest, "CUSTOMER_REQUIRED"},
	{models.ErrInsufficientPayment, http.StatusBadRequest, "INSUFFICIENT_PAYMENT"},
	{models.ErrEmptyTicket, http.StatusBadRequest, "EMPTY_TICKET"},
	{models.ErrInvalidPaymentMethod, http.StatusBadRequest, "INVALID_PAYMENT_METHOD"},
	{models.ErrWeightRequired, http.StatusBadRequest, "WEIGHT_REQUIRED"},
	{models.ErrNotWeightProduct, http.StatusBadRequest, "NOT_WEIGHT_PRODUCT"},
	{models.ErrTransaction, http.StatusServiceUnavailable, "TRANSACTION"},
	{models.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{models.ErrSessionNotFound, http.StatusUnauthorized, "UNAUTHORIZED"},
	{auth.ErrExpiredToken, http.StatusUnauthorized, "UNAUTHORIZED"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED"},
	{models.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
}

// writeError maps a domain error to its status and JSON body
func (h *Handler) writeError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		body := gin.H{
			"error": err.Error(),
			"code":  m.code,
		}
		if m.status == http.StatusServiceUnavailable {
			body["retryable"] = true
		}
		c.AbortWithStatusJSON(m.status, body)
		return
	}

	h.logger.Error("Unhandled error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": "internal error",
		"code":  "INTERNAL",
	})
}
