package service

import (
	"context"
	"fmt"
	"strings"

	"bakery-pos/internal/models"
	"bakery-pos/internal/ticket"
	"bakery-pos/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutRequest is the payment entered for the session ticket
type CheckoutRequest struct {
	SessionID      string
	Method         models.PaymentMethod
	AmountReceived decimal.Decimal
	Customer       string
	IdempotencyKey string
}

// CheckoutResult is a recorded sale plus the change owed for cash payments
type CheckoutResult struct {
	Sale   *models.SaleRecord `json:"sale"`
	Change decimal.Decimal    `json:"change"`
}

// PaymentService takes payment for a session ticket and records the sale
type PaymentService struct {
	sessions *SessionService
	recorder *SaleRecorder
	logger   *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(sessions *SessionService, recorder *SaleRecorder) *PaymentService {
	return &PaymentService{
		sessions: sessions,
		recorder: recorder,
		logger:   util.GetLogger(),
	}
}

// Checkout records the session ticket as a sale. The ticket is cleared only
// when the sale was recorded; any failure leaves it untouched.
func (ps *PaymentService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Checkout")
	defer span.End()

	session, err := ps.sessions.Session(req.SessionID)
	if err != nil {
		return nil, err
	}

	var snap ticket.Snapshot
	if err := ps.sessions.WithTicket(req.SessionID, func(t *ticket.Ticket) error {
		snap = t.Snapshot()
		return nil
	}); err != nil {
		return nil, err
	}

	change, err := validatePayment(req, snap)
	if err != nil {
		return nil, err
	}

	ps.logger.Info("Processing payment",
		zap.String("session_id", req.SessionID),
		zap.String("method", string(req.Method)),
		zap.String("total", snap.Total.String()))

	sale, err := ps.recorder.Finalize(ctx, FinalizeRequest{
		Items:          snap.Items,
		Total:          snap.Total,
		Method:         req.Method,
		User:           session.Username,
		Customer:       strings.TrimSpace(req.Customer),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		ps.logger.Warn("Payment not recorded",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		return nil, err
	}

	if err := ps.sessions.WithTicket(req.SessionID, func(t *ticket.Ticket) error {
		t.Clear()
		return nil
	}); err != nil {
		ps.logger.Warn("Sale recorded but ticket could not be cleared",
			zap.String("sale_id", sale.ID),
			zap.Error(err))
	}

	return &CheckoutResult{Sale: sale, Change: change}, nil
}

// validatePayment checks the payment against the ticket and returns the change due
func validatePayment(req CheckoutRequest, snap ticket.Snapshot) (decimal.Decimal, error) {
	if len(snap.Items) == 0 {
		return decimal.Zero, models.ErrEmptyTicket
	}

	total := models.RoundMoney(snap.Total)
	switch req.Method {
	case models.PaymentMethodCash:
		if req.AmountReceived.LessThan(total) {
			return decimal.Zero, fmt.Errorf("received %s for %s: %w",
				req.AmountReceived, total, models.ErrInsufficientPayment)
		}
		return decimal.Max(decimal.Zero, req.AmountReceived.Sub(total)), nil
	case models.PaymentMethodStoreCredit:
		if strings.TrimSpace(req.Customer) == "" {
			return decimal.Zero, models.ErrCustomerRequired
		}
	case models.PaymentMethodCard, models.PaymentMethodMobileWallet:
	default:
		return decimal.Zero, fmt.Errorf("%q: %w", req.Method, models.ErrInvalidPaymentMethod)
	}
	return decimal.Zero, nil
}
