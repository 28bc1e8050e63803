package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleRecorded         = "SALE_RECORDED"
	EventTypeCashDrawerReconciled = "CASH_DRAWER_RECONCILED"
	EventTypeProductChanged       = "PRODUCT_CHANGED"
	EventTypeProductDeleted       = "PRODUCT_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleRecordedEvent published when a sale is committed
type SaleRecordedEvent struct {
	BaseEvent
	SaleID   string          `json:"sale_id"`
	User     string          `json:"user"`
	Method   PaymentMethod   `json:"method"`
	Total    decimal.Decimal `json:"total"`
	Items    []SaleItemData  `json:"items"`
	Customer string          `json:"customer,omitempty"`
}

// CashDrawerReconciledEvent published after a cashout
type CashDrawerReconciledEvent struct {
	BaseEvent
	Expected   decimal.Decimal `json:"expected"`
	Counted    decimal.Decimal `json:"counted"`
	Difference decimal.Decimal `json:"difference"`
	User       string          `json:"user"`
}

// ProductChangedEvent published when a product is created or updated
type ProductChangedEvent struct {
	BaseEvent
	Product Product `json:"product"`
}

// ProductDeletedEvent published when a product is removed from the catalog
type ProductDeletedEvent struct {
	BaseEvent
	ProductID int64 `json:"product_id"`
}

// SaleItemData represents a sold line in events
type SaleItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`

	// StockAfter is the product stock once the sale was committed
	StockAfter *decimal.Decimal `json:"stock_after,omitempty"`
}
