package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID              int64           `db:"id" json:"id" yaml:"id"`
	Name            string          `db:"name" json:"name" yaml:"name"`
	Price           decimal.Decimal `db:"price" json:"price" yaml:"price"`
	CategoryID      int64           `db:"category_id" json:"category_id" yaml:"category_id"`
	ImageURL        string          `db:"image_url" json:"image_url" yaml:"image_url"`
	IsWeightProduct bool            `db:"is_weight_product" json:"is_weight_product" yaml:"is_weight_product"`
	CurrentStock    decimal.Decimal `db:"current_stock" json:"current_stock" yaml:"current_stock"`
}

// InStock reports whether the product can be added to a ticket
func (p Product) InStock() bool {
	return p.CurrentStock.IsPositive()
}

// Category groups products in the catalog
type Category struct {
	ID   int64  `db:"id" json:"id" yaml:"id"`
	Name string `db:"name" json:"name" yaml:"name"`
}

// TicketItem is a product snapshot with the quantity being sold.
// Quantity is in kilograms for weight products.
type TicketItem struct {
	Product
	Quantity decimal.Decimal `json:"quantity"`
}

// LineTotal returns price times quantity
func (i TicketItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(i.Quantity)
}

// PaymentMethod is how a sale was paid
type PaymentMethod string

// Payment methods
const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodMobileWallet PaymentMethod = "MOBILE_WALLET"
	PaymentMethodStoreCredit  PaymentMethod = "STORE_CREDIT"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobileWallet, PaymentMethodStoreCredit:
		return true
	}
	return false
}

// SaleRecord is a finalized sale. It is never mutated after creation.
type SaleRecord struct {
	ID         string          `db:"id" json:"id"`
	Seq        int64           `db:"seq" json:"-"`
	Items      []TicketItem    `db:"-" json:"items"`
	Total      decimal.Decimal `db:"total" json:"total"`
	Method     PaymentMethod   `db:"method" json:"method"`
	User       string          `db:"username" json:"user"`
	Customer   string          `db:"customer" json:"customer,omitempty"`
	Timestamp  time.Time       `db:"created_at" json:"timestamp"`
	IsFinished bool            `db:"is_finished" json:"is_finished"`
}

// CashoutReport is the outcome of a cash drawer reconciliation
type CashoutReport struct {
	Expected      decimal.Decimal `json:"expected"`
	Counted       decimal.Decimal `json:"counted"`
	Difference    decimal.Decimal `json:"difference"`
	LargeVariance bool            `json:"large_variance"`
	PurgedSales   int             `json:"purged_sales"`
	ReconciledBy  string          `json:"reconciled_by"`
	ReconciledAt  time.Time       `json:"reconciled_at"`
}

// Role is the access level of a session
type Role string

// Roles
const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// SalesSummary aggregates the sales in the working set
type SalesSummary struct {
	Count         int                             `json:"count"`
	Total         decimal.Decimal                 `json:"total"`
	AverageTicket decimal.Decimal                 `json:"average_ticket"`
	ByMethod      map[PaymentMethod]MethodSummary `json:"by_method"`
}

// MethodSummary is the per payment method slice of a SalesSummary
type MethodSummary struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Decimal places stored for money and for stock or weighed quantities
const (
	MoneyPlaces    int32 = 2
	QuantityPlaces int32 = 3
)

// FitsPlaces reports whether v has no more than places decimal digits
func FitsPlaces(v decimal.Decimal, places int32) bool {
	return v.Equal(v.Truncate(places))
}

// RoundMoney rounds an amount half away from zero to cents
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyPlaces)
}
