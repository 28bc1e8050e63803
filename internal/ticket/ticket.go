// Package ticket holds the in-progress sale of an employee session.
//
// A Ticket keeps at most one line per product id, in insertion order. Adding a
// product that is already present increments its quantity, and a quantity that
// drops to zero or below removes the line. Totals are derived on every read so
// they always reflect the current lines and discount.
package ticket

import (
	"fmt"

	"bakery-pos/internal/models"

	"github.com/shopspring/decimal"
)

// State of a ticket
type State string

// Ticket states
const (
	StateEmpty    State = "EMPTY"
	StateBuilding State = "BUILDING"
)

// Ticket is the in-progress cart. It is not safe for concurrent use.
type Ticket struct {
	items    []models.TicketItem
	discount decimal.Decimal
}

// New creates an empty ticket
func New() *Ticket {
	return &Ticket{}
}

// State returns EMPTY when there are no lines
func (t *Ticket) State() State {
	if len(t.items) == 0 {
		return StateEmpty
	}
	return StateBuilding
}

// AddUnit adds qty units of a unit product
func (t *Ticket) AddUnit(p models.Product, qty decimal.Decimal) error {
	if !p.InStock() {
		return fmt.Errorf("%w: %s", models.ErrOutOfStock, p.Name)
	}
	if p.IsWeightProduct {
		return fmt.Errorf("%w: %s", models.ErrWeightRequired, p.Name)
	}
	if !qty.IsPositive() || !isWhole(qty) {
		return fmt.Errorf("%w: quantity %s", models.ErrInvalidAmount, qty)
	}
	t.addOrIncrement(p, qty)
	return nil
}

// AddWeighed adds weight kilograms of a weight product
func (t *Ticket) AddWeighed(p models.Product, weight decimal.Decimal) error {
	if !weight.IsPositive() || !models.FitsPlaces(weight, models.QuantityPlaces) {
		return fmt.Errorf("%w: weight %s", models.ErrInvalidAmount, weight)
	}
	if !p.InStock() {
		return fmt.Errorf("%w: %s", models.ErrOutOfStock, p.Name)
	}
	if !p.IsWeightProduct {
		return fmt.Errorf("%w: %s", models.ErrNotWeightProduct, p.Name)
	}
	t.addOrIncrement(p, weight)
	return nil
}

func (t *Ticket) addOrIncrement(p models.Product, qty decimal.Decimal) {
	if i := t.indexOf(p.ID); i >= 0 {
		t.items[i].Quantity = t.items[i].Quantity.Add(qty)
		return
	}
	t.items = append(t.items, models.TicketItem{Product: p, Quantity: qty})
}

// SetQuantity overwrites the quantity of a line. A quantity of zero or less
// removes the line, so it is a no-op for an absent id like Remove.
func (t *Ticket) SetQuantity(productID int64, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		t.Remove(productID)
		return nil
	}
	i := t.indexOf(productID)
	if i < 0 {
		return fmt.Errorf("%w: product %d is not on the ticket", models.ErrNotFound, productID)
	}
	if !models.FitsPlaces(qty, models.QuantityPlaces) || (!t.items[i].IsWeightProduct && !isWhole(qty)) {
		return fmt.Errorf("%w: quantity %s", models.ErrInvalidAmount, qty)
	}
	t.items[i].Quantity = qty
	return nil
}

// Remove deletes the line for productID. Absent ids are ignored.
func (t *Ticket) Remove(productID int64) {
	i := t.indexOf(productID)
	if i < 0 {
		return
	}
	t.items = append(t.items[:i], t.items[i+1:]...)
}

// ApplyDiscount replaces the current discount
func (t *Ticket) ApplyDiscount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: discount %s", models.ErrInvalidAmount, amount)
	}
	t.discount = amount
	return nil
}

// Clear empties the ticket and resets the discount
func (t *Ticket) Clear() {
	t.items = nil
	t.discount = decimal.Zero
}

// Items returns a copy of the lines in insertion order
func (t *Ticket) Items() []models.TicketItem {
	out := make([]models.TicketItem, len(t.items))
	copy(out, t.items)
	return out
}

// Item returns the line for productID
func (t *Ticket) Item(productID int64) (models.TicketItem, bool) {
	if i := t.indexOf(productID); i >= 0 {
		return t.items[i], true
	}
	return models.TicketItem{}, false
}

// Discount returns the applied discount
func (t *Ticket) Discount() decimal.Decimal {
	return t.discount
}

// Subtotal is the sum of price times quantity over all lines
func (t *Ticket) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range t.items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Total is the subtotal minus the discount. It may be negative.
func (t *Ticket) Total() decimal.Decimal {
	return t.Subtotal().Sub(t.discount)
}

// Snapshot returns a read-only view for API responses
func (t *Ticket) Snapshot() Snapshot {
	return Snapshot{
		State:    t.State(),
		Items:    t.Items(),
		Subtotal: t.Subtotal(),
		Discount: t.discount,
		Total:    t.Total(),
	}
}

// Snapshot is a point-in-time copy of a ticket
type Snapshot struct {
	State    State               `json:"state"`
	Items    []models.TicketItem `json:"items"`
	Subtotal decimal.Decimal     `json:"subtotal"`
	Discount decimal.Decimal     `json:"discount"`
	Total    decimal.Decimal     `json:"total"`
}

func (t *Ticket) indexOf(productID int64) int {
	for i, item := range t.items {
		if item.ID == productID {
			return i
		}
	}
	return -1
}

func isWhole(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(0))
}
