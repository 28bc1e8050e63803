package service

import (
	"context"

	"bakery-pos/internal/ticket"
	"bakery-pos/internal/util"

	"github.com/shopspring/decimal"
)

// TicketService applies catalog lookups to the ticket of an employee session
type TicketService struct {
	sessions  *SessionService
	inventory *InventoryClient
}

// NewTicketService creates a new ticket service
func NewTicketService(sessions *SessionService, inventory *InventoryClient) *TicketService {
	return &TicketService{sessions: sessions, inventory: inventory}
}

// View returns the current state of the session ticket
func (ts *TicketService) View(sessionID string) (ticket.Snapshot, error) {
	return ts.mutate(sessionID, func(*ticket.Ticket) error { return nil })
}

// AddUnit adds qty units of a product
func (ts *TicketService) AddUnit(ctx context.Context, sessionID string, productID int64, qty decimal.Decimal) (ticket.Snapshot, error) {
	ctx, span := util.StartSpan(ctx, "TicketService.AddUnit")
	defer span.End()

	product, err := ts.inventory.GetProduct(ctx, productID)
	if err != nil {
		return ticket.Snapshot{}, err
	}
	return ts.mutate(sessionID, func(t *ticket.Ticket) error {
		return t.AddUnit(*product, qty)
	})
}

// AddWeighed adds a weighed quantity of a product sold by weight
func (ts *TicketService) AddWeighed(ctx context.Context, sessionID string, productID int64, weight decimal.Decimal) (ticket.Snapshot, error) {
	ctx, span := util.StartSpan(ctx, "TicketService.AddWeighed")
	defer span.End()

	product, err := ts.inventory.GetProduct(ctx, productID)
	if err != nil {
		return ticket.Snapshot{}, err
	}
	return ts.mutate(sessionID, func(t *ticket.Ticket) error {
		return t.AddWeighed(*product, weight)
	})
}

// SetQuantity replaces a line quantity. Zero or less removes the line.
func (ts *TicketService) SetQuantity(sessionID string, productID int64, qty decimal.Decimal) (ticket.Snapshot, error) {
	return ts.mutate(sessionID, func(t *ticket.Ticket) error {
		return t.SetQuantity(productID, qty)
	})
}

// Remove drops a line from the ticket
func (ts *TicketService) Remove(sessionID string, productID int64) (ticket.Snapshot, error) {
	return ts.mutate(sessionID, func(t *ticket.Ticket) error {
		t.Remove(productID)
		return nil
	})
}

// ApplyDiscount sets the flat discount subtracted from the ticket total
func (ts *TicketService) ApplyDiscount(sessionID string, amount decimal.Decimal) (ticket.Snapshot, error) {
	return ts.mutate(sessionID, func(t *ticket.Ticket) error {
		return t.ApplyDiscount(amount)
	})
}

// Clear empties the ticket without recording a sale
func (ts *TicketService) Clear(sessionID string) (ticket.Snapshot, error) {
	return ts.mutate(sessionID, func(t *ticket.Ticket) error {
		t.Clear()
		return nil
	})
}

// mutate applies fn and returns the resulting snapshot, even when fn fails
func (ts *TicketService) mutate(sessionID string, fn func(t *ticket.Ticket) error) (ticket.Snapshot, error) {
	var snap ticket.Snapshot
	err := ts.sessions.WithTicket(sessionID, func(t *ticket.Ticket) error {
		err := fn(t)
		snap = t.Snapshot()
		return err
	})
	return snap, err
}
