package models

import "errors"

// Domain errors. Callers match them with errors.Is.
var (
	ErrOutOfStock           = errors.New("product out of stock")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrTransaction          = errors.New("connection error while saving the sale, please try again")
	ErrNotFound             = errors.New("not found")
	ErrEmptyName            = errors.New("name must not be empty")
	ErrCategoryInUse        = errors.New("category is referenced by one or more products")
	ErrCustomerRequired     = errors.New("customer is required for store credit")
	ErrInsufficientPayment  = errors.New("amount received is less than the total")
	ErrEmptyTicket          = errors.New("ticket has no items")
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
	ErrWeightRequired       = errors.New("product is sold by weight")
	ErrNotWeightProduct     = errors.New("product is not sold by weight")
	ErrInvalidCredentials   = errors.New("username and password are required")
	ErrForbidden            = errors.New("forbidden for this role")
	ErrSessionNotFound      = errors.New("session not found")
)
