package model

import "errors"

// Error kinds of the financial core. Callers match them with errors.Is.
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrSaleNotFound       = errors.New("sale not found")
	ErrDebtNotFound       = errors.New("debt not found")
	ErrInsufficientStock  = errors.New("insufficient stock remaining")
	ErrInvalidLossReason  = errors.New("a loss requires a reason")
	ErrInvalidQuantity    = errors.New("invalid initial quantity")
	ErrNonPositiveQty     = errors.New("quantity must be greater than zero")
	ErrPaymentExceedsDebt = errors.New("amount paid cannot exceed the debt amount")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDebtType    = errors.New("debt type must be receivable or payable")
)
