package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DebtType string

const (
	DebtReceivable DebtType = "receivable" // owed to the business
	DebtPayable    DebtType = "payable"    // owed by the business
)

// Valid reports whether t is a known debt type.
func (t DebtType) Valid() bool {
	return t == DebtReceivable || t == DebtPayable
}

type DebtStatus string

const (
	DebtPending       DebtStatus = "pending"
	DebtPartiallyPaid DebtStatus = "partially_paid"
	DebtPaid          DebtStatus = "paid"
)

// Debt is a receivable or payable. Status and PaidAt are derived from Amount and
// AmountPaid; they are only ever written by RecomputeStatus.
type Debt struct {
	BaseModel
	Type          DebtType        `gorm:"type:varchar(20);not null;index" json:"type"`
	Description   string          `gorm:"type:text;not null" json:"description"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	AmountPaid    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"amount_paid"`
	Status        DebtStatus      `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	ContactName   *string         `gorm:"type:varchar(255)" json:"contact_name,omitempty"`
	ContactPhone  *string         `gorm:"type:varchar(32)" json:"contact_phone,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	RelatedSaleID *string         `gorm:"type:varchar(64);index" json:"related_sale_id,omitempty"`

	// Overdue is IsOverdue at read time; it is not stored.
	Overdue bool `gorm:"-" json:"is_overdue"`
}

// StatusFor is the status function: nothing paid is pending, anything short of the
// amount is partially paid, and reaching the amount is paid.
func StatusFor(amount, amountPaid decimal.Decimal) DebtStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(amount):
		return DebtPaid
	case amountPaid.IsPositive():
		return DebtPartiallyPaid
	default:
		return DebtPending
	}
}

// RecomputeStatus derives Status from the amounts. PaidAt is stamped with now the first
// time the debt becomes paid, kept while it stays paid and cleared when it leaves paid.
func (d *Debt) RecomputeStatus(now time.Time) {
	d.Status = StatusFor(d.Amount, d.AmountPaid)
	if d.Status != DebtPaid {
		d.PaidAt = nil
		return
	}
	if d.PaidAt == nil {
		paidAt := now
		d.PaidAt = &paidAt
	}
}

// Remaining is what is still owed, never negative.
func (d *Debt) Remaining() decimal.Decimal {
	remaining := d.Amount.Sub(d.AmountPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// IsOverdue reports whether an unpaid debt is past its due date.
func (d *Debt) IsOverdue(now time.Time) bool {
	return d.Status != DebtPaid && d.DueDate != nil && d.DueDate.Before(now)
}

// DebtUpdate carries the fields of a partial update; nil means "leave unchanged".
type DebtUpdate struct {
	Description   *string
	Amount        *decimal.Decimal
	AmountPaid    *decimal.Decimal
	DueDate       *time.Time
	ClearDueDate  bool
	ContactName   *string
	ContactPhone  *string
	RelatedSaleID *string
}

// ApplyUpdate merges u into the debt and recomputes the status from the new amounts,
// even when u does not touch AmountPaid. The debt is left untouched on error.
func (d *Debt) ApplyUpdate(u DebtUpdate, now time.Time) error {
	next := *d

	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Amount != nil {
		next.Amount = *u.Amount
	}
	if u.AmountPaid != nil {
		next.AmountPaid = *u.AmountPaid
	}
	if u.ClearDueDate {
		next.DueDate = nil
	} else if u.DueDate != nil {
		next.DueDate = u.DueDate
	}
	if u.ContactName != nil {
		next.ContactName = u.ContactName
	}
	if u.ContactPhone != nil {
		next.ContactPhone = u.ContactPhone
	}
	if u.RelatedSaleID != nil {
		next.RelatedSaleID = u.RelatedSaleID
	}

	if err := validateDebtAmounts(next.Amount, next.AmountPaid); err != nil {
		return err
	}

	next.RecomputeStatus(now)
	*d = next
	return nil
}

func validateDebtAmounts(amount, amountPaid decimal.Decimal) error {
	if !amount.IsPositive() || amountPaid.IsNegative() {
		return ErrInvalidAmount
	}
	if amountPaid.GreaterThan(amount) {
		return ErrPaymentExceedsDebt
	}
	return nil
}

// NewDebt builds a fresh debt: nothing paid, pending.
func NewDebt(debtType DebtType, description string, amount decimal.Decimal) (*Debt, error) {
	if !debtType.Valid() {
		return nil, ErrInvalidDebtType
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return &Debt{
		Type:        debtType,
		Description: description,
		Amount:      amount,
		AmountPaid:  decimal.Zero,
		Status:      DebtPending,
	}, nil
}
