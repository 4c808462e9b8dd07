package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is a stocked item. Quantity is the current stock and is only moved through
// Reserve and Release; InitialQuantity is the fixed unit-cost denominator.
type Product struct {
	BaseModel
	Name             string          `gorm:"type:varchar(255);not null" json:"name"`
	AcquisitionValue decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"acquisition_value"`
	Quantity         int             `gorm:"not null;default:0" json:"quantity"`
	InitialQuantity  *int            `json:"initial_quantity,omitempty"`
}

// UnitCostResult is the outcome of a unit-cost computation. Err is a warning flag
// (ErrProductNotFound or ErrInvalidQuantity) and Cost is zero whenever it is set.
type UnitCostResult struct {
	Cost decimal.Decimal
	Err  error
}

// UnitCostOf derives the per-unit acquisition cost. A nil product stands for a
// product that no longer exists. It never divides by zero and never fails hard.
func UnitCostOf(p *Product) UnitCostResult {
	if p == nil {
		return UnitCostResult{Cost: decimal.Zero, Err: ErrProductNotFound}
	}

	denominator := 0
	if p.InitialQuantity != nil && *p.InitialQuantity > 0 {
		denominator = *p.InitialQuantity
	} else if p.Quantity > 0 {
		denominator = p.Quantity
	}
	if denominator == 0 {
		return UnitCostResult{Cost: decimal.Zero, Err: ErrInvalidQuantity}
	}

	return UnitCostResult{Cost: p.AcquisitionValue.Div(decimal.NewFromInt(int64(denominator)))}
}

// UnitCost is UnitCostOf for a product that is known to exist.
func (p *Product) UnitCost() UnitCostResult {
	return UnitCostOf(p)
}

// Reserve takes qty units out of stock. Draining the stock to exactly zero is allowed.
func (p *Product) Reserve(qty int) error {
	if qty <= 0 {
		return ErrNonPositiveQty
	}
	if qty > p.Quantity {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, qty, p.Quantity)
	}
	p.Quantity -= qty
	return nil
}

// Release puts qty units back into stock when a sale or loss is reversed.
// There is no upper bound: the reversed record had decremented the stock validly.
func (p *Product) Release(qty int) {
	if qty <= 0 {
		return
	}
	p.Quantity += qty
}
