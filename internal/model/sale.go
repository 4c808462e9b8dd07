package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Sale records stock leaving the business. With IsLoss set it is a loss: no revenue and
// a mandatory reason. Profit is a snapshot taken at creation and is never recomputed.
type Sale struct {
	BaseModel
	ProductID    string          `gorm:"type:varchar(64);not null;index" json:"product_id"`
	ProductName  string          `gorm:"type:varchar(255);not null" json:"product_name"`
	QuantitySold int             `gorm:"not null" json:"quantity_sold"`
	SaleValue    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"sale_value"`
	IsLoss       bool            `gorm:"not null;default:false;index" json:"is_loss"`
	LossReason   *string         `gorm:"type:text" json:"loss_reason,omitempty"`
	Profit       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"profit"`
}

// SaleProfit computes the signed profit of a sale or loss for a given unit cost.
func SaleProfit(unitCost decimal.Decimal, quantity int, saleValue decimal.Decimal, isLoss bool) decimal.Decimal {
	cost := unitCost.Mul(decimal.NewFromInt(int64(quantity)))
	if isLoss {
		return cost.Neg()
	}
	return saleValue.Sub(cost)
}

// NewSale builds the record for a sale or loss of product, snapshotting its name and
// the profit at the given unit cost. Losses carry no sale value.
func NewSale(product *Product, quantity int, saleValue decimal.Decimal, isLoss bool, lossReason string, unitCost decimal.Decimal) *Sale {
	sale := &Sale{
		ProductID:    product.ID,
		ProductName:  product.Name,
		QuantitySold: quantity,
		SaleValue:    saleValue,
		IsLoss:       isLoss,
	}
	if isLoss {
		reason := strings.TrimSpace(lossReason)
		sale.SaleValue = decimal.Zero
		sale.LossReason = &reason
	}
	sale.Profit = SaleProfit(unitCost, quantity, sale.SaleValue, isLoss).Round(2)
	return sale
}
