package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProductHighlight names a product together with the value it was ranked by.
type ProductHighlight struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
}

// ProductPerformance accumulates one product's sales and losses.
type ProductPerformance struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitsSold int             `json:"units_sold"`
	UnitsLost int             `json:"units_lost"`
	Revenue   decimal.Decimal `json:"revenue"`
	Profit    decimal.Decimal `json:"profit"`
	LossValue decimal.Decimal `json:"loss_value"`
}

// ReportWarning flags a record the report had to value at zero cost.
type ReportWarning struct {
	ProductID string `json:"product_id"`
	SaleID    string `json:"sale_id,omitempty"`
	Message   string `json:"message"`
}

// ReportData is a point-in-time financial snapshot; it is derived, never edited.
type ReportData struct {
	TotalProducts           int                  `json:"total_products"`
	TotalSales              int                  `json:"total_sales"`
	TotalInvestment         decimal.Decimal      `json:"total_investment"`
	TotalRevenue            decimal.Decimal      `json:"total_revenue"`
	TotalProfit             decimal.Decimal      `json:"total_profit"`
	TotalLossValue          decimal.Decimal      `json:"total_loss_value"`
	StoredProfit            decimal.Decimal      `json:"stored_profit"`
	MostProfitableProduct   *ProductHighlight    `json:"most_profitable_product"`
	HighestLossProduct      *ProductHighlight    `json:"highest_loss_product"`
	TotalReceivablesPending decimal.Decimal      `json:"total_receivables_pending"`
	TotalPayablesPending    decimal.Decimal      `json:"total_payables_pending"`
	Ranking                 []ProductPerformance `json:"ranking"`
	Warnings                []ReportWarning      `json:"warnings,omitempty"`
	GeneratedAt             time.Time            `json:"generated_at"`
}

// AnalysisInput is the aggregate handed to the financial analysis flow.
type AnalysisInput struct {
	ApproxAssets            decimal.Decimal `json:"approx_assets"`
	ApproxLiabilities       decimal.Decimal `json:"approx_liabilities"`
	ApproxNetWorth          decimal.Decimal `json:"approx_net_worth"`
	TotalReceivablesPending decimal.Decimal `json:"total_receivables_pending"`
	TotalPayablesPending    decimal.Decimal `json:"total_payables_pending"`
	TotalRevenue            decimal.Decimal `json:"total_revenue"`
	TotalProfit             decimal.Decimal `json:"total_profit"`
	TotalLossValue          decimal.Decimal `json:"total_loss_value"`
	GeneratedAt             time.Time       `json:"generated_at"`
}

// ReportSnapshot persists a ReportData payload so results can be compared over time.
type ReportSnapshot struct {
	BaseModel
	Payload datatypes.JSON `json:"payload"`
}
