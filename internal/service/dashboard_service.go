package service

import (
	"context"
	"time"

	"sigef-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// LowStockThreshold marks products that are close to selling out.
const LowStockThreshold = 5

// DashboardStats is the overview shown above the charts.
type DashboardStats struct {
	TotalProducts   int             `json:"total_products"`
	LowStockCount   int             `json:"low_stock_count"`
	OutOfStockCount int             `json:"out_of_stock_count"`
	StockValuation  decimal.Decimal `json:"stock_valuation"`
}

type DashboardService interface {
	GetStockMovement(ctx context.Context, days int) ([]repository.SaleMovementData, error)
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
}

type dashboardService struct {
	productRepo repository.ProductRepository
	saleRepo    repository.SaleRepository
	now         func() time.Time
}

func NewDashboardService(pRepo repository.ProductRepository, sRepo repository.SaleRepository, deps Deps) DashboardService {
	return &dashboardService{productRepo: pRepo, saleRepo: sRepo, now: deps.withDefaults().Now}
}

func (s *dashboardService) GetStockMovement(ctx context.Context, days int) ([]repository.SaleMovementData, error) {
	endDate := s.now()
	startDate := endDate.AddDate(0, 0, -days)

	return s.saleRepo.GetDailyMovement(ctx, startDate, endDate)
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{TotalProducts: len(products), StockValuation: decimal.Zero}
	for i := range products {
		p := &products[i]
		switch {
		case p.Quantity == 0:
			stats.OutOfStockCount++
		case p.Quantity < LowStockThreshold:
			stats.LowStockCount++
		}
		stats.StockValuation = stats.StockValuation.Add(p.UnitCost().Cost.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	stats.StockValuation = stats.StockValuation.Round(2)
	return stats, nil
}
