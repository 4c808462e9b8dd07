package service

import (
	"context"
	"encoding/json"
	"slices"

	"sigef-backend/internal/model"
	"sigef-backend/internal/repository"
	"sigef-backend/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const reportModule = "ReportService"

// BuildReport aggregates the current products, sales and debts. It never fails:
// a sale whose product is gone, or a product without a usable quantity, is valued
// at zero cost and reported in Warnings. Inputs are walked in order, so ties in the
// highlights go to the product listed first.
func BuildReport(products []model.Product, sales []model.Sale, debts []model.Debt) *model.ReportData {
	report := &model.ReportData{
		TotalProducts: len(products),
		TotalSales:    len(sales),
	}

	byID := make(map[string]*model.Product, len(products))
	perf := make([]model.ProductPerformance, len(products))
	perfIdx := make(map[string]int, len(products))

	investment := decimal.Zero
	for i := range products {
		p := &products[i]
		byID[p.ID] = p
		perfIdx[p.ID] = i
		perf[i] = model.ProductPerformance{ProductID: p.ID, Name: p.Name}

		unitCost := p.UnitCost()
		if unitCost.Err != nil {
			report.Warnings = append(report.Warnings, model.ReportWarning{ProductID: p.ID, Message: unitCost.Err.Error()})
		}
		investment = investment.Add(unitCost.Cost.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}

	revenue, profit, lossValue, stored := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, sale := range sales {
		unitCost := model.UnitCostOf(byID[sale.ProductID])
		if unitCost.Err != nil {
			report.Warnings = append(report.Warnings, model.ReportWarning{
				ProductID: sale.ProductID,
				SaleID:    sale.ID,
				Message:   unitCost.Err.Error(),
			})
		}
		cost := unitCost.Cost.Mul(decimal.NewFromInt(int64(sale.QuantitySold)))
		stored = stored.Add(sale.Profit)

		i, known := perfIdx[sale.ProductID]
		if sale.IsLoss {
			lossValue = lossValue.Add(cost)
			profit = profit.Sub(cost)
			if known {
				perf[i].UnitsLost += sale.QuantitySold
				perf[i].LossValue = perf[i].LossValue.Add(cost)
				perf[i].Profit = perf[i].Profit.Sub(cost)
			}
			continue
		}

		revenue = revenue.Add(sale.SaleValue)
		profit = profit.Add(sale.SaleValue.Sub(cost))
		if known {
			perf[i].UnitsSold += sale.QuantitySold
			perf[i].Revenue = perf[i].Revenue.Add(sale.SaleValue)
			perf[i].Profit = perf[i].Profit.Add(sale.SaleValue.Sub(cost))
		}
	}

	var mostProfitable, highestLoss *model.ProductPerformance
	for i := range perf {
		if perf[i].Profit.IsPositive() && (mostProfitable == nil || perf[i].Profit.GreaterThan(mostProfitable.Profit)) {
			mostProfitable = &perf[i]
		}
		if perf[i].LossValue.IsPositive() && (highestLoss == nil || perf[i].LossValue.GreaterThan(highestLoss.LossValue)) {
			highestLoss = &perf[i]
		}
	}
	if mostProfitable != nil {
		report.MostProfitableProduct = &model.ProductHighlight{
			ProductID: mostProfitable.ProductID,
			Name:      mostProfitable.Name,
			Value:     mostProfitable.Profit.Round(2),
		}
	}
	if highestLoss != nil {
		report.HighestLossProduct = &model.ProductHighlight{
			ProductID: highestLoss.ProductID,
			Name:      highestLoss.Name,
			Value:     highestLoss.LossValue.Round(2),
		}
	}

	receivables, payables := decimal.Zero, decimal.Zero
	for _, d := range debts {
		if d.Status == model.DebtPaid {
			continue
		}
		pending := d.Amount.Sub(d.AmountPaid)
		switch d.Type {
		case model.DebtReceivable:
			receivables = receivables.Add(pending)
		case model.DebtPayable:
			payables = payables.Add(pending)
		}
	}

	for i := range perf {
		perf[i].Revenue = perf[i].Revenue.Round(2)
		perf[i].Profit = perf[i].Profit.Round(2)
		perf[i].LossValue = perf[i].LossValue.Round(2)
	}
	slices.SortStableFunc(perf, func(a, b model.ProductPerformance) int {
		return b.Profit.Cmp(a.Profit)
	})

	report.TotalInvestment = investment.Round(2)
	report.TotalRevenue = revenue.Round(2)
	report.TotalProfit = profit.Round(2)
	report.TotalLossValue = lossValue.Round(2)
	report.StoredProfit = stored.Round(2)
	report.TotalReceivablesPending = receivables.Round(2)
	report.TotalPayablesPending = payables.Round(2)
	report.Ranking = perf
	return report
}

// AnalysisInputFrom derives the aggregate handed to the financial analysis flow.
func AnalysisInputFrom(report *model.ReportData) *model.AnalysisInput {
	return &model.AnalysisInput{
		ApproxAssets:            report.TotalInvestment,
		ApproxLiabilities:       report.TotalPayablesPending,
		ApproxNetWorth:          report.TotalInvestment.Sub(report.TotalPayablesPending),
		TotalReceivablesPending: report.TotalReceivablesPending,
		TotalPayablesPending:    report.TotalPayablesPending,
		TotalRevenue:            report.TotalRevenue,
		TotalProfit:             report.TotalProfit,
		TotalLossValue:          report.TotalLossValue,
		GeneratedAt:             report.GeneratedAt,
	}
}

type ReportService interface {
	GetReport(ctx context.Context) (*model.ReportData, error)
	GetAnalysisInput(ctx context.Context) (*model.AnalysisInput, error)
	SaveSnapshot(ctx context.Context, actor Actor) (*model.ReportSnapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]model.ReportSnapshot, error)
}

type reportService struct {
	productRepo  repository.ProductRepository
	saleRepo     repository.SaleRepository
	debtRepo     repository.DebtRepository
	snapshotRepo repository.SnapshotRepository
	deps         Deps
}

func NewReportService(pRepo repository.ProductRepository, sRepo repository.SaleRepository, dRepo repository.DebtRepository, snapRepo repository.SnapshotRepository, deps Deps) ReportService {
	return &reportService{
		productRepo:  pRepo,
		saleRepo:     sRepo,
		debtRepo:     dRepo,
		snapshotRepo: snapRepo,
		deps:         deps.withDefaults(),
	}
}

// GetReport serves the cached report when there is one. Reads take no locks.
func (s *reportService) GetReport(ctx context.Context) (_ *model.ReportData, err error) {
	ctx, span := startSpan(ctx, "ReportService.GetReport")
	defer func() { endSpan(span, err) }()

	cached, ok, err := s.deps.Cache.Get(ctx)
	if err != nil {
		logger.LogError(s.deps.Log, reportModule, "GetReport", "report cache read failed", nil, err)
	} else if ok {
		return cached, nil
	}

	// Read the generation first: a write committed during the build bumps it and the
	// stale report is not stored.
	gen, genErr := s.deps.Cache.Generation(ctx)
	if genErr != nil {
		logger.LogError(s.deps.Log, reportModule, "GetReport", "report cache generation read failed", nil, genErr)
	}

	report, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		if err := s.deps.Cache.Set(ctx, report, gen); err != nil {
			logger.LogError(s.deps.Log, reportModule, "GetReport", "report cache write failed", nil, err)
		}
	}
	return report, nil
}

func (s *reportService) build(ctx context.Context) (*model.ReportData, error) {
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.saleRepo.FindAll(ctx, repository.SaleFilter{})
	if err != nil {
		return nil, err
	}
	debts, err := s.debtRepo.FindAll(ctx, repository.DebtFilter{})
	if err != nil {
		return nil, err
	}

	report := BuildReport(products, sales, debts)
	report.GeneratedAt = s.deps.Now()

	for _, w := range report.Warnings {
		s.deps.Log.WithFields(logrus.Fields{
			"product_id": w.ProductID,
			"sale_id":    w.SaleID,
		}).Warn("report: " + w.Message)
	}
	return report, nil
}

func (s *reportService) GetAnalysisInput(ctx context.Context) (*model.AnalysisInput, error) {
	report, err := s.GetReport(ctx)
	if err != nil {
		return nil, err
	}
	return AnalysisInputFrom(report), nil
}

// SaveSnapshot stores a freshly computed report, bypassing the cache.
func (s *reportService) SaveSnapshot(ctx context.Context, actor Actor) (_ *model.ReportSnapshot, err error) {
	ctx, span := startSpan(ctx, "ReportService.SaveSnapshot")
	defer func() { endSpan(span, err) }()

	report, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}

	snapshot := &model.ReportSnapshot{Payload: datatypes.JSON(payload)}
	snapshot.CreatedBy = actor.ID
	snapshot.UpdatedBy = actor.ID
	if err := s.snapshotRepo.Create(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *reportService) ListSnapshots(ctx context.Context, limit int) ([]model.ReportSnapshot, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.snapshotRepo.FindRecent(ctx, limit)
}
