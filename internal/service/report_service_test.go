package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigef-backend/internal/cache"
	"sigef-backend/internal/model"
	"sigef-backend/internal/repository"
)

func product(id, name, value string, qty int, initial *int) model.Product {
	return model.Product{
		BaseModel:        model.BaseModel{ID: id},
		Name:             name,
		AcquisitionValue: dec(value),
		Quantity:         qty,
		InitialQuantity:  initial,
	}
}

func sale(id, productID string, qty int, value string, isLoss bool, profit string) model.Sale {
	return model.Sale{
		BaseModel:    model.BaseModel{ID: id},
		ProductID:    productID,
		QuantitySold: qty,
		SaleValue:    dec(value),
		IsLoss:       isLoss,
		Profit:       dec(profit),
	}
}

func TestBuildReportScenarioE(t *testing.T) {
	products := []model.Product{product("p1", "Caneta", "150", 35, intPtr(50))}
	sales := []model.Sale{
		sale("s1", "p1", 10, "50", false, "20"),
		sale("s2", "p1", 5, "0", true, "-15"),
	}

	r := BuildReport(products, sales, nil)
	assert.Equal(t, 1, r.TotalProducts)
	assert.Equal(t, 2, r.TotalSales)
	assert.True(t, dec("105").Equal(r.TotalInvestment), "investment %s", r.TotalInvestment)
	assert.True(t, dec("50").Equal(r.TotalRevenue), "revenue %s", r.TotalRevenue)
	assert.True(t, dec("15").Equal(r.TotalLossValue), "loss %s", r.TotalLossValue)
	assert.True(t, dec("5").Equal(r.TotalProfit), "profit %s", r.TotalProfit)
	assert.True(t, dec("5").Equal(r.StoredProfit))

	require.NotNil(t, r.MostProfitableProduct)
	assert.Equal(t, "p1", r.MostProfitableProduct.ProductID)
	assert.True(t, dec("5").Equal(r.MostProfitableProduct.Value))
	require.NotNil(t, r.HighestLossProduct)
	assert.True(t, dec("15").Equal(r.HighestLossProduct.Value))
	assert.Empty(t, r.Warnings)

	require.Len(t, r.Ranking, 1)
	assert.Equal(t, 10, r.Ranking[0].UnitsSold)
	assert.Equal(t, 5, r.Ranking[0].UnitsLost)
}

func TestBuildReportLiveCostDivergesFromStoredProfit(t *testing.T) {
	// acquisition value was edited from 150 to 300 after the sale was recorded
	products := []model.Product{product("p1", "Caneta", "300", 40, intPtr(50))}
	sales := []model.Sale{sale("s1", "p1", 10, "50", false, "20")}

	r := BuildReport(products, sales, nil)
	assert.True(t, dec("-10").Equal(r.TotalProfit), "live profit %s", r.TotalProfit)
	assert.True(t, dec("20").Equal(r.StoredProfit), "stored profit %s", r.StoredProfit)
	assert.Nil(t, r.MostProfitableProduct)
}

func TestBuildReportHighlightsTieGoesToFirst(t *testing.T) {
	products := []model.Product{
		product("a", "A", "10", 10, intPtr(10)),
		product("b", "B", "10", 10, intPtr(10)),
		product("c", "C", "10", 10, intPtr(10)),
	}
	sales := []model.Sale{
		sale("s1", "b", 1, "6", false, "5"),
		sale("s2", "a", 1, "6", false, "5"),
		sale("s3", "c", 2, "0", true, "-2"),
		sale("s4", "a", 2, "0", true, "-2"),
	}

	r := BuildReport(products, sales, nil)
	require.NotNil(t, r.MostProfitableProduct)
	assert.Equal(t, "b", r.MostProfitableProduct.ProductID, "b has more profit than a once a's loss counts")

	require.NotNil(t, r.HighestLossProduct)
	assert.Equal(t, "a", r.HighestLossProduct.ProductID, "a and c tie, a is listed first")

	ids := make([]string, len(r.Ranking))
	for i, p := range r.Ranking {
		ids[i] = p.ProductID
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestBuildReportDegradesOnBadData(t *testing.T) {
	products := []model.Product{
		product("p1", "Sem estoque", "100", 0, nil),
	}
	sales := []model.Sale{
		sale("s1", "gone", 3, "30", false, "12"),
		sale("s2", "gone", 1, "0", true, "-4"),
	}

	r := BuildReport(products, sales, nil)
	assert.True(t, r.TotalInvestment.IsZero())
	assert.True(t, dec("30").Equal(r.TotalRevenue))
	assert.True(t, dec("30").Equal(r.TotalProfit))
	assert.True(t, r.TotalLossValue.IsZero())
	assert.Nil(t, r.MostProfitableProduct, "sales of a deleted product are not attributed")
	require.Len(t, r.Warnings, 3)
	assert.Equal(t, model.ErrInvalidQuantity.Error(), r.Warnings[0].Message)
	assert.Equal(t, model.ErrProductNotFound.Error(), r.Warnings[1].Message)
	assert.Equal(t, "s1", r.Warnings[1].SaleID)
}

func TestBuildReportPendingDebts(t *testing.T) {
	debts := []model.Debt{
		{Type: model.DebtReceivable, Amount: dec("100"), AmountPaid: dec("40"), Status: model.DebtPartiallyPaid},
		{Type: model.DebtReceivable, Amount: dec("50"), AmountPaid: dec("50"), Status: model.DebtPaid},
		{Type: model.DebtPayable, Amount: dec("70.55"), AmountPaid: dec("0"), Status: model.DebtPending},
	}

	r := BuildReport(nil, nil, debts)
	assert.True(t, dec("60").Equal(r.TotalReceivablesPending))
	assert.True(t, dec("70.55").Equal(r.TotalPayablesPending))
	assert.NotNil(t, r.Ranking)

	in := AnalysisInputFrom(r)
	assert.True(t, in.ApproxAssets.IsZero())
	assert.True(t, dec("70.55").Equal(in.ApproxLiabilities))
	assert.True(t, dec("-70.55").Equal(in.ApproxNetWorth))
}

func TestBuildReportKeepsCents(t *testing.T) {
	products := []model.Product{product("p1", "Bala", "10", 3, intPtr(3))}
	var sales []model.Sale
	for i := 0; i < 3; i++ {
		sales = append(sales, sale("s", "p1", 1, "0.10", false, "0"))
	}

	r := BuildReport(products, sales, nil)
	assert.True(t, dec("0.3").Equal(r.TotalRevenue), "revenue %s", r.TotalRevenue)
	assert.True(t, dec("10").Equal(r.TotalInvestment), "investment %s", r.TotalInvestment)
	assert.True(t, dec("-9.7").Equal(r.TotalProfit), "profit %s", r.TotalProfit)
}

// countingCache remembers the last report and counts invalidations. afterGeneration,
// when set, runs between reading the generation and building the report.
type countingCache struct {
	report          *model.ReportData
	generation      int64
	invalidated     int
	afterGeneration func()
}

func (c *countingCache) Get(context.Context) (*model.ReportData, bool, error) {
	return c.report, c.report != nil, nil
}

func (c *countingCache) Generation(context.Context) (int64, error) {
	gen := c.generation
	if c.afterGeneration != nil {
		c.afterGeneration()
	}
	return gen, nil
}

func (c *countingCache) Set(_ context.Context, r *model.ReportData, generation int64) error {
	if generation == c.generation {
		c.report = r
	}
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.report = nil
	c.generation++
	c.invalidated++
	return nil
}

var _ cache.ReportCache = (*countingCache)(nil)

func TestReportServiceCachesUntilWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rc := &countingCache{}
	deps := Deps{Cache: rc, Now: env.clock.Now}
	inventory := NewInventoryService(env.products, env.sales, env.db, deps)
	reports := NewReportService(env.products, env.sales, env.debts, repository.NewSnapshotRepo(env.db), deps)

	p, err := inventory.CreateProduct(ctx, &CreateProductRequest{Name: "Caneta", AcquisitionValue: dec("150"), Quantity: 50}, actor)
	require.NoError(t, err)

	first, err := reports.GetReport(ctx)
	require.NoError(t, err)
	assert.True(t, dec("150").Equal(first.TotalInvestment))
	assert.Same(t, first, rc.report)

	again, err := reports.GetReport(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = inventory.RecordSale(ctx, &RecordSaleRequest{ProductID: p.ID, QuantitySold: 10, SaleValue: dec("50")}, actor)
	require.NoError(t, err)
	assert.Equal(t, 2, rc.invalidated)

	fresh, err := reports.GetReport(ctx)
	require.NoError(t, err)
	assert.True(t, dec("120").Equal(fresh.TotalInvestment))
	assert.True(t, dec("20").Equal(fresh.TotalProfit))
	assert.Equal(t, env.clock.Now(), fresh.GeneratedAt)
}

func TestReportServiceSkipsCachingAfterConcurrentWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rc := &countingCache{}
	deps := Deps{Cache: rc, Now: env.clock.Now}
	inventory := NewInventoryService(env.products, env.sales, env.db, deps)
	reports := NewReportService(env.products, env.sales, env.debts, repository.NewSnapshotRepo(env.db), deps)

	_, err := inventory.CreateProduct(ctx, &CreateProductRequest{Name: "Régua", AcquisitionValue: dec("30"), Quantity: 3}, actor)
	require.NoError(t, err)

	rc.afterGeneration = func() {
		rc.afterGeneration = nil
		require.NoError(t, rc.Invalidate(ctx))
	}
	report, err := reports.GetReport(ctx)
	require.NoError(t, err)
	assert.NotNil(t, report)
	assert.Nil(t, rc.report, "a report built across an invalidation must not be cached")

	again, err := reports.GetReport(ctx)
	require.NoError(t, err)
	assert.Same(t, again, rc.report)
}

func TestReportServiceEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := createProduct(t, env, "Caneta", "150", 50)
	_, err := env.inventory.RecordSale(ctx, &RecordSaleRequest{ProductID: p.ID, QuantitySold: 10, SaleValue: dec("50")}, actor)
	require.NoError(t, err)
	_, err = env.inventory.RecordSale(ctx, &RecordSaleRequest{ProductID: p.ID, QuantitySold: 5, IsLoss: true, LossReason: "damaged"}, actor)
	require.NoError(t, err)
	payable := createDebt(t, env, model.DebtPayable, "40")
	_, err = env.debt.RegisterPayment(ctx, payable.ID, dec("15"), actor)
	require.NoError(t, err)

	in, err := env.report.GetAnalysisInput(ctx)
	require.NoError(t, err)
	assert.True(t, dec("105").Equal(in.ApproxAssets), "assets %s", in.ApproxAssets)
	assert.True(t, dec("25").Equal(in.ApproxLiabilities))
	assert.True(t, dec("80").Equal(in.ApproxNetWorth))
	assert.True(t, dec("5").Equal(in.TotalProfit))

	snap, err := env.report.SaveSnapshot(ctx, actor)
	require.NoError(t, err)
	require.NotEmpty(t, snap.ID)

	snaps, err := env.report.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	var stored model.ReportData
	require.NoError(t, json.Unmarshal(snaps[0].Payload, &stored))
	assert.True(t, dec("105").Equal(stored.TotalInvestment))
	assert.Equal(t, 2, stored.TotalSales)
}
