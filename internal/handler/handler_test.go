package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigef-backend/internal/model"
	"sigef-backend/internal/repository"
	"sigef-backend/internal/service"
	"sigef-backend/internal/testutil"
	"sigef-backend/pkg/jwt"
)

type testServer struct {
	t     *testing.T
	svc   Services
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewTestDB(t)

	log := logrus.New()
	log.SetOutput(io.Discard)
	deps := service.Deps{Log: log}

	productRepo := repository.NewProductRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	debtRepo := repository.NewDebtRepo(db)

	s := Services{
		Auth:        service.NewAuthService(repository.NewUserRepo(db), jwt.NewSigner("test-secret", time.Hour), deps),
		Inventory:   service.NewInventoryService(productRepo, saleRepo, db, deps),
		Debt:        service.NewDebtService(debtRepo, db, "BR", deps),
		Report:      service.NewReportService(productRepo, saleRepo, debtRepo, repository.NewSnapshotRepo(db), deps),
		Backup:      service.NewBackupService(productRepo, saleRepo, debtRepo, db, deps),
		Dashboard:   service.NewDashboardService(productRepo, saleRepo, deps),
		Idempotency: repository.NewIdempotencyRepo(db),
		Log:         log,
	}

	_, err := s.Auth.EnsureOwner(context.Background(), "owner@example.com", "secret123", "Owner")
	require.NoError(t, err)

	srv := &testServer{t: t, svc: s}
	var login service.LoginResponse
	status := srv.do("POST", "/api/v1/auth/login", map[string]string{"email": "owner@example.com", "password": "secret123"}, &login)
	require.Equal(t, 200, status)
	srv.token = login.Token
	return srv
}

func (s *testServer) do(method, path string, body any, out any, headers ...string) int {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := NewApp(s.svc).Test(req, -1)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	srv.token = ""
	assert.Equal(t, 401, srv.do("GET", "/api/v1/products", nil, nil))
}

func TestSaleFlowUpdatesStockAndReport(t *testing.T) {
	srv := newTestServer(t)

	var created envelope[model.Product]
	status := srv.do("POST", "/api/v1/products", map[string]any{
		"name": "Caderno", "acquisition_value": "100", "quantity": 10,
	}, &created)
	require.Equal(t, 201, status)
	productID := created.Data.ID

	var sale envelope[model.Sale]
	status = srv.do("POST", "/api/v1/sales", map[string]any{
		"product_id": productID, "quantity_sold": 3, "sale_value": "50",
	}, &sale)
	require.Equal(t, 201, status)
	assert.True(t, decimal.NewFromInt(20).Equal(sale.Data.Profit))

	var product model.Product
	require.Equal(t, 200, srv.do("GET", "/api/v1/products/"+productID, nil, &product))
	assert.Equal(t, 7, product.Quantity)

	var problem map[string]any
	status = srv.do("POST", "/api/v1/sales", map[string]any{
		"product_id": productID, "quantity_sold": 8, "sale_value": "10",
	}, &problem)
	assert.Equal(t, 409, status)
	assert.Equal(t, "insufficient_stock", problem["code"])

	status = srv.do("POST", "/api/v1/sales", map[string]any{
		"product_id": productID, "quantity_sold": 1, "is_loss": true,
	}, &problem)
	assert.Equal(t, 422, status)
	assert.Equal(t, "invalid_loss_reason", problem["code"])

	var report model.ReportData
	require.Equal(t, 200, srv.do("GET", "/api/v1/reports", nil, &report))
	assert.Equal(t, 1, report.TotalSales)
	assert.True(t, decimal.NewFromInt(50).Equal(report.TotalRevenue))
	assert.True(t, decimal.NewFromInt(20).Equal(report.TotalProfit))

	require.Equal(t, 200, srv.do("DELETE", "/api/v1/sales/"+sale.Data.ID, nil, nil))
	require.Equal(t, 200, srv.do("GET", "/api/v1/products/"+productID, nil, &product))
	assert.Equal(t, 10, product.Quantity)
}

func TestRecordSaleIsIdempotent(t *testing.T) {
	srv := newTestServer(t)

	var created envelope[model.Product]
	require.Equal(t, 201, srv.do("POST", "/api/v1/products", map[string]any{
		"name": "Caneta", "acquisition_value": "20", "quantity": 10,
	}, &created))

	body := map[string]any{"product_id": created.Data.ID, "quantity_sold": 2, "sale_value": "8"}
	var first, second envelope[model.Sale]
	require.Equal(t, 201, srv.do("POST", "/api/v1/sales", body, &first, "Idempotency-Key", "sale-1"))
	require.Equal(t, 201, srv.do("POST", "/api/v1/sales", body, &second, "Idempotency-Key", "sale-1"))
	assert.Equal(t, first.Data.ID, second.Data.ID)

	var product model.Product
	require.Equal(t, 200, srv.do("GET", "/api/v1/products/"+created.Data.ID, nil, &product))
	assert.Equal(t, 8, product.Quantity)
}

func TestDebtEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var debt envelope[model.Debt]
	require.Equal(t, 201, srv.do("POST", "/api/v1/debts", map[string]any{
		"type": "receivable", "description": "Fiado Maria", "amount": "100",
	}, &debt))
	assert.Equal(t, model.DebtPending, debt.Data.Status)

	require.Equal(t, 200, srv.do("POST", "/api/v1/debts/"+debt.Data.ID+"/payments", map[string]any{"value": "40"}, &debt))
	assert.Equal(t, model.DebtPartiallyPaid, debt.Data.Status)

	var problem map[string]any
	assert.Equal(t, 409, srv.do("POST", "/api/v1/debts/"+debt.Data.ID+"/payments", map[string]any{"value": "70"}, &problem))
	assert.Equal(t, "payment_exceeds_debt", problem["code"])

	require.Equal(t, 200, srv.do("POST", "/api/v1/debts/"+debt.Data.ID+"/pay", nil, &debt))
	assert.Equal(t, model.DebtPaid, debt.Data.Status)

	var debts []model.Debt
	require.Equal(t, 200, srv.do("GET", "/api/v1/debts?status=paid", nil, &debts))
	assert.Len(t, debts, 1)
	assert.Equal(t, 422, srv.do("GET", "/api/v1/debts?type=loan", nil, nil))

	assert.Equal(t, 404, srv.do("GET", "/api/v1/debts/missing", nil, nil))
}

func TestSalesListFilters(t *testing.T) {
	srv := newTestServer(t)

	var created envelope[model.Product]
	require.Equal(t, 201, srv.do("POST", "/api/v1/products", map[string]any{
		"name": "Bolsa", "acquisition_value": "60", "quantity": 6,
	}, &created))
	id := created.Data.ID
	require.Equal(t, 201, srv.do("POST", "/api/v1/sales", map[string]any{"product_id": id, "quantity_sold": 1, "sale_value": "30"}, nil))
	require.Equal(t, 201, srv.do("POST", "/api/v1/sales", map[string]any{"product_id": id, "quantity_sold": 1, "is_loss": true, "loss_reason": "rasgada"}, nil))

	var sales []model.Sale
	require.Equal(t, 200, srv.do("GET", "/api/v1/sales?is_loss=true", nil, &sales))
	require.Len(t, sales, 1)
	assert.True(t, sales[0].IsLoss)

	assert.Equal(t, 400, srv.do("GET", "/api/v1/sales?is_loss=maybe", nil, nil))
	assert.Equal(t, 400, srv.do("GET", "/api/v1/sales?from=yesterday", nil, nil))
}

func TestBackupExportImport(t *testing.T) {
	srv := newTestServer(t)

	require.Equal(t, 201, srv.do("POST", "/api/v1/products", map[string]any{
		"name": "Agenda", "acquisition_value": "30", "quantity": 3,
	}, nil))

	var doc service.BackupDocument
	require.Equal(t, 200, srv.do("GET", "/api/v1/backup", nil, &doc))
	require.Len(t, doc.Products, 1)
	assert.Equal(t, service.BackupVersion, doc.Version)

	var result envelope[service.ImportResult]
	require.Equal(t, 200, srv.do("POST", "/api/v1/backup?replace=true", doc, &result))
	assert.Equal(t, 1, result.Data.Products)
	assert.True(t, result.Data.Replaced)

	doc.Version = 99
	assert.Equal(t, 422, srv.do("POST", "/api/v1/backup", doc, nil))
}

func TestDashboardAndAnalysisInput(t *testing.T) {
	srv := newTestServer(t)

	require.Equal(t, 201, srv.do("POST", "/api/v1/products", map[string]any{
		"name": "Lápis", "acquisition_value": "10", "quantity": 2,
	}, nil))

	var stats service.DashboardStats
	require.Equal(t, 200, srv.do("GET", "/api/v1/dashboard/stats", nil, &stats))
	assert.Equal(t, 1, stats.TotalProducts)
	assert.Equal(t, 1, stats.LowStockCount)

	var input model.AnalysisInput
	require.Equal(t, 200, srv.do("GET", "/api/v1/reports/analysis-input", nil, &input))
	assert.True(t, decimal.NewFromInt(10).Equal(input.ApproxAssets))
}

func TestCreateDebtAcceptsDateOnlyDueDate(t *testing.T) {
	srv := newTestServer(t)

	var debt envelope[model.Debt]
	require.Equal(t, 201, srv.do("POST", "/api/v1/debts", map[string]any{
		"type": "payable", "description": "Fornecedor", "amount": "250", "due_date": "2026-10-20",
	}, &debt))
	require.NotNil(t, debt.Data.DueDate)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), debt.Data.DueDate.UTC())

	require.Equal(t, 200, srv.do("PUT", "/api/v1/debts/"+debt.Data.ID, map[string]any{"due_date": "2026-11-05"}, &debt))
	assert.Equal(t, time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC), debt.Data.DueDate.UTC())

	assert.Equal(t, 400, srv.do("POST", "/api/v1/debts", map[string]any{
		"type": "payable", "description": "Fornecedor", "amount": "250", "due_date": "20/10/2026",
	}, nil))
}
