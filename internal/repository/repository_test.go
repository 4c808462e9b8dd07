package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sigef-backend/internal/model"
	"sigef-backend/internal/testutil"
)

func intPtr(v int) *int { return &v }

func TestProductRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewProductRepo(db)

	p := &model.Product{Name: "Caneta", AcquisitionValue: decimal.NewFromInt(100), Quantity: 10, InitialQuantity: intPtr(10)}
	require.NoError(t, repo.Create(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Caneta", got.Name)
	assert.True(t, decimal.NewFromInt(100).Equal(got.AcquisitionValue))

	err = db.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		locked, err := txRepo.FindByIDForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		return txRepo.UpdateQuantity(ctx, locked.ID, 7, "tester")
	})
	require.NoError(t, err)

	got, err = repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Quantity)
	assert.Equal(t, "tester", got.UpdatedBy)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, model.ErrProductNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), model.ErrProductNotFound)
}

func TestProductUpsertKeepsIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepo(testutil.NewTestDB(t))

	products := []model.Product{
		{BaseModel: model.BaseModel{ID: "p-1"}, Name: "A", Quantity: 1},
		{BaseModel: model.BaseModel{ID: "p-2"}, Name: "B", Quantity: 2},
	}
	require.NoError(t, repo.Upsert(ctx, products))

	products[0].Name = "A2"
	require.NoError(t, repo.Upsert(ctx, products[:1]))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	got, err := repo.FindByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "A2", got.Name)

	require.NoError(t, repo.DeleteAll(ctx))
	all, err = repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSaleRepoFiltersAndCascade(t *testing.T) {
	ctx := context.Background()
	repo := NewSaleRepo(testutil.NewTestDB(t))

	reason := "quebrou"
	sales := []*model.Sale{
		{ProductID: "p-1", ProductName: "A", QuantitySold: 2, SaleValue: decimal.NewFromInt(30)},
		{ProductID: "p-1", ProductName: "A", QuantitySold: 1, IsLoss: true, LossReason: &reason},
		{ProductID: "p-2", ProductName: "B", QuantitySold: 4, SaleValue: decimal.NewFromInt(80)},
	}
	for _, s := range sales {
		require.NoError(t, repo.Create(ctx, s))
	}

	all, err := repo.FindAll(ctx, SaleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byProduct, err := repo.FindAll(ctx, SaleFilter{ProductID: "p-1"})
	require.NoError(t, err)
	assert.Len(t, byProduct, 2)

	isLoss := true
	losses, err := repo.FindAll(ctx, SaleFilter{IsLoss: &isLoss})
	require.NoError(t, err)
	require.Len(t, losses, 1)
	assert.Equal(t, "quebrou", *losses[0].LossReason)

	movement, err := repo.GetDailyMovement(ctx, time.Now().Add(-24*time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	sold, lost := 0, 0
	for _, m := range movement {
		sold += m.UnitsSold
		lost += m.UnitsLost
	}
	assert.Equal(t, 6, sold)
	assert.Equal(t, 1, lost)

	n, err := repo.DeleteByProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.FindByID(ctx, sales[0].ID)
	assert.ErrorIs(t, err, model.ErrSaleNotFound)
}

func TestDebtRepoFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewDebtRepo(testutil.NewTestDB(t))
	now := time.Now()
	past := now.Add(-48 * time.Hour)

	overdue, err := model.NewDebt(model.DebtReceivable, "fiado", decimal.NewFromInt(50))
	require.NoError(t, err)
	overdue.DueDate = &past
	require.NoError(t, repo.Create(ctx, overdue))

	paid, err := model.NewDebt(model.DebtPayable, "fornecedor", decimal.NewFromInt(20))
	require.NoError(t, err)
	paid.DueDate = &past
	full := decimal.NewFromInt(20)
	require.NoError(t, paid.ApplyUpdate(model.DebtUpdate{AmountPaid: &full}, now))
	require.NoError(t, repo.Create(ctx, paid))

	receivables, err := repo.FindAll(ctx, DebtFilter{Type: model.DebtReceivable})
	require.NoError(t, err)
	require.Len(t, receivables, 1)
	assert.Equal(t, overdue.ID, receivables[0].ID)

	late, err := repo.FindAll(ctx, DebtFilter{OverdueAt: &now})
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, overdue.ID, late[0].ID)

	settled, err := repo.FindAll(ctx, DebtFilter{Status: model.DebtPaid})
	require.NoError(t, err)
	require.Len(t, settled, 1)
	assert.NotNil(t, settled[0].PaidAt)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrDebtNotFound)
}

func TestIdempotencyRepoReserveAndComplete(t *testing.T) {
	ctx := context.Background()
	repo := NewIdempotencyRepo(testutil.NewTestDB(t))

	rec, created, err := repo.Reserve(ctx, &model.IdempotencyKey{Key: "k1", RequestHash: "h1", Method: "POST", Path: "/x"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, rec.ResponseStatus)

	again, created, err := repo.Reserve(ctx, &model.IdempotencyKey{Key: "k1", RequestHash: "other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "h1", again.RequestHash)

	require.NoError(t, repo.Complete(ctx, "k1", 201, []byte(`{"ok":true}`)))
	done, _, err := repo.Reserve(ctx, &model.IdempotencyKey{Key: "k1", RequestHash: "h1"})
	require.NoError(t, err)
	assert.Equal(t, 201, done.ResponseStatus)
	assert.JSONEq(t, `{"ok":true}`, string(done.ResponseBody))

	// completed keys survive a release
	require.NoError(t, repo.Release(ctx, "k1"))
	done, created, err = repo.Reserve(ctx, &model.IdempotencyKey{Key: "k1", RequestHash: "h1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 201, done.ResponseStatus)

	_, _, err = repo.Reserve(ctx, &model.IdempotencyKey{Key: "k2", RequestHash: "h2"})
	require.NoError(t, err)
	require.NoError(t, repo.Release(ctx, "k2"))
	fresh, created, err := repo.Reserve(ctx, &model.IdempotencyKey{Key: "k2", RequestHash: "h3"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "h3", fresh.RequestHash)
}
