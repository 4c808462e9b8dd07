package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestStatusFor(t *testing.T) {
	amount := dec("100")
	tests := []struct {
		paid string
		want DebtStatus
	}{
		{"0", DebtPending},
		{"0.01", DebtPartiallyPaid},
		{"40", DebtPartiallyPaid},
		{"99.99", DebtPartiallyPaid},
		{"100", DebtPaid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(amount, dec(tt.paid)), "paid %s", tt.paid)
	}
}

func TestApplyUpdateScenario(t *testing.T) {
	debt, err := NewDebt(DebtReceivable, "Venda fiado", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, DebtPending, debt.Status)
	assert.Nil(t, debt.PaidAt)

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, debt.ApplyUpdate(DebtUpdate{AmountPaid: decPtr("40")}, first))
	assert.Equal(t, DebtPartiallyPaid, debt.Status)
	assert.Nil(t, debt.PaidAt)

	second := first.Add(24 * time.Hour)
	require.NoError(t, debt.ApplyUpdate(DebtUpdate{AmountPaid: decPtr("100")}, second))
	assert.Equal(t, DebtPaid, debt.Status)
	require.NotNil(t, debt.PaidAt)
	assert.Equal(t, second, *debt.PaidAt)

	// Re-submitting the same payment keeps the original pay date.
	third := second.Add(24 * time.Hour)
	require.NoError(t, debt.ApplyUpdate(DebtUpdate{AmountPaid: decPtr("100")}, third))
	assert.Equal(t, DebtPaid, debt.Status)
	assert.Equal(t, second, *debt.PaidAt)
}

func TestApplyUpdateAmountAloneFlipsStatus(t *testing.T) {
	now := time.Now()
	debt, err := NewDebt(DebtPayable, "Fornecedor", dec("50"))
	require.NoError(t, err)
	require.NoError(t, debt.ApplyUpdate(DebtUpdate{AmountPaid: decPtr("50")}, now))
	require.Equal(t, DebtPaid, debt.Status)

	require.NoError(t, debt.ApplyUpdate(DebtUpdate{Amount: decPtr("80")}, now))
	assert.Equal(t, DebtPartiallyPaid, debt.Status)
	assert.Nil(t, debt.PaidAt)

	require.NoError(t, debt.ApplyUpdate(DebtUpdate{AmountPaid: decPtr("0")}, now))
	assert.Equal(t, DebtPending, debt.Status)
}

func TestApplyUpdateRejectsInvalidAmounts(t *testing.T) {
	now := time.Now()
	debt, err := NewDebt(DebtPayable, "Aluguel", dec("100"))
	require.NoError(t, err)
	require.NoError(t, debt.ApplyUpdate(DebtUpdate{AmountPaid: decPtr("60")}, now))

	assert.ErrorIs(t, debt.ApplyUpdate(DebtUpdate{AmountPaid: decPtr("100.01")}, now), ErrPaymentExceedsDebt)
	assert.ErrorIs(t, debt.ApplyUpdate(DebtUpdate{Amount: decPtr("50")}, now), ErrPaymentExceedsDebt)
	assert.ErrorIs(t, debt.ApplyUpdate(DebtUpdate{AmountPaid: decPtr("-1")}, now), ErrInvalidAmount)
	assert.ErrorIs(t, debt.ApplyUpdate(DebtUpdate{Amount: decPtr("0")}, now), ErrInvalidAmount)

	// failed updates leave the debt as it was
	assert.True(t, dec("100").Equal(debt.Amount))
	assert.True(t, dec("60").Equal(debt.AmountPaid))
	assert.Equal(t, DebtPartiallyPaid, debt.Status)
}

func TestApplyUpdateMergesOptionalFields(t *testing.T) {
	now := time.Now()
	debt, err := NewDebt(DebtReceivable, "old", dec("10"))
	require.NoError(t, err)

	due := now.Add(72 * time.Hour)
	name := "Maria"
	desc := "new"
	require.NoError(t, debt.ApplyUpdate(DebtUpdate{Description: &desc, DueDate: &due, ContactName: &name}, now))
	assert.Equal(t, "new", debt.Description)
	assert.Equal(t, due, *debt.DueDate)
	assert.Equal(t, "Maria", *debt.ContactName)

	require.NoError(t, debt.ApplyUpdate(DebtUpdate{ClearDueDate: true}, now))
	assert.Nil(t, debt.DueDate)
}

func TestNewDebtValidation(t *testing.T) {
	_, err := NewDebt("loan", "x", dec("1"))
	assert.ErrorIs(t, err, ErrInvalidDebtType)

	_, err = NewDebt(DebtPayable, "x", dec("0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	debt := &Debt{Amount: dec("10"), AmountPaid: dec("0"), Status: DebtPending, DueDate: &past}
	assert.True(t, debt.IsOverdue(now))

	debt.AmountPaid = dec("10")
	debt.RecomputeStatus(now)
	assert.False(t, debt.IsOverdue(now))
	assert.True(t, debt.Remaining().IsZero())
}
