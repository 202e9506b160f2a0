package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOtherExpenseEntry(t *testing.T) {
	thirty := decimal.NewFromInt(30)

	withCost := OtherExpense{Meta: meta(), Cost: Amount(thirty)}
	withAmount := OtherExpense{Meta: meta(), Amount: Amount(thirty)}
	withNeither := OtherExpense{Meta: meta()}
	withBoth := OtherExpense{Meta: meta(), Cost: Amount(thirty), Amount: Amount(decimal.NewFromInt(99))}

	assert.True(t, withAmount.Entry().Amount.Equal(withCost.Entry().Amount))
	assert.True(t, withNeither.Entry().Amount.IsZero())
	assert.True(t, withBoth.Entry().Amount.Equal(thirty))
	assert.Equal(t, CategoryOther, withCost.Entry().Category)
}

func TestEntriesAndSum(t *testing.T) {
	fuel := []FuelExpense{
		{Meta: meta(), Cost: Amount(decimal.RequireFromString("100.10"))},
		{Meta: meta()}, // legacy row without cost
		{Meta: meta(), Cost: Amount(decimal.RequireFromString("0.20"))},
	}
	entries := Entries(fuel)

	assert.Len(t, entries, 3)
	assert.Equal(t, "T1", entries[0].TruckID)
	assert.Equal(t, "U1", entries[0].UserID)
	assert.True(t, Sum(entries).Equal(decimal.RequireFromString("100.30")))
	assert.True(t, Sum(nil).IsZero())
}

func TestIncomeEntry(t *testing.T) {
	in := Income{Meta: meta(), Amount: decimal.NewFromInt(500), Source: "freight"}
	e := in.Entry()
	assert.Equal(t, CategoryIncome, e.Category)
	assert.True(t, e.Amount.Equal(decimal.NewFromInt(500)))
	assert.True(t, e.Date.Equal(NewDate(2024, 1, 1)))
}
