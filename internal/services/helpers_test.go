package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fleetfinance/internal/core"
	"fleetfinance/internal/ledger"
	"fleetfinance/internal/ledger/memory"
)

// delayedStore wraps a store, delaying or failing Find.
type delayedStore[T any] struct {
	ledger.Store[T]
	delay time.Duration
	err   error
}

func (s delayedStore[T]) Find(ctx context.Context, f ledger.Filter) ([]T, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.Find(ctx, f)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func meta(truck, user string, y, m, d int) core.Meta {
	return core.Meta{TruckID: truck, UserID: user, Date: core.NewDate(y, m, d)}
}

// seedT1 loads the single-day example: 500 income against 200 of expenses.
func seedT1(t *testing.T, b *memory.Backend) {
	t.Helper()
	ctx := context.Background()
	m := meta("T1", "U1", 2024, 1, 1)

	_, err := b.Income.Insert(ctx, core.Income{Meta: m, Amount: dec("500"), Source: "freight"})
	require.NoError(t, err)
	_, err = b.Fuel.Insert(ctx, core.FuelExpense{Meta: m, Cost: core.Amount(dec("100"))})
	require.NoError(t, err)
	_, err = b.Def.Insert(ctx, core.DefExpense{Meta: m, Cost: core.Amount(dec("20"))})
	require.NoError(t, err)
	_, err = b.Other.Insert(ctx, core.OtherExpense{Meta: m, Amount: core.Amount(dec("30"))})
	require.NoError(t, err)
	_, err = b.Loan.Insert(ctx, core.LoanCalculation{Meta: m, Cost: core.Amount(dec("50"))})
	require.NoError(t, err)
}

func window(t *testing.T, from, to string) core.Window {
	t.Helper()
	w, err := core.ResolveWindow(from, to)
	require.NoError(t, err)
	return w
}
