package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fleetfinance/internal/core"
	"fleetfinance/internal/ledger"
	"fleetfinance/internal/log"
)

// Aggregation is the combined view of one scope and window: income rows in
// date order plus the summed expense categories.
type Aggregation struct {
	Scope        core.Scope
	Window       core.Window
	Incomes      []core.Income
	TotalIncome  decimal.Decimal
	Categories   []core.CategoryTotal
	TotalExpense decimal.Decimal
}

// Profit is income minus expense, signed and unrounded.
func (a Aggregation) Profit() decimal.Decimal {
	return a.TotalIncome.Sub(a.TotalExpense)
}

// ExpenseSummary breaks a truck's expenses down by category.
type ExpenseSummary struct {
	TotalExpenses    decimal.Decimal      `json:"totalExpenses"`
	FuelExpenses     decimal.Decimal      `json:"fuelExpenses"`
	DefExpenses      decimal.Decimal      `json:"defExpenses"`
	OtherExpenses    decimal.Decimal      `json:"otherExpenses"`
	LoanExpenses     decimal.Decimal      `json:"loanExpenses"`
	Breakdown        []core.CategoryTotal `json:"breakdown"`
	Period           string               `json:"period"`
	TransactionCount int                  `json:"transactionCount"`
}

// Aggregator reads the five collections for a scope and window and sums them.
type Aggregator struct {
	stores ledger.Stores
	logger *log.Logger
}

func NewAggregator(stores ledger.Stores, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Aggregator{
		stores: stores,
		logger: logger.WithComponent(log.ComponentAggregator),
	}
}

type snapshot struct {
	incomes  []core.Income
	expenses [][]core.Entry // indexed like core.ExpenseCategories
}

// load issues every read concurrently with the same filter. The first
// failure cancels the remaining reads and is returned alone.
func (a *Aggregator) load(ctx context.Context, f ledger.Filter, withIncome bool) (snapshot, error) {
	var snap snapshot
	snap.expenses = make([][]core.Entry, len(core.ExpenseCategories))

	g, gctx := errgroup.WithContext(ctx)
	if withIncome {
		g.Go(func() error {
			recs, err := a.stores.Income.Find(gctx, f)
			if err != nil {
				return fmt.Errorf("aggregate %s: %w", core.CategoryIncome, err)
			}
			snap.incomes = recs
			return nil
		})
	}
	readEntries(g, gctx, core.CategoryFuel, a.stores.Fuel, f, &snap.expenses[0])
	readEntries(g, gctx, core.CategoryDef, a.stores.Def, f, &snap.expenses[1])
	readEntries(g, gctx, core.CategoryOther, a.stores.Other, f, &snap.expenses[2])
	readEntries(g, gctx, core.CategoryLoan, a.stores.Loan, f, &snap.expenses[3])

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func readEntries[T core.Entrier](g *errgroup.Group, ctx context.Context, c core.Category, store ledger.Store[T], f ledger.Filter, dst *[]core.Entry) {
	g.Go(func() error {
		recs, err := store.Find(ctx, f)
		if err != nil {
			return fmt.Errorf("aggregate %s: %w", c, err)
		}
		*dst = core.Entries(recs)
		return nil
	})
}

func categoryTotals(expenses [][]core.Entry) ([]core.CategoryTotal, decimal.Decimal, int) {
	totals := make([]core.CategoryTotal, len(core.ExpenseCategories))
	grand := decimal.Zero
	count := 0
	for i, c := range core.ExpenseCategories {
		sum := core.Sum(expenses[i])
		totals[i] = core.CategoryTotal{Category: c, Amount: sum, Count: len(expenses[i])}
		grand = grand.Add(sum)
		count += len(expenses[i])
	}
	for i := range totals {
		totals[i].Percentage = core.Percentage(totals[i].Amount, grand)
	}
	return totals, grand, count
}

// Aggregate returns income and expense totals for the scope and window.
// Scopes without any income in the window yield core.ErrNoRecords, even when
// expenses exist.
func (a *Aggregator) Aggregate(ctx context.Context, scope core.Scope, window core.Window) (Aggregation, error) {
	if err := scope.Validate(); err != nil {
		return Aggregation{}, err
	}

	snap, err := a.load(ctx, ledger.Filter{Scope: scope, Window: window}, true)
	if err != nil {
		a.logger.ErrorContext(ctx, "Aggregation failed",
			log.NewFields().WithQuery(scope, window).WithError(err).WithOperation(log.OpAggregate).ToSlice()...)
		return Aggregation{}, err
	}
	if len(snap.incomes) == 0 {
		return Aggregation{}, fmt.Errorf("%w: %s, %s", core.ErrNoRecords, scope, window)
	}

	cats, totalExpense, _ := categoryTotals(snap.expenses)
	agg := Aggregation{
		Scope:        scope,
		Window:       window,
		Incomes:      snap.incomes,
		TotalIncome:  core.Sum(core.Entries(snap.incomes)),
		Categories:   cats,
		TotalExpense: totalExpense,
	}

	a.logger.DebugContext(ctx, "Aggregated records",
		append(log.NewFields().WithQuery(scope, window).ToSlice(),
			log.FieldCount, len(snap.incomes),
			"total_income", agg.TotalIncome.String(),
			"total_expense", agg.TotalExpense.String())...)
	return agg, nil
}

// ExpenseSummary totals the four expense categories for a scope and window.
// An empty result is a valid all-zero summary.
func (a *Aggregator) ExpenseSummary(ctx context.Context, scope core.Scope, window core.Window) (ExpenseSummary, error) {
	if err := scope.Validate(); err != nil {
		return ExpenseSummary{}, err
	}

	snap, err := a.load(ctx, ledger.Filter{Scope: scope, Window: window}, false)
	if err != nil {
		a.logger.ErrorContext(ctx, "Expense summary failed",
			log.NewFields().WithQuery(scope, window).WithError(err).WithOperation(log.OpAggregate).ToSlice()...)
		return ExpenseSummary{}, err
	}

	cats, total, count := categoryTotals(snap.expenses)
	return ExpenseSummary{
		TotalExpenses:    total,
		FuelExpenses:     cats[0].Amount,
		DefExpenses:      cats[1].Amount,
		OtherExpenses:    cats[2].Amount,
		LoanExpenses:     cats[3].Amount,
		Breakdown:        cats,
		Period:           window.String(),
		TransactionCount: count,
	}, nil
}
