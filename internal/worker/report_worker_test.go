package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetfinance/internal/amqp"
	"fleetfinance/internal/core"
	"fleetfinance/internal/ledger"
	"fleetfinance/internal/ledger/memory"
	"fleetfinance/internal/log"
	"fleetfinance/internal/services"
)

type failingFuel struct {
	ledger.Store[core.FuelExpense]
}

func (failingFuel) Find(context.Context, ledger.Filter) ([]core.FuelExpense, error) {
	return nil, errors.New("database is locked")
}

func event(truck string) amqp.RecordEvent {
	return amqp.NewRecordEvent(amqp.ActionCreated, core.CategoryIncome,
		core.Meta{ID: uuid.New(), TruckID: truck, UserID: "U1", Date: core.NewDate(2024, 1, 1)})
}

func TestReportWorker_HandleRecordEvent(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	m := core.Meta{TruckID: "T1", UserID: "U1", Date: core.NewDate(2024, 1, 1)}
	_, err := b.Income.Insert(ctx, core.Income{Meta: m, Amount: decimal.NewFromInt(500), Source: "freight"})
	require.NoError(t, err)
	_, err = b.Fuel.Insert(ctx, core.FuelExpense{Meta: m, Cost: core.Amount(decimal.NewFromInt(120))})
	require.NoError(t, err)

	w := NewReportWorker(services.NewAggregator(b.Stores(), nil), nil)

	require.NoError(t, w.HandleRecordEvent(ctx, event("T1")))
	got, ok := w.Latest("T1")
	require.True(t, ok)
	assert.Equal(t, "380", got.Profit.String())
	assert.Equal(t, "120", got.TotalExpense.String())

	require.NoError(t, w.HandleRecordEvent(ctx, event("T2")), "no income is not a failure")
	_, ok = w.Latest("T2")
	assert.False(t, ok)

	require.NoError(t, w.HandleRecordEvent(ctx, event("")), "unscoped events are dropped")
}

func TestReportWorker_StoreFailureRequeues(t *testing.T) {
	b := memory.New()
	stores := b.Stores()
	stores.Fuel = failingFuel{}
	w := NewReportWorker(services.NewAggregator(stores, nil), nil)

	err := w.HandleRecordEvent(context.Background(), event("T1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregate fuel")
}

func TestReportWorker_Snapshot(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	for _, truck := range []string{"T2", "T1"} {
		m := core.Meta{TruckID: truck, UserID: "U1", Date: core.NewDate(2024, 1, 1)}
		_, err := b.Income.Insert(ctx, core.Income{Meta: m, Amount: decimal.NewFromInt(100), Source: "freight"})
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: log.FormatJSON, Output: &buf})
	w := NewReportWorker(services.NewAggregator(b.Stores(), nil), logger)

	assert.Empty(t, w.Snapshot())

	require.NoError(t, w.HandleRecordEvent(ctx, event("T2")))
	require.NoError(t, w.HandleRecordEvent(ctx, event("T1")))

	snapshot := w.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "T1", snapshot[0].TruckID)
	assert.Equal(t, "T2", snapshot[1].TruckID)
	assert.Equal(t, "100", snapshot[1].Profit.String())

	buf.Reset()
	w.LogSnapshot(ctx)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"trucks":2`)
	assert.Contains(t, lines[1], `"truck_id":"T1"`)
	assert.Contains(t, lines[2], `"profit":"100"`)
}
