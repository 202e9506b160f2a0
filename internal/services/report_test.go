package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetfinance/internal/core"
	"fleetfinance/internal/ledger/memory"
)

type fakeResolver struct {
	mu    sync.Mutex
	calls map[string]int
	regs  map[string]string
	fail  map[string]bool
	hang  map[string]bool
	slow  map[string]time.Duration
}

func (f *fakeResolver) Registration(ctx context.Context, truckID string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[truckID]++
	f.mu.Unlock()

	if d, ok := f.slow[truckID]; ok {
		time.Sleep(d)
		return f.regs[truckID], nil
	}
	if f.hang[truckID] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.fail[truckID] {
		return "", errors.New("fleet service unavailable")
	}
	return f.regs[truckID], nil
}

func seedUser(t *testing.T) *memory.Backend {
	t.Helper()
	b := memory.New()
	ctx := context.Background()
	for i, truck := range []string{"T1", "T2", "T1", "T3", "T2"} {
		_, err := b.Income.Insert(ctx, core.Income{Meta: meta(truck, "U1", 2024, 2, i+1), Amount: dec("100"), Source: "freight"})
		require.NoError(t, err)
	}
	_, err := b.Fuel.Insert(ctx, core.FuelExpense{Meta: meta("T1", "U1", 2024, 2, 1), Cost: core.Amount(dec("120.50"))})
	require.NoError(t, err)
	return b
}

func TestTruckReport_ProfitAndRows(t *testing.T) {
	b := memory.New()
	seedT1(t, b)
	resolver := &fakeResolver{regs: map[string]string{"T1": "ABC-123"}}
	builder := NewReportBuilder(NewAggregator(b.Stores(), nil), resolver)

	rep, err := builder.TruckReport(context.Background(), "T1", window(t, "2024-01-01", "2024-01-01"))
	require.NoError(t, err)

	assert.Equal(t, "500", rep.TotalIncome.String())
	assert.Equal(t, "200", rep.TotalExpense.String())
	assert.Equal(t, "300", rep.Profit.String())
	require.Len(t, rep.Records, 1)
	assert.Equal(t, 0, rep.Records[0].Index)
	assert.Equal(t, "01 Jan 2024", rep.Records[0].DisplayDate)
	assert.Empty(t, rep.Records[0].RegistrationNo)
	assert.Empty(t, resolver.calls, "truck reports are not enriched")
}

func TestTruckReport_NotFound(t *testing.T) {
	b := memory.New()
	seedT1(t, b)
	builder := NewReportBuilder(NewAggregator(b.Stores(), nil), nil)

	_, err := builder.TruckReport(context.Background(), "T2", core.AllTime())
	assert.ErrorIs(t, err, core.ErrNoRecords)
}

func TestProfitIsExactAndSigned(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	m := meta("T1", "U1", 2024, 5, 5)
	_, err := b.Income.Insert(ctx, core.Income{Meta: m, Amount: dec("0.1"), Source: "a"})
	require.NoError(t, err)
	_, err = b.Income.Insert(ctx, core.Income{Meta: m, Amount: dec("0.2"), Source: "b"})
	require.NoError(t, err)
	_, err = b.Loan.Insert(ctx, core.LoanCalculation{Meta: m, Cost: core.Amount(dec("1000.45"))})
	require.NoError(t, err)

	rep, err := NewReportBuilder(NewAggregator(b.Stores(), nil), nil).TruckReport(ctx, "T1", core.AllTime())
	require.NoError(t, err)
	assert.Equal(t, "0.3", rep.TotalIncome.String())
	assert.Equal(t, "-1000.15", rep.Profit.String())
	assert.True(t, rep.Profit.Equal(rep.TotalIncome.Sub(rep.TotalExpense)))
}

func TestUserReport_Enrichment(t *testing.T) {
	resolver := &fakeResolver{
		regs: map[string]string{"T1": "ABC-123", "T3": ""},
		fail: map[string]bool{"T2": true},
	}
	builder := NewReportBuilder(NewAggregator(seedUser(t).Stores(), nil), resolver)

	rep, err := builder.UserReport(context.Background(), "U1", core.AllTime())
	require.NoError(t, err)
	require.Len(t, rep.Records, 5)

	want := []string{"ABC-123", "N/A", "ABC-123", "N/A", "N/A"}
	for i, row := range rep.Records {
		assert.Equal(t, i, row.Index)
		assert.Equal(t, want[i], row.RegistrationNo, "row %d", i)
	}
	assert.Equal(t, map[string]int{"T1": 1, "T2": 1, "T3": 1}, resolver.calls, "one lookup per distinct truck")
	assert.Equal(t, "379.5", rep.Profit.String())
}

func TestUserReport_LookupTimeoutIsIsolated(t *testing.T) {
	resolver := &fakeResolver{
		regs: map[string]string{"T1": "ABC-123", "T3": "GHI-789"},
		hang: map[string]bool{"T2": true},
	}
	builder := NewReportBuilder(NewAggregator(seedUser(t).Stores(), nil), resolver,
		WithLookupTimeout(20*time.Millisecond))

	start := time.Now()
	rep, err := builder.UserReport(context.Background(), "U1", core.AllTime())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	regs := map[string]string{}
	for _, row := range rep.Records {
		regs[row.TruckID] = row.RegistrationNo
	}
	assert.Equal(t, map[string]string{"T1": "ABC-123", "T2": "N/A", "T3": "GHI-789"}, regs)
}

func TestUserReport_LookupTimeoutIgnoredByResolver(t *testing.T) {
	resolver := &fakeResolver{
		regs: map[string]string{"T1": "ABC-123", "T2": "DEF-456", "T3": "GHI-789"},
		slow: map[string]time.Duration{"T2": 2 * time.Second},
	}
	builder := NewReportBuilder(NewAggregator(seedUser(t).Stores(), nil), resolver,
		WithLookupTimeout(20*time.Millisecond))

	start := time.Now()
	rep, err := builder.UserReport(context.Background(), "U1", core.AllTime())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	regs := map[string]string{}
	for _, row := range rep.Records {
		regs[row.TruckID] = row.RegistrationNo
	}
	assert.Equal(t, map[string]string{"T1": "ABC-123", "T2": "N/A", "T3": "GHI-789"}, regs)
}

func TestUserReport_ResolverPanicUsesPlaceholder(t *testing.T) {
	builder := NewReportBuilder(NewAggregator(seedUser(t).Stores(), nil), panicResolver{})

	rep, err := builder.UserReport(context.Background(), "U1", core.AllTime())
	require.NoError(t, err)
	for _, row := range rep.Records {
		assert.Equal(t, core.RegistrationPlaceholder, row.RegistrationNo)
	}
}

type panicResolver struct{}

func (panicResolver) Registration(context.Context, string) (string, error) {
	panic("fleet client bug")
}

func TestUserReport_NilResolverUsesPlaceholder(t *testing.T) {
	rep, err := NewReportBuilder(NewAggregator(seedUser(t).Stores(), nil), nil).
		UserReport(context.Background(), "U1", core.AllTime())
	require.NoError(t, err)
	for _, row := range rep.Records {
		assert.Equal(t, core.RegistrationPlaceholder, row.RegistrationNo)
	}
}

func TestReportRowJSON(t *testing.T) {
	b := memory.New()
	seedT1(t, b)
	rep, err := NewReportBuilder(NewAggregator(b.Stores(), nil), nil).TruckReport(context.Background(), "T1", core.AllTime())
	require.NoError(t, err)

	data, err := json.Marshal(rep)
	require.NoError(t, err)

	var decoded struct {
		Records []map[string]any `json:"records"`
		Profit  string           `json:"profit"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Records, 1)
	row := decoded.Records[0]
	assert.Equal(t, "T1", row["truckId"])
	assert.Equal(t, "2024-01-01", row["date"])
	assert.Equal(t, "01 Jan 2024", row["displayDate"])
	assert.Equal(t, "500", row["amount"])
	assert.NotContains(t, row, "registrationNo")
	assert.Equal(t, "300", decoded.Profit)
}
