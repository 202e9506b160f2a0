package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetfinance/internal/core"
)

func TestFilterMatch(t *testing.T) {
	rec := core.Meta{TruckID: "T1", UserID: "U1", Date: core.NewDate(2024, 1, 10)}

	w, err := core.NewWindow(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	require.NoError(t, err)

	assert.True(t, Filter{}.Match(rec))
	assert.True(t, Filter{Scope: core.ByTruck("T1")}.Match(rec))
	assert.True(t, Filter{Scope: core.ByUser("U1"), Window: w}.Match(rec))
	assert.False(t, Filter{Scope: core.ByTruck("T2")}.Match(rec))

	feb, err := core.NewWindow(core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 1))
	require.NoError(t, err)
	assert.False(t, Filter{Scope: core.ByTruck("T1"), Window: feb}.Match(rec))
}
