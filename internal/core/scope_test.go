package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope(t *testing.T) {
	truck := ByTruck(" T1 ")
	assert.NoError(t, truck.Validate())
	assert.Equal(t, ScopeTruck, truck.Kind())
	assert.Equal(t, "truck:T1", truck.String())
	assert.True(t, truck.Matches(Meta{TruckID: "T1", UserID: "anyone"}))
	assert.False(t, truck.Matches(Meta{TruckID: "T2", UserID: "U1"}))

	user := ByUser("U1")
	assert.NoError(t, user.Validate())
	assert.Equal(t, ScopeUser, user.Kind())
	assert.True(t, user.Matches(Meta{TruckID: "T9", UserID: "U1"}))

	assert.ErrorIs(t, Scope{}.Validate(), ErrInvalidScope)
	assert.ErrorIs(t, ByTruck("   ").Validate(), ErrInvalidScope)
	assert.ErrorIs(t, Scope{TruckID: "T1", UserID: "U1"}.Validate(), ErrInvalidScope)
	assert.False(t, Scope{TruckID: "T1", UserID: "U1"}.Matches(Meta{TruckID: "T1", UserID: "U1"}))
}
