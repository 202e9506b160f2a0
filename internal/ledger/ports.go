// Package ledger defines the record store ports the services depend on.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"fleetfinance/internal/core"
)

// ErrNotFound is returned by by-id operations when no record has the id.
var ErrNotFound = errors.New("record not found")

// Filter selects records by owner and date. A zero Scope matches every owner.
type Filter struct {
	Scope  core.Scope
	Window core.Window
}

// Match reports whether a record satisfies the filter.
func (f Filter) Match(m core.Meta) bool {
	if f.Scope.Kind() != core.ScopeNone && !f.Scope.Matches(m) {
		return false
	}
	return f.Window.Contains(m.Date)
}

type (
	// Store is a collection of one record type. Find returns records ordered
	// by date ascending, ties broken by insertion order.
	Store[T any] interface {
		Find(ctx context.Context, f Filter) ([]T, error)
		FindByID(ctx context.Context, id uuid.UUID) (T, error)
		Insert(ctx context.Context, rec T) (T, error)
		UpdateByID(ctx context.Context, id uuid.UUID, rec T) (T, error)
		DeleteByID(ctx context.Context, id uuid.UUID) error
	}

	// Stores bundles the five collections a backend provides.
	Stores struct {
		Income Store[core.Income]
		Fuel   Store[core.FuelExpense]
		Def    Store[core.DefExpense]
		Other  Store[core.OtherExpense]
		Loan   Store[core.LoanCalculation]
	}

	// Record is satisfied by pointers to the core record types, giving
	// generic stores access to the shared metadata.
	Record[T any] interface {
		*T
		Metadata() core.Meta
		SetMetadata(core.Meta)
	}

	// Pinger is implemented by backends that can report their health.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
