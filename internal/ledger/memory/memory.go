// Package memory provides an in-process backend for the ledger stores. It is
// the default backend for local development and the fixture for service tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetfinance/internal/core"
	"fleetfinance/internal/ledger"
)

type item[T any] struct {
	seq int64
	rec T
}

// Collection keeps records in insertion order.
type Collection[T any, P ledger.Record[T]] struct {
	mu    sync.RWMutex
	seq   int64
	items []item[T]
	now   func() time.Time
}

func NewCollection[T any, P ledger.Record[T]]() *Collection[T, P] {
	return &Collection[T, P]{now: time.Now}
}

func metaOf[T any, P ledger.Record[T]](rec *T) core.Meta {
	return P(rec).Metadata()
}

// Find returns matching records by date, then insertion order.
func (c *Collection[T, P]) Find(_ context.Context, f ledger.Filter) ([]T, error) {
	c.mu.RLock()
	matched := make([]item[T], 0, len(c.items))
	for _, it := range c.items {
		if f.Match(metaOf[T, P](&it.rec)) {
			matched = append(matched, it)
		}
	}
	c.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b item[T]) int {
		da, db := metaOf[T, P](&a.rec).Date, metaOf[T, P](&b.rec).Date
		if byDate := da.Compare(db.Time); byDate != 0 {
			return byDate
		}
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	out := make([]T, len(matched))
	for i, it := range matched {
		out[i] = it.rec
	}
	return out, nil
}

func (c *Collection[T, P]) FindByID(_ context.Context, id uuid.UUID) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.items[i].rec, nil
	}
	var zero T
	return zero, ledger.ErrNotFound
}

// Insert stores rec, assigning an id and creation time when missing.
func (c *Collection[T, P]) Insert(_ context.Context, rec T) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := metaOf[T, P](&rec)
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = c.now().UTC()
	}
	if c.indexOf(m.ID) >= 0 {
		var zero T
		return zero, fmt.Errorf("insert %s: duplicate id", m.ID)
	}
	P(&rec).SetMetadata(m)

	c.seq++
	c.items = append(c.items, item[T]{seq: c.seq, rec: rec})
	return rec, nil
}

// UpdateByID replaces the record, keeping its id, creation time and position.
func (c *Collection[T, P]) UpdateByID(_ context.Context, id uuid.UUID, rec T) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		var zero T
		return zero, ledger.ErrNotFound
	}
	prev := metaOf[T, P](&c.items[i].rec)
	m := metaOf[T, P](&rec)
	m.ID = prev.ID
	m.CreatedAt = prev.CreatedAt
	P(&rec).SetMetadata(m)

	c.items[i].rec = rec
	return rec, nil
}

func (c *Collection[T, P]) DeleteByID(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return ledger.ErrNotFound
	}
	c.items = slices.Delete(c.items, i, i+1)
	return nil
}

// Len returns the number of stored records.
func (c *Collection[T, P]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Collection[T, P]) indexOf(id uuid.UUID) int {
	for i := range c.items {
		if metaOf[T, P](&c.items[i].rec).ID == id {
			return i
		}
	}
	return -1
}

// Backend holds one collection per record type.
type Backend struct {
	Income *Collection[core.Income, *core.Income]
	Fuel   *Collection[core.FuelExpense, *core.FuelExpense]
	Def    *Collection[core.DefExpense, *core.DefExpense]
	Other  *Collection[core.OtherExpense, *core.OtherExpense]
	Loan   *Collection[core.LoanCalculation, *core.LoanCalculation]
}

func New() *Backend {
	return &Backend{
		Income: NewCollection[core.Income](),
		Fuel:   NewCollection[core.FuelExpense](),
		Def:    NewCollection[core.DefExpense](),
		Other:  NewCollection[core.OtherExpense](),
		Loan:   NewCollection[core.LoanCalculation](),
	}
}

// Stores exposes the collections through the ledger ports.
func (b *Backend) Stores() ledger.Stores {
	return ledger.Stores{
		Income: b.Income,
		Fuel:   b.Fuel,
		Def:    b.Def,
		Other:  b.Other,
		Loan:   b.Loan,
	}
}

// Ping always succeeds for the in-process backend.
func (b *Backend) Ping(context.Context) error {
	return nil
}

// Seed is the on-disk layout accepted by NewFromFile.
type Seed struct {
	Income []core.Income          `json:"income"`
	Fuel   []core.FuelExpense     `json:"fuelExpenses"`
	Def    []core.DefExpense      `json:"defExpenses"`
	Other  []core.OtherExpense    `json:"otherExpenses"`
	Loan   []core.LoanCalculation `json:"loanCalculations"`
}

// NewFromFile returns a backend seeded from a JSON file. A missing file
// yields an empty backend.
func NewFromFile(path string) (*Backend, error) {
	b := New()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	ctx := context.Background()
	if err := seedAll(ctx, b.Income, seed.Income); err != nil {
		return nil, err
	}
	if err := seedAll(ctx, b.Fuel, seed.Fuel); err != nil {
		return nil, err
	}
	if err := seedAll(ctx, b.Def, seed.Def); err != nil {
		return nil, err
	}
	if err := seedAll(ctx, b.Other, seed.Other); err != nil {
		return nil, err
	}
	if err := seedAll(ctx, b.Loan, seed.Loan); err != nil {
		return nil, err
	}
	return b, nil
}

func seedAll[T any, P ledger.Record[T]](ctx context.Context, c *Collection[T, P], recs []T) error {
	for _, r := range recs {
		if _, err := c.Insert(ctx, r); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}
