package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fleetfinance/internal/core"
	"fleetfinance/internal/log"
)

// DefaultLookupTimeout bounds a single registration lookup.
const DefaultLookupTimeout = 3 * time.Second

// RegistrationResolver turns a truck id into its registration number.
type RegistrationResolver interface {
	Registration(ctx context.Context, truckID string) (string, error)
}

// ReportRow is one income record prepared for presentation.
type ReportRow struct {
	core.Income
	Index          int    `json:"index"`
	DisplayDate    string `json:"displayDate"`
	RegistrationNo string `json:"registrationNo,omitempty"`
}

// Report is the financial summary of a scope and window.
type Report struct {
	Records      []ReportRow     `json:"records"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	Profit       decimal.Decimal `json:"profit"`
}

// ReportBuilder derives profit from an aggregation and formats its rows.
type ReportBuilder struct {
	aggregator    *Aggregator
	resolver      RegistrationResolver
	lookupTimeout time.Duration
	logger        *log.Logger
}

// ReportOption configures a ReportBuilder.
type ReportOption func(*ReportBuilder)

func WithLookupTimeout(d time.Duration) ReportOption {
	return func(b *ReportBuilder) {
		if d > 0 {
			b.lookupTimeout = d
		}
	}
}

func WithReportLogger(logger *log.Logger) ReportOption {
	return func(b *ReportBuilder) {
		if logger != nil {
			b.logger = logger.WithComponent(log.ComponentReport)
		}
	}
}

// NewReportBuilder creates a builder. A nil resolver turns every
// registration into the placeholder.
func NewReportBuilder(aggregator *Aggregator, resolver RegistrationResolver, opts ...ReportOption) *ReportBuilder {
	b := &ReportBuilder{
		aggregator:    aggregator,
		resolver:      resolver,
		lookupTimeout: DefaultLookupTimeout,
		logger:        log.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TruckReport summarises one truck. No enrichment is done.
func (b *ReportBuilder) TruckReport(ctx context.Context, truckID string, window core.Window) (Report, error) {
	agg, err := b.aggregator.Aggregate(ctx, core.ByTruck(truckID), window)
	if err != nil {
		return Report{}, err
	}
	return buildReport(agg, nil), nil
}

// UserReport summarises every truck of a user, annotating each row with the
// registration number of its truck.
func (b *ReportBuilder) UserReport(ctx context.Context, userID string, window core.Window) (Report, error) {
	agg, err := b.aggregator.Aggregate(ctx, core.ByUser(userID), window)
	if err != nil {
		return Report{}, err
	}
	return buildReport(agg, b.registrations(ctx, agg.Incomes)), nil
}

func buildReport(agg Aggregation, registrations map[string]string) Report {
	rows := make([]ReportRow, len(agg.Incomes))
	for i, in := range agg.Incomes {
		rows[i] = ReportRow{
			Income:      in,
			Index:       i,
			DisplayDate: in.Date.Display(),
		}
		if registrations != nil {
			rows[i].RegistrationNo = registrations[in.TruckID]
		}
	}
	return Report{
		Records:      rows,
		TotalIncome:  agg.TotalIncome,
		TotalExpense: agg.TotalExpense,
		Profit:       agg.Profit(),
	}
}

// registrations looks up every distinct truck once, concurrently. It never
// fails: a lookup error or timeout maps that truck to the placeholder.
func (b *ReportBuilder) registrations(ctx context.Context, incomes []core.Income) map[string]string {
	seen := make(map[string]struct{})
	var ids []string
	for _, in := range incomes {
		if _, ok := seen[in.TruckID]; !ok {
			seen[in.TruckID] = struct{}{}
			ids = append(ids, in.TruckID)
		}
	}

	out := make(map[string]string, len(ids))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg := b.lookup(ctx, id)
			mu.Lock()
			out[id] = reg
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

type lookupResult struct {
	reg string
	err error
}

func (b *ReportBuilder) lookup(ctx context.Context, truckID string) string {
	if b.resolver == nil {
		return core.RegistrationPlaceholder
	}

	ctx, cancel := context.WithTimeout(ctx, b.lookupTimeout)
	defer cancel()

	// buffered: the sender never blocks once the select has given up
	done := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- lookupResult{err: fmt.Errorf("registration lookup panicked: %v", r)}
			}
		}()
		reg, err := b.resolver.Registration(ctx, truckID)
		done <- lookupResult{reg: reg, err: err}
	}()

	var res lookupResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		fields := log.NewFields().WithError(res.err).WithOperation(log.OpEnrich)
		fields[log.FieldTruckID] = truckID
		b.logger.WarnContext(ctx, "Failed to fetch truck registration", fields.ToSlice()...)
		return core.RegistrationPlaceholder
	}
	if res.reg == "" {
		return core.RegistrationPlaceholder
	}
	return res.reg
}
