package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fleetfinance/internal/amqp"
	"fleetfinance/internal/core"
	"fleetfinance/internal/log"
	"fleetfinance/internal/services"
)

// Totals is the all-time position of a truck after the last processed event.
type Totals struct {
	TruckID      string
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Profit       decimal.Decimal
	ComputedAt   time.Time
}

// ReportWorker recomputes a truck's totals whenever one of its records changes
type ReportWorker struct {
	aggregator *services.Aggregator
	logger     *log.Logger

	mu     sync.RWMutex
	latest map[string]Totals
}

func NewReportWorker(aggregator *services.Aggregator, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportWorker{
		aggregator: aggregator,
		logger:     logger.WithComponent(log.ComponentWorker),
		latest:     make(map[string]Totals),
	}
}

// HandleRecordEvent processes a single record event from AMQP. A truck left
// without income is dropped from the latest totals rather than treated as a
// failure.
func (w *ReportWorker) HandleRecordEvent(ctx context.Context, ev amqp.RecordEvent) error {
	w.logger.InfoContext(ctx, "Processing record event",
		"action", ev.Action,
		log.FieldCategory, ev.Category,
		log.FieldRecordID, ev.ID,
		log.FieldTruckID, ev.TruckID)

	agg, err := w.aggregator.Aggregate(ctx, core.ByTruck(ev.TruckID), core.AllTime())
	switch {
	case errors.Is(err, core.ErrNoRecords):
		w.mu.Lock()
		delete(w.latest, ev.TruckID)
		w.mu.Unlock()
		w.logger.InfoContext(ctx, "Truck has no income yet", log.FieldTruckID, ev.TruckID)
		return nil
	case core.IsInputError(err):
		// a retry cannot fix a bad event
		w.logger.WarnContext(ctx, "Dropping record event", log.FieldTruckID, ev.TruckID, log.FieldError, err)
		return nil
	case err != nil:
		return fmt.Errorf("recompute totals for truck %s: %w", ev.TruckID, err)
	}

	totals := Totals{
		TruckID:      ev.TruckID,
		TotalIncome:  agg.TotalIncome,
		TotalExpense: agg.TotalExpense,
		Profit:       agg.Profit(),
		ComputedAt:   time.Now().UTC(),
	}
	w.mu.Lock()
	w.latest[ev.TruckID] = totals
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Truck totals recomputed",
		log.FieldTruckID, ev.TruckID,
		"total_income", totals.TotalIncome.String(),
		"total_expense", totals.TotalExpense.String(),
		"profit", totals.Profit.String())
	return nil
}

// Latest returns the last computed totals of a truck.
func (w *ReportWorker) Latest(truckID string) (Totals, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.latest[truckID]
	return t, ok
}

// Snapshot returns the latest totals of every tracked truck, ordered by truck id.
func (w *ReportWorker) Snapshot() []Totals {
	w.mu.RLock()
	out := make([]Totals, 0, len(w.latest))
	for _, t := range w.latest {
		out = append(out, t)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TruckID < out[j].TruckID })
	return out
}

// LogSnapshot writes the tracked totals to the worker log.
func (w *ReportWorker) LogSnapshot(ctx context.Context) {
	snapshot := w.Snapshot()
	w.logger.InfoContext(ctx, "Truck totals snapshot", "trucks", len(snapshot))
	for _, t := range snapshot {
		w.logger.InfoContext(ctx, "Truck totals",
			log.FieldTruckID, t.TruckID,
			"total_income", t.TotalIncome.String(),
			"total_expense", t.TotalExpense.String(),
			"profit", t.Profit.String(),
			"computed_at", t.ComputedAt.Format(time.RFC3339))
	}
}
