package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetfinance/internal/amqp"
	"fleetfinance/internal/core"
	"fleetfinance/internal/ledger"
	"fleetfinance/internal/log"
)

// EventPublisher announces record changes to other services.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, ev amqp.RecordEvent) error
}

// Record is a pointer to one of the core record types.
type Record[T any] interface {
	ledger.Record[T]
	Validate() error
	Kind() core.Category
}

// RecordService validates and stores records of one type, then publishes a
// change event. Publishing is best effort: the write stands even when the
// broker is unreachable.
type RecordService[T any, P Record[T]] struct {
	store  ledger.Store[T]
	events EventPublisher
	logger *log.Logger
	now    func() time.Time
}

func NewRecordService[T any, P Record[T]](store ledger.Store[T], events EventPublisher, logger *log.Logger) *RecordService[T, P] {
	if logger == nil {
		logger = log.Discard()
	}
	return &RecordService[T, P]{
		store:  store,
		events: events,
		logger: logger.WithComponent(log.ComponentRecords),
		now:    time.Now,
	}
}

func (s *RecordService[T, P]) kind() core.Category {
	var zero T
	return P(&zero).Kind()
}

// normalize trims owner ids and pins the date to its UTC day.
func normalize(m core.Meta) core.Meta {
	m.TruckID = strings.TrimSpace(m.TruckID)
	m.UserID = strings.TrimSpace(m.UserID)
	if !m.Date.IsZero() {
		m.Date = core.DayOf(m.Date.Time)
	}
	return m
}

func (s *RecordService[T, P]) Create(ctx context.Context, rec T) (T, error) {
	m := normalize(P(&rec).Metadata())
	m.ID = uuid.New()
	m.CreatedAt = s.now().UTC()
	P(&rec).SetMetadata(m)

	if err := P(&rec).Validate(); err != nil {
		return rec, err
	}

	saved, err := s.store.Insert(ctx, rec)
	if err != nil {
		return saved, fmt.Errorf("create %s: %w", s.kind(), err)
	}

	s.logger.InfoContext(ctx, "Record created",
		log.NewFields().WithRecord(s.kind(), P(&saved).Metadata()).WithOperation(log.OpCreate).ToSlice()...)
	s.publish(ctx, amqp.ActionCreated, P(&saved).Metadata())
	return saved, nil
}

func (s *RecordService[T, P]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return rec, fmt.Errorf("get %s %s: %w", s.kind(), id, err)
	}
	return rec, nil
}

// List returns the records of one truck or user inside the window.
func (s *RecordService[T, P]) List(ctx context.Context, scope core.Scope, window core.Window) ([]T, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	recs, err := s.store.Find(ctx, ledger.Filter{Scope: scope, Window: window})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.kind(), err)
	}
	return recs, nil
}

// Update replaces the payload, owner and date of a record. The id and
// creation time never change.
func (s *RecordService[T, P]) Update(ctx context.Context, id uuid.UUID, rec T) (T, error) {
	m := normalize(P(&rec).Metadata())
	m.ID = id
	P(&rec).SetMetadata(m)

	if err := P(&rec).Validate(); err != nil {
		return rec, err
	}

	saved, err := s.store.UpdateByID(ctx, id, rec)
	if err != nil {
		return saved, fmt.Errorf("update %s %s: %w", s.kind(), id, err)
	}

	s.logger.InfoContext(ctx, "Record updated",
		log.NewFields().WithRecord(s.kind(), P(&saved).Metadata()).WithOperation(log.OpUpdate).ToSlice()...)
	s.publish(ctx, amqp.ActionUpdated, P(&saved).Metadata())
	return saved, nil
}

func (s *RecordService[T, P]) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", s.kind(), id, err)
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", s.kind(), id, err)
	}

	s.logger.InfoContext(ctx, "Record deleted",
		log.NewFields().WithRecord(s.kind(), P(&rec).Metadata()).WithOperation(log.OpDelete).ToSlice()...)
	s.publish(ctx, amqp.ActionDeleted, P(&rec).Metadata())
	return nil
}

func (s *RecordService[T, P]) publish(ctx context.Context, action amqp.Action, m core.Meta) {
	if s.events == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping record event", "action", action)
		return
	}
	if err := s.events.PublishRecordEvent(ctx, amqp.NewRecordEvent(action, s.kind(), m)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish record event",
			log.NewFields().WithRecord(s.kind(), m).WithError(err).WithOperation(log.OpPublish).ToSlice()...)
	}
}

// Records bundles one service per record type.
type Records struct {
	Income *RecordService[core.Income, *core.Income]
	Fuel   *RecordService[core.FuelExpense, *core.FuelExpense]
	Def    *RecordService[core.DefExpense, *core.DefExpense]
	Other  *RecordService[core.OtherExpense, *core.OtherExpense]
	Loan   *RecordService[core.LoanCalculation, *core.LoanCalculation]
}

func NewRecords(stores ledger.Stores, events EventPublisher, logger *log.Logger) Records {
	return Records{
		Income: NewRecordService[core.Income, *core.Income](stores.Income, events, logger),
		Fuel:   NewRecordService[core.FuelExpense, *core.FuelExpense](stores.Fuel, events, logger),
		Def:    NewRecordService[core.DefExpense, *core.DefExpense](stores.Def, events, logger),
		Other:  NewRecordService[core.OtherExpense, *core.OtherExpense](stores.Other, events, logger),
		Loan:   NewRecordService[core.LoanCalculation, *core.LoanCalculation](stores.Loan, events, logger),
	}
}
