package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fleetfinance/internal/core"
	"fleetfinance/internal/ledger"
	"fleetfinance/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB

	income *table[core.Income, *core.Income]
	fuel   *table[core.FuelExpense, *core.FuelExpense]
	def    *table[core.DefExpense, *core.DefExpense]
	other  *table[core.OtherExpense, *core.OtherExpense]
	loan   *table[core.LoanCalculation, *core.LoanCalculation]
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL + busy timeout let the concurrent aggregation reads share the file
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewFromDB(db), nil
}

// NewFromDB wraps an already migrated database handle.
func NewFromDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db: db,
		income: &table[core.Income, *core.Income]{
			db: db, name: "income",
			columns: []string{"amount", "source", "description"},
			fields: func(r *core.Income) []any {
				return []any{&r.Amount, &r.Source, &r.Description}
			},
		},
		fuel: &table[core.FuelExpense, *core.FuelExpense]{
			db: db, name: "fuel_expenses",
			columns: []string{"cost", "liters", "price_per_unit", "station"},
			fields: func(r *core.FuelExpense) []any {
				return []any{&r.Cost, &r.Liters, &r.PricePerUnit, &r.Station}
			},
		},
		def: &table[core.DefExpense, *core.DefExpense]{
			db: db, name: "def_expenses",
			columns: []string{"cost", "liters", "price_per_unit"},
			fields: func(r *core.DefExpense) []any {
				return []any{&r.Cost, &r.Liters, &r.PricePerUnit}
			},
		},
		other: &table[core.OtherExpense, *core.OtherExpense]{
			db: db, name: "other_expenses",
			columns: []string{"cost", "amount", "category", "description"},
			fields: func(r *core.OtherExpense) []any {
				return []any{&r.Cost, &r.Amount, &r.Category, &r.Description}
			},
		},
		loan: &table[core.LoanCalculation, *core.LoanCalculation]{
			db: db, name: "loan_calculations",
			columns: []string{"cost", "lender", "description"},
			fields: func(r *core.LoanCalculation) []any {
				return []any{&r.Cost, &r.Lender, &r.Description}
			},
		},
	}
}

// Stores exposes the tables through the ledger ports.
func (r *SQLiteRepository) Stores() ledger.Stores {
	return ledger.Stores{
		Income: r.income,
		Fuel:   r.fuel,
		Def:    r.def,
		Other:  r.other,
		Loan:   r.loan,
	}
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

var metaColumns = []string{"id", "truck_id", "user_id", "date", "created_at"}

// table maps one record type onto one SQL table. fields returns pointers to
// the type specific columns, in the order of columns; they are scan
// destinations as-is and statement arguments once passed through values.
type table[T any, P ledger.Record[T]] struct {
	db      *sql.DB
	name    string
	columns []string
	fields  func(P) []any
}

func (t *table[T, P]) selectClause() string {
	return "SELECT " + strings.Join(append(append([]string{}, metaColumns...), t.columns...), ", ") + " FROM " + t.name
}

// values dereferences field pointers into driver friendly arguments.
// Decimals are stored as their exact string form.
func values(fields []any) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		switch v := f.(type) {
		case *string:
			out[i] = *v
		case *decimal.Decimal:
			out[i] = v.String()
		case *decimal.NullDecimal:
			if v.Valid {
				out[i] = v.Decimal.String()
			}
		default:
			out[i] = f
		}
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (t *table[T, P]) scan(row rowScanner) (T, error) {
	var (
		rec       T
		m         core.Meta
		createdAt string
	)
	dest := append([]any{&m.ID, &m.TruckID, &m.UserID, &m.Date, &createdAt}, t.fields(P(&rec))...)
	if err := row.Scan(dest...); err != nil {
		return rec, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return rec, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	m.CreatedAt = ts
	P(&rec).SetMetadata(m)
	return rec, nil
}

// whereClause renders the scope and window of a filter. A same-day window is
// an equality on the stored day, anything wider an inclusive range.
func whereClause(f ledger.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	switch f.Scope.Kind() {
	case core.ScopeTruck:
		conds = append(conds, "truck_id = ?")
		args = append(args, f.Scope.TruckID)
	case core.ScopeUser:
		conds = append(conds, "user_id = ?")
		args = append(args, f.Scope.UserID)
	}
	switch {
	case f.Window.SameDay():
		conds = append(conds, "date = ?")
		args = append(args, f.Window.Day().String())
	case f.Window.Bounded():
		conds = append(conds, "date >= ? AND date <= ?")
		args = append(args, f.Window.FirstDay().String(), f.Window.LastDay().String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (t *table[T, P]) Find(ctx context.Context, f ledger.Filter) ([]T, error) {
	where, args := whereClause(f)
	query := t.selectClause() + where + " ORDER BY date ASC, seq ASC"

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}
	return out, nil
}

func (t *table[T, P]) FindByID(ctx context.Context, id uuid.UUID) (T, error) {
	row := t.db.QueryRowContext(ctx, t.selectClause()+" WHERE id = ?", id.String())
	rec, err := t.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ledger.ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("get %s by id: %w", t.name, err)
	}
	return rec, nil
}

func (t *table[T, P]) Insert(ctx context.Context, rec T) (T, error) {
	m := P(&rec).Metadata()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	P(&rec).SetMetadata(m)

	cols := append(append([]string{}, metaColumns...), t.columns...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	args := append([]any{m.ID.String(), m.TruckID, m.UserID, m.Date.String(), m.CreatedAt.Format(time.RFC3339Nano)}, values(t.fields(P(&rec)))...)

	query := "INSERT INTO " + t.name + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")"
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return rec, fmt.Errorf("insert %s: %w", t.name, err)
	}

	log.FromContext(ctx).DebugContext(ctx, "Record saved to SQLite", "table", t.name, log.FieldRecordID, m.ID.String(), "date", m.Date.String())
	return rec, nil
}

// UpdateByID rewrites owner, date and payload; id and created_at are kept.
func (t *table[T, P]) UpdateByID(ctx context.Context, id uuid.UUID, rec T) (T, error) {
	m := P(&rec).Metadata()

	sets := []string{"truck_id = ?", "user_id = ?", "date = ?"}
	for _, c := range t.columns {
		sets = append(sets, c+" = ?")
	}
	args := append([]any{m.TruckID, m.UserID, m.Date.String()}, values(t.fields(P(&rec)))...)
	args = append(args, id.String())

	query := "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("update %s: %w", t.name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var zero T
		return zero, ledger.ErrNotFound
	}

	return t.FindByID(ctx, id)
}

func (t *table[T, P]) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := t.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}

	log.FromContext(ctx).DebugContext(ctx, "Record deleted from SQLite", "table", t.name, log.FieldRecordID, id.String())
	return nil
}
