package core

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the canonical day-granular layout used for storage and JSON.
const DateLayout = "2006-01-02"

// DisplayLayout is the day-month-year form shown next to report rows.
const DisplayLayout = "02 Jan 2006"

// Category identifies the collection a record belongs to.
type Category string

const (
	CategoryIncome Category = "income"
	CategoryFuel   Category = "fuel"
	CategoryDef    Category = "def"
	CategoryOther  Category = "other"
	CategoryLoan   Category = "loan"
)

// ExpenseCategories lists the expense collections in reporting order.
var ExpenseCategories = []Category{CategoryFuel, CategoryDef, CategoryOther, CategoryLoan}

func (c Category) String() string {
	return string(c)
}

type (
	// Date is a calendar day stored as midnight UTC.
	Date struct {
		time.Time
	}

	// Meta is the metadata every persisted record carries.
	Meta struct {
		ID        uuid.UUID `json:"id"`
		TruckID   string    `json:"truckId"`
		UserID    string    `json:"userId"`
		Date      Date      `json:"date"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Income struct {
		Meta
		Amount      decimal.Decimal `json:"amount"`
		Source      string          `json:"source"`
		Description string          `json:"description,omitempty"`
	}

	FuelExpense struct {
		Meta
		Cost         decimal.NullDecimal `json:"cost"`
		Liters       decimal.NullDecimal `json:"liters"`
		PricePerUnit decimal.NullDecimal `json:"pricePerUnit"`
		Station      string              `json:"station,omitempty"`
	}

	DefExpense struct {
		Meta
		Cost         decimal.NullDecimal `json:"cost"`
		Liters       decimal.NullDecimal `json:"liters"`
		PricePerUnit decimal.NullDecimal `json:"pricePerUnit"`
	}

	// OtherExpense has carried its monetary value as either cost or amount
	// depending on the client version that wrote it.
	OtherExpense struct {
		Meta
		Cost        decimal.NullDecimal `json:"cost"`
		Amount      decimal.NullDecimal `json:"amount"`
		Category    string              `json:"category,omitempty"`
		Description string              `json:"description,omitempty"`
	}

	LoanCalculation struct {
		Meta
		Cost        decimal.NullDecimal `json:"cost"`
		Lender      string              `json:"lender,omitempty"`
		Description string              `json:"description,omitempty"`
	}
)

var (
	ErrInvalidScope  = errors.New("invalid scope")
	ErrInvalidWindow = errors.New("invalid date window")
	ErrInvalidRecord = errors.New("invalid record")

	// ErrNoRecords reports that no income matched a scope and window.
	ErrNoRecords = errors.New("no income records for scope and window")
)

// ValidationError describes a single rejected field of a record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}

// IsInputError reports whether err was caused by caller supplied input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidScope) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidRecord)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, errors.New("empty date")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DayOf(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("unrecognised date %q", s)
	}
	return DayOf(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Display formats the date for report rows.
func (d Date) Display() string {
	return d.Format(DisplayLayout)
}

func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = DayOf(v)
	case nil:
		*d = Date{}
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Metadata returns the record metadata.
func (m Meta) Metadata() Meta {
	return m
}

// SetMetadata replaces the record metadata.
func (m *Meta) SetMetadata(n Meta) {
	*m = n
}

func (m Meta) validate() error {
	if strings.TrimSpace(m.TruckID) == "" {
		return &ValidationError{Field: "truckId", Reason: "required"}
	}
	if strings.TrimSpace(m.UserID) == "" {
		return &ValidationError{Field: "userId", Reason: "required"}
	}
	if m.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	return nil
}

func (i Income) Kind() Category          { return CategoryIncome }
func (e FuelExpense) Kind() Category     { return CategoryFuel }
func (e DefExpense) Kind() Category      { return CategoryDef }
func (e OtherExpense) Kind() Category    { return CategoryOther }
func (e LoanCalculation) Kind() Category { return CategoryLoan }

func (i Income) Validate() error {
	if err := i.Meta.validate(); err != nil {
		return err
	}
	if i.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if strings.TrimSpace(i.Source) == "" {
		return &ValidationError{Field: "source", Reason: "required"}
	}
	if len(i.Description) > 500 {
		return &ValidationError{Field: "description", Reason: "too long (max 500 characters)"}
	}
	return nil
}

func (e FuelExpense) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if err := requireAmount("cost", e.Cost); err != nil {
		return err
	}
	if err := nonNegative("liters", e.Liters); err != nil {
		return err
	}
	return nonNegative("pricePerUnit", e.PricePerUnit)
}

func (e DefExpense) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if err := requireAmount("cost", e.Cost); err != nil {
		return err
	}
	if err := nonNegative("liters", e.Liters); err != nil {
		return err
	}
	return nonNegative("pricePerUnit", e.PricePerUnit)
}

func (e OtherExpense) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if !e.Cost.Valid && !e.Amount.Valid {
		return &ValidationError{Field: "cost", Reason: "cost or amount is required"}
	}
	if err := nonNegative("cost", e.Cost); err != nil {
		return err
	}
	return nonNegative("amount", e.Amount)
}

func (e LoanCalculation) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	return requireAmount("cost", e.Cost)
}
