package core

import "github.com/shopspring/decimal"

// Entry is the canonical form of a record for aggregation: whatever the
// monetary field is called on the stored record, it ends up in Amount.
type Entry struct {
	Category Category
	TruckID  string
	UserID   string
	Date     Date
	Amount   decimal.Decimal
}

// Entrier is implemented by every record type that contributes to totals.
type Entrier interface {
	Entry() Entry
}

func newEntry(c Category, m Meta, amount decimal.Decimal) Entry {
	return Entry{
		Category: c,
		TruckID:  m.TruckID,
		UserID:   m.UserID,
		Date:     m.Date,
		Amount:   amount,
	}
}

func (i Income) Entry() Entry {
	return newEntry(CategoryIncome, i.Meta, i.Amount)
}

func (e FuelExpense) Entry() Entry {
	return newEntry(CategoryFuel, e.Meta, OrZero(e.Cost))
}

func (e DefExpense) Entry() Entry {
	return newEntry(CategoryDef, e.Meta, OrZero(e.Cost))
}

// Entry prefers cost, falls back to amount, and counts zero when neither is set.
func (e OtherExpense) Entry() Entry {
	return newEntry(CategoryOther, e.Meta, FirstValid(e.Cost, e.Amount))
}

func (e LoanCalculation) Entry() Entry {
	return newEntry(CategoryLoan, e.Meta, OrZero(e.Cost))
}

// Entries converts a slice of records into entries, preserving order.
func Entries[T Entrier](records []T) []Entry {
	out := make([]Entry, len(records))
	for i, r := range records {
		out[i] = r.Entry()
	}
	return out
}

// Sum adds up the amounts of entries.
func Sum(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
