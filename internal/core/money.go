// Package core provides money handling utilities.
//
// Monetary values are decimal.Decimal throughout; optional fields use
// decimal.NullDecimal so that a missing value can be told apart from zero.
package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// OrZero returns the value of an optional amount, or zero when absent.
func OrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// FirstValid returns the first present amount, or zero when none is.
func FirstValid(values ...decimal.NullDecimal) decimal.Decimal {
	for _, v := range values {
		if v.Valid {
			return v.Decimal
		}
	}
	return decimal.Zero
}

// Amount wraps a present decimal into a NullDecimal.
func Amount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// Percentage returns part/total*100 rounded to two places; zero when total is zero.
func Percentage(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(total).Round(2)
}

func requireAmount(field string, v decimal.NullDecimal) error {
	if !v.Valid {
		return &ValidationError{Field: field, Reason: "required"}
	}
	return nonNegative(field, v)
}

func nonNegative(field string, v decimal.NullDecimal) error {
	if v.Valid && v.Decimal.IsNegative() {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}
