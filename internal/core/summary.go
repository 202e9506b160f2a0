package core

import "github.com/shopspring/decimal"

// CategoryTotal is the summed value of one expense category.
type CategoryTotal struct {
	Category   Category        `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// RegistrationPlaceholder stands in for a registration number that could not
// be resolved.
const RegistrationPlaceholder = "N/A"
