package types

import "github.com/shopspring/decimal"

// RoundMoney rounds half-up to 2 decimal places. Monetary values in this codebase
// are non-negative, so decimal's half-away-from-zero rounding is half-up here.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MoneyString renders a monetary value with exactly 2 decimal places.
// JSON documents store money as strings to preserve precision.
func MoneyString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// RateString renders a VAT rate with exactly 4 decimal places.
func RateString(d decimal.Decimal) string {
	return d.StringFixed(4)
}
