package domain

import "github.com/shopspring/decimal"

// ValidateAmount accepts strictly positive amounts with at most two decimal
// places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}
