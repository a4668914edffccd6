package dataprocessing

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "salesdash/internal/errors"
)

// lakh is one hundred thousand.
var lakh = decimal.NewFromInt(100_000)

// FormatSales renders a non-negative amount in lakhs with two decimals. The
// result keeps a leading blank where a sign would go: 250000 -> " 2.50 Lakh".
func FormatSales(v decimal.Decimal) (string, error) {
	if v.IsNegative() {
		return "", apperrors.NewAggregationError(fmt.Sprintf("cannot format negative sales %s", v.String()), nil).
			WithContext("value", v.String())
	}
	return " " + v.Div(lakh).StringFixed(2) + " Lakh", nil
}
