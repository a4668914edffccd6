package exporter

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// formatCurrency renders a sales amount with exactly two decimals.
func formatCurrency(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
