package dataprocessing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// invoiceDateLayouts are tried in order for text InvoiceDate cells.
// Slash dates are read month first.
var invoiceDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06",
	"1-2-2006",
	"2-Jan-2006",
	"2-Jan-06",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

var errEmptyDate = errors.New("empty value")

// CoerceInvoiceDate converts a raw InvoiceDate cell to a time. A numeric
// value is read as an Excel serial date; anything else must match one of
// the supported text layouts. Results carry the cell's wall clock in UTC;
// an explicit offset is dropped rather than applied, so the calendar month
// never shifts.
func CoerceInvoiceDate(raw string, date1904 bool) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, errEmptyDate
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial <= 0 {
			return time.Time{}, fmt.Errorf("serial date %v out of range", serial)
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}

	for _, layout := range invoiceDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return wallClockUTC(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("no supported date layout matches %q", value)
}

func wallClockUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
