package features

import (
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
)

// Feature column names, in the order the model consumes them.
const (
	ColProductID  = "productId"
	ColStoreID    = "storeId"
	ColDayOfWeek  = "dayOfWeek"
	ColDay        = "day"
	ColMonth      = "month"
	ColYear       = "year"
	ColWeekOfYear = "weekOfYear"
	ColIsWeekend  = "isWeekend"
)

// Columns lists every feature column. Bump DerivationVersion whenever the
// list or the calendar derivation changes.
var Columns = []string{
	ColProductID,
	ColStoreID,
	ColDayOfWeek,
	ColDay,
	ColMonth,
	ColYear,
	ColWeekOfYear,
	ColIsWeekend,
}

// DerivationVersion identifies the current calendar derivation rules.
const DerivationVersion = 1

// NewFeatureRow derives every calendar field from date.
func NewFeatureRow(productID, storeID int64, date time.Time) domain.FeatureRow {
	dow := mondayFirstWeekday(date.Weekday())
	_, week := date.ISOWeek()

	isWeekend := 0
	if dow == 5 || dow == 6 {
		isWeekend = 1
	}

	return domain.FeatureRow{
		ProductID:  productID,
		StoreID:    storeID,
		DayOfWeek:  dow,
		Day:        date.Day(),
		Month:      int(date.Month()),
		Year:       date.Year(),
		WeekOfYear: week,
		IsWeekend:  isWeekend,
	}
}

// mondayFirstWeekday maps time.Weekday (Sunday=0) to Monday=0..Sunday=6.
func mondayFirstWeekday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// Values returns the row's features in Columns order.
func Values(row domain.FeatureRow) []float64 {
	return []float64{
		float64(row.ProductID),
		float64(row.StoreID),
		float64(row.DayOfWeek),
		float64(row.Day),
		float64(row.Month),
		float64(row.Year),
		float64(row.WeekOfYear),
		float64(row.IsWeekend),
	}
}

// Validate checks that a row could have come out of NewFeatureRow.
func Validate(row domain.FeatureRow) error {
	switch {
	case row.DayOfWeek < 0 || row.DayOfWeek > 6:
		return &domain.SchemaMismatchError{Column: ColDayOfWeek, Reason: "out of range [0,6]"}
	case row.Day < 1 || row.Day > 31:
		return &domain.SchemaMismatchError{Column: ColDay, Reason: "out of range [1,31]"}
	case row.Month < 1 || row.Month > 12:
		return &domain.SchemaMismatchError{Column: ColMonth, Reason: "out of range [1,12]"}
	case row.Year < 1:
		return &domain.SchemaMismatchError{Column: ColYear, Reason: "missing"}
	case row.WeekOfYear < 1 || row.WeekOfYear > 53:
		return &domain.SchemaMismatchError{Column: ColWeekOfYear, Reason: "out of range [1,53]"}
	case row.IsWeekend != 0 && row.IsWeekend != 1:
		return &domain.SchemaMismatchError{Column: ColIsWeekend, Reason: "must be 0 or 1"}
	}

	wantWeekend := 0
	if row.DayOfWeek >= 5 {
		wantWeekend = 1
	}
	if row.IsWeekend != wantWeekend {
		return &domain.SchemaMismatchError{Column: ColIsWeekend, Reason: "inconsistent with dayOfWeek"}
	}

	return nil
}
