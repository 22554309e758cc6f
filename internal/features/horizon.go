package features

import (
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
)

// DefaultHorizonDays is the forecast window used when none is configured.
const DefaultHorizonDays = 7

// HorizonRow is a feature row to score, together with its calendar date.
type HorizonRow struct {
	Date time.Time
	domain.FeatureRow
}

// ExpandHorizon enumerates day offsets 1..horizonDays × productIDs × storeIDs.
// The result is fully determined by its arguments.
func ExpandHorizon(today time.Time, productIDs, storeIDs []int64, horizonDays int) []HorizonRow {
	if horizonDays <= 0 || len(productIDs) == 0 || len(storeIDs) == 0 {
		return []HorizonRow{}
	}

	base := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	rows := make([]HorizonRow, 0, horizonDays*len(productIDs)*len(storeIDs))
	for offset := 1; offset <= horizonDays; offset++ {
		day := base.AddDate(0, 0, offset)
		for _, productID := range productIDs {
			for _, storeID := range storeIDs {
				rows = append(rows, HorizonRow{
					Date:       day,
					FeatureRow: NewFeatureRow(productID, storeID, day),
				})
			}
		}
	}

	return rows
}

// FeatureRows strips the dates off horizon rows.
func FeatureRows(rows []HorizonRow) []domain.FeatureRow {
	out := make([]domain.FeatureRow, len(rows))
	for i, r := range rows {
		out[i] = r.FeatureRow
	}
	return out
}
