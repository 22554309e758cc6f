package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/rs/zerolog/log"
)

// TrainingSet is the output of Build.
type TrainingSet struct {
	Rows                 []domain.TrainingRow
	ProductIDs           []int64
	StoreIDs             []int64
	DroppedMissingIDs    int
	DroppedMissingTarget int
	Warnings             []string
}

// MissingCounts holds how many raw records lacked each nullable column.
type MissingCounts struct {
	ProductID    int
	StoreID      int
	QuantitySold int
}

// Build turns aggregated sale records into training rows.
//
// Records without a product or store id cannot be joined back to inventory
// and are dropped. Records without a usable quantity are dropped as well;
// that case is reported as a warning, never imputed.
func Build(records []domain.SaleRecord) *TrainingSet {
	set := &TrainingSet{
		Rows: make([]domain.TrainingRow, 0, len(records)),
	}

	products := make(map[int64]struct{})
	stores := make(map[int64]struct{})

	for _, rec := range records {
		if rec.ProductID != nil {
			products[*rec.ProductID] = struct{}{}
		}
		if rec.StoreID != nil {
			stores[*rec.StoreID] = struct{}{}
		}

		if rec.ProductID == nil || rec.StoreID == nil {
			set.DroppedMissingIDs++
			continue
		}
		if !usableQuantity(rec.QuantitySold) {
			set.DroppedMissingTarget++
			continue
		}

		set.Rows = append(set.Rows, domain.TrainingRow{
			FeatureRow: NewFeatureRow(*rec.ProductID, *rec.StoreID, rec.SaleDay),
			Target:     math.Log1p(*rec.QuantitySold),
		})
	}

	set.ProductIDs = sortedKeys(products)
	set.StoreIDs = sortedKeys(stores)

	if set.DroppedMissingIDs > 0 {
		log.Info().
			Int("dropped", set.DroppedMissingIDs).
			Msg("features: dropped sale rows without product or store id")
	}
	if set.DroppedMissingTarget > 0 {
		msg := fmt.Sprintf("%d sale rows without a usable quantity were excluded from training", set.DroppedMissingTarget)
		set.Warnings = append(set.Warnings, msg)
		log.Warn().Int("dropped", set.DroppedMissingTarget).Msg("features: " + msg)
	}

	return set
}

// CountMissing reports null counts per nullable column of the raw records.
func CountMissing(records []domain.SaleRecord) MissingCounts {
	var mc MissingCounts
	for _, rec := range records {
		if rec.ProductID == nil {
			mc.ProductID++
		}
		if rec.StoreID == nil {
			mc.StoreID++
		}
		if !usableQuantity(rec.QuantitySold) {
			mc.QuantitySold++
		}
	}
	return mc
}

func usableQuantity(q *float64) bool {
	return q != nil && !math.IsNaN(*q) && !math.IsInf(*q, 0) && *q >= 0
}

func sortedKeys(m map[int64]struct{}) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
