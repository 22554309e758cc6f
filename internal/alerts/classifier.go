package alerts

import (
	"fmt"
	"sort"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/shopspring/decimal"
)

// Thresholds are the deficit cut-offs for each tier. A deficit must be
// strictly greater than a threshold to reach its tier.
type Thresholds struct {
	Low    float64
	Medium float64
	High   float64
}

// DefaultThresholds returns Low=0, Medium=5, High=10.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0, Medium: 5, High: 10}
}

// Validate requires Low <= Medium <= High.
func (t Thresholds) Validate() error {
	if t.Low > t.Medium || t.Medium > t.High {
		return fmt.Errorf("thresholds must satisfy low <= medium <= high, got %v/%v/%v", t.Low, t.Medium, t.High)
	}
	return nil
}

// Tier returns the priority for deficit, or false when no alert is due.
func (t Thresholds) Tier(deficit float64) (domain.Priority, bool) {
	switch {
	case deficit > t.High:
		return domain.PriorityHigh, true
	case deficit > t.Medium:
		return domain.PriorityMedium, true
	case deficit > t.Low:
		return domain.PriorityLow, true
	default:
		return "", false
	}
}

// Classifier turns horizon predictions into restock alerts.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a classifier for the given thresholds.
func NewClassifier(thresholds Thresholds) *Classifier {
	return &Classifier{thresholds: thresholds}
}

type pairKey struct {
	productID int64
	storeID   int64
}

// Classify aggregates predictions per (product, store), compares them with
// inventory and returns alerts ordered by (productId, storeId).
func (c *Classifier) Classify(
	predictions []domain.Prediction,
	inventory []domain.InventorySnapshot,
	productNames []domain.ProductName,
	storeNames []domain.StoreName,
) []domain.Alert {
	// 1. Predicted demand over the horizon per pair
	demand := make(map[pairKey]decimal.Decimal)
	for _, p := range predictions {
		k := pairKey{p.ProductID, p.StoreID}
		demand[k] = demand[k].Add(decimal.NewFromFloat(p.PredictedQuantity))
	}

	// 2. On-hand stock per pair; duplicate snapshot rows add up
	onHand := make(map[pairKey]int64, len(inventory))
	for _, inv := range inventory {
		onHand[pairKey{inv.ProductID, inv.StoreID}] += inv.QuantityOnHand
	}

	products := make(map[int64]string, len(productNames))
	for _, n := range productNames {
		products[n.ProductID] = n.Name
	}
	stores := make(map[int64]string, len(storeNames))
	for _, n := range storeNames {
		stores[n.StoreID] = n.Name
	}

	keys := make([]pairKey, 0, len(demand))
	for k := range demand {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].productID != keys[j].productID {
			return keys[i].productID < keys[j].productID
		}
		return keys[i].storeID < keys[j].storeID
	})

	alerts := make([]domain.Alert, 0)
	for _, k := range keys {
		predicted := demand[k].Round(2)
		stock := onHand[k] // missing inventory counts as zero

		// 3. Deficit
		deficit := predicted.Sub(decimal.NewFromInt(stock)).Round(2)

		// 4. Tier
		priority, ok := c.thresholds.Tier(deficit.InexactFloat64())
		if !ok {
			continue
		}

		// 5. Names
		alerts = append(alerts, domain.Alert{
			ProductID:         k.productID,
			ProductName:       nameOrUnknown(products, k.productID),
			StoreID:           k.storeID,
			StoreName:         nameOrUnknown(stores, k.storeID),
			PredictedQuantity: predicted.InexactFloat64(),
			QuantityOnHand:    stock,
			Deficit:           deficit.InexactFloat64(),
			Priority:          priority,
		})
	}

	return alerts
}

// Classify runs a one-off classification.
func Classify(
	predictions []domain.Prediction,
	inventory []domain.InventorySnapshot,
	productNames []domain.ProductName,
	storeNames []domain.StoreName,
	thresholds Thresholds,
) []domain.Alert {
	return NewClassifier(thresholds).Classify(predictions, inventory, productNames, storeNames)
}

// SortByPriority orders alerts Alta first, then by descending deficit, then
// by (productId, storeId). The input slice is sorted in place.
func SortByPriority(alerts []domain.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.Deficit != b.Deficit {
			return a.Deficit > b.Deficit
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.StoreID < b.StoreID
	})
}

func nameOrUnknown(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return domain.UnknownName
}
