package alerts

import (
	"testing"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

func prediction(productID, storeID int64, offset int, qty float64) domain.Prediction {
	return domain.Prediction{
		ProductID:         productID,
		StoreID:           storeID,
		Date:              day.AddDate(0, 0, offset),
		PredictedQuantity: qty,
	}
}

func TestThresholds_StrictBoundaries(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		deficit  float64
		priority domain.Priority
		alert    bool
	}{
		{-3, "", false},
		{0, "", false},
		{0.01, domain.PriorityLow, true},
		{5, domain.PriorityLow, true},
		{5.01, domain.PriorityMedium, true},
		{10, domain.PriorityMedium, true},
		{10.01, domain.PriorityHigh, true},
		{250, domain.PriorityHigh, true},
	}

	for _, tt := range tests {
		priority, ok := th.Tier(tt.deficit)
		assert.Equal(t, tt.alert, ok, "deficit %v", tt.deficit)
		assert.Equal(t, tt.priority, priority, "deficit %v", tt.deficit)
	}
}

func TestClassify_BoundariesThroughInventory(t *testing.T) {
	preds := []domain.Prediction{
		prediction(1, 1, 1, 10), // deficit exactly 10 → Media
		prediction(2, 1, 1, 5),  // deficit exactly 5 → Baja
		prediction(3, 1, 1, 7),  // deficit exactly 0 → no alert
	}
	inventory := []domain.InventorySnapshot{
		{ProductID: 3, StoreID: 1, QuantityOnHand: 7},
	}

	alerts := Classify(preds, inventory, nil, nil, DefaultThresholds())
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.PriorityMedium, alerts[0].Priority)
	assert.Equal(t, 10.0, alerts[0].Deficit)
	assert.Equal(t, domain.PriorityLow, alerts[1].Priority)
	assert.Equal(t, 5.0, alerts[1].Deficit)
}

func TestClassify_SumsHorizonAndUsesMissingInventoryAsZero(t *testing.T) {
	var preds []domain.Prediction
	for offset := 1; offset <= 7; offset++ {
		preds = append(preds, prediction(8, 2, offset, 1.5))
	}

	alerts := Classify(preds, nil, []domain.ProductName{{ProductID: 8, Name: "Harina"}}, nil, DefaultThresholds())
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, 10.5, a.PredictedQuantity)
	assert.Equal(t, int64(0), a.QuantityOnHand)
	assert.Equal(t, a.PredictedQuantity, a.Deficit)
	assert.Equal(t, domain.PriorityHigh, a.Priority)
	assert.Equal(t, "Harina", a.ProductName)
	assert.Equal(t, domain.UnknownName, a.StoreName)
}

func TestClassify_SuppressesCoveredDemand(t *testing.T) {
	preds := []domain.Prediction{prediction(1, 1, 1, 3), prediction(1, 1, 2, 3)}
	inventory := []domain.InventorySnapshot{{ProductID: 1, StoreID: 1, QuantityOnHand: 50}}

	alerts := Classify(preds, inventory, nil, nil, DefaultThresholds())
	assert.Empty(t, alerts)
	assert.NotNil(t, alerts)
}

func TestClassify_DuplicateInventoryRowsAreSummed(t *testing.T) {
	preds := []domain.Prediction{prediction(1, 1, 1, 12)}
	inventory := []domain.InventorySnapshot{
		{ProductID: 1, StoreID: 1, QuantityOnHand: 2},
		{ProductID: 1, StoreID: 1, QuantityOnHand: 4},
	}

	alerts := Classify(preds, inventory, nil, nil, DefaultThresholds())
	require.Len(t, alerts, 1)
	assert.Equal(t, int64(6), alerts[0].QuantityOnHand)
	assert.Equal(t, 6.0, alerts[0].Deficit)
	assert.Equal(t, domain.PriorityMedium, alerts[0].Priority)
}

func TestClassify_OrderedByGroupingKey(t *testing.T) {
	preds := []domain.Prediction{
		prediction(3, 1, 1, 20),
		prediction(1, 2, 1, 1),
		prediction(1, 1, 1, 30),
		prediction(2, 5, 1, 7),
	}
	names := []domain.ProductName{{ProductID: 1, Name: "Pan"}, {ProductID: 2, Name: ""}}
	stores := []domain.StoreName{{StoreID: 1, Name: "Centro"}}

	alerts := Classify(preds, nil, names, stores, DefaultThresholds())
	require.Len(t, alerts, 4)

	var got [][2]int64
	for _, a := range alerts {
		got = append(got, [2]int64{a.ProductID, a.StoreID})
	}
	assert.Equal(t, [][2]int64{{1, 1}, {1, 2}, {2, 5}, {3, 1}}, got)

	assert.Equal(t, "Pan", alerts[0].ProductName)
	assert.Equal(t, "Centro", alerts[0].StoreName)
	assert.Equal(t, domain.UnknownName, alerts[2].ProductName, "empty names fall back to the sentinel")

	SortByPriority(alerts)
	assert.Equal(t, domain.PriorityHigh, alerts[0].Priority)
	assert.Equal(t, 30.0, alerts[0].Deficit)
	assert.Equal(t, int64(3), alerts[1].ProductID)
	assert.Equal(t, domain.PriorityMedium, alerts[2].Priority)
	assert.Equal(t, domain.PriorityLow, alerts[3].Priority)
}

func TestClassify_RoundsSums(t *testing.T) {
	preds := []domain.Prediction{
		prediction(1, 1, 1, 0.1),
		prediction(1, 1, 2, 0.2),
	}

	alerts := Classify(preds, nil, nil, nil, DefaultThresholds())
	require.Len(t, alerts, 1)
	assert.Equal(t, 0.3, alerts[0].PredictedQuantity)
	assert.Equal(t, 0.3, alerts[0].Deficit)
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.NoError(t, Thresholds{Low: 1, Medium: 1, High: 1}.Validate())
	assert.Error(t, Thresholds{Low: 6, Medium: 5, High: 10}.Validate())
	assert.Error(t, Thresholds{Low: 0, Medium: 11, High: 10}.Validate())
}
