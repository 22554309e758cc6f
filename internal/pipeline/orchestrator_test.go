package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/features"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	sales     []domain.SaleRecord
	inventory []domain.InventorySnapshot
	products  []domain.ProductName
	stores    []domain.StoreName

	salesErr     error
	inventoryErr error
}

func (s *stubSource) SalesHistory(context.Context) ([]domain.SaleRecord, error) {
	return s.sales, s.salesErr
}

func (s *stubSource) Inventory(context.Context) ([]domain.InventorySnapshot, error) {
	return s.inventory, s.inventoryErr
}

func (s *stubSource) ProductNames(context.Context) ([]domain.ProductName, error) {
	return s.products, nil
}

func (s *stubSource) StoreNames(context.Context) ([]domain.StoreName, error) {
	return s.stores, nil
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

// thirtyDaysOfSales has product 1 selling 2 units and product 2 selling 20
// units every day of March 2024 at store 1.
func thirtyDaysOfSales() []domain.SaleRecord {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var out []domain.SaleRecord
	id := int64(1)
	for d := 0; d < 30; d++ {
		for _, p := range []struct {
			id  int64
			qty float64
		}{{1, 2}, {2, 20}} {
			out = append(out, domain.SaleRecord{
				SaleItemID:   id,
				ProductID:    i64(p.id),
				StoreID:      i64(1),
				SaleDay:      start.AddDate(0, 0, d),
				QuantitySold: f64(p.qty),
			})
			id++
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T, source SalesSource, artifact string) *Orchestrator {
	t.Helper()
	cfg := DefaultPipelineConfig()
	cfg.ArtifactKey = artifact
	cfg.Location = time.UTC

	f := forecast.NewForecaster(forecast.NewFileStore(), forecast.DefaultOptions())
	return NewOrchestrator(source, f, cfg).WithClock(func() time.Time {
		return time.Date(2024, 3, 31, 18, 45, 0, 0, time.UTC)
	})
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	source := &stubSource{
		sales: thirtyDaysOfSales(),
		inventory: []domain.InventorySnapshot{
			{ProductID: 1, StoreID: 1, QuantityOnHand: 10},
			{ProductID: 2, StoreID: 1, QuantityOnHand: 100},
		},
		products: []domain.ProductName{{ProductID: 1, Name: "Leche"}, {ProductID: 2, Name: "Pan"}},
		stores:   []domain.StoreName{{StoreID: 1, Name: "Centro"}},
	}
	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")
	o := newTestOrchestrator(t, source, artifact)

	run := o.Execute(context.Background(), forecast.ReuseIfPresent)
	require.NoError(t, run.Err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 60, run.SalesRows)
	assert.Equal(t, 7*2*1, run.HorizonRows)
	assert.FileExists(t, artifact)

	require.Len(t, run.Alerts, 2)

	first := run.Alerts[0]
	assert.Equal(t, int64(1), first.ProductID)
	assert.Equal(t, "Leche", first.ProductName)
	assert.Equal(t, "Centro", first.StoreName)
	assert.InDelta(t, 14.0, first.PredictedQuantity, 0.011)
	assert.Equal(t, int64(10), first.QuantityOnHand)
	assert.InDelta(t, 4.0, first.Deficit, 0.011)
	assert.Equal(t, domain.PriorityLow, first.Priority)

	second := run.Alerts[1]
	assert.Equal(t, int64(2), second.ProductID)
	assert.InDelta(t, 140.0, second.PredictedQuantity, 0.011)
	assert.InDelta(t, 40.0, second.Deficit, 0.011)
	assert.Equal(t, domain.PriorityHigh, second.Priority)

	for _, a := range run.Alerts {
		assert.InDelta(t, a.PredictedQuantity-float64(a.QuantityOnHand), a.Deficit, 1e-9)
	}
}

// TestOrchestrator_VaryingDemandEmptyStock covers two products at one store
// with a month of daily sales between 1 and 10 units and nothing on hand.
func TestOrchestrator_VaryingDemandEmptyStock(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var sales []domain.SaleRecord
	for d := 0; d < 30; d++ {
		for _, p := range []int64{1, 2} {
			qty := float64(1 + (d+int(p-1)*5)%10)
			sales = append(sales, domain.SaleRecord{
				SaleItemID:   int64(len(sales) + 1),
				ProductID:    i64(p),
				StoreID:      i64(1),
				SaleDay:      start.AddDate(0, 0, d),
				QuantitySold: f64(qty),
			})
		}
	}
	source := &stubSource{
		sales: sales,
		inventory: []domain.InventorySnapshot{
			{ProductID: 1, StoreID: 1, QuantityOnHand: 0},
			{ProductID: 2, StoreID: 1, QuantityOnHand: 0},
		},
	}
	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")

	run := newTestOrchestrator(t, source, artifact).Execute(context.Background(), forecast.ReuseIfPresent)
	require.NoError(t, run.Err)
	assert.Equal(t, 60, run.TrainingRows)
	assert.Equal(t, 7*2, run.HorizonRows)

	require.Len(t, run.Alerts, 2)
	for i, a := range run.Alerts {
		assert.Equal(t, int64(i+1), a.ProductID)
		assert.Equal(t, int64(1), a.StoreID)
		assert.Equal(t, int64(0), a.QuantityOnHand)
		assert.Greater(t, a.PredictedQuantity, 0.0)
		assert.Equal(t, a.PredictedQuantity, a.Deficit)
		assert.Contains(t, []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh}, a.Priority)
	}
}

func TestOrchestrator_OverflowingArtifactFailsPredict(t *testing.T) {
	coefficients := make(map[string]float64, len(features.Columns))
	for _, col := range features.Columns {
		coefficients[col] = 0
	}
	coefficients[features.ColYear] = 1
	payload, err := json.Marshal(map[string]any{
		"intercept":    0,
		"coefficients": coefficients,
		"schema":       forecast.SchemaFingerprint(),
	})
	require.NoError(t, err)

	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")
	require.NoError(t, os.WriteFile(artifact, payload, 0o644))

	source := &stubSource{sales: thirtyDaysOfSales()}
	day := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	var run *Run
	require.NotPanics(t, func() {
		run = newTestOrchestrator(t, source, artifact).ExecuteOn(context.Background(), forecast.ReuseIfPresent, day)
	})
	require.Error(t, run.Err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, StagePredict, run.FailedStage)
	assert.Nil(t, run.Alerts)

	var predErr *domain.PredictionError
	assert.True(t, errors.As(run.Err, &predErr))

	env := run.Envelope()
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "not finite")

	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"alerts"`)
}

func TestOrchestrator_ReuseWithEmptySalesTable(t *testing.T) {
	ctx := context.Background()
	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")

	_, err := newTestOrchestrator(t, &stubSource{sales: thirtyDaysOfSales()}, artifact).Run(ctx, forecast.ForceRetrain)
	require.NoError(t, err)

	empty := &stubSource{}
	alerts, err := newTestOrchestrator(t, empty, artifact).Run(ctx, forecast.ReuseIfPresent)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	out, err := json.Marshal(domain.NewEnvelope(alerts, err))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"alerts":[]}`, string(out))
}

func TestOrchestrator_EmptySalesWithoutArtifact(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")
	run := newTestOrchestrator(t, &stubSource{}, artifact).Execute(context.Background(), forecast.ReuseIfPresent)

	require.Error(t, run.Err)
	assert.ErrorIs(t, run.Err, domain.ErrInsufficientData)
	assert.Equal(t, StageModel, run.FailedStage)
	assert.NoFileExists(t, artifact)
}

func TestOrchestrator_DataSourceFailure(t *testing.T) {
	source := &stubSource{
		salesErr: domain.NewDataSourceError("sales history", errors.New("connection refused")),
	}
	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")

	run := newTestOrchestrator(t, source, artifact).Execute(context.Background(), forecast.ReuseIfPresent)
	require.Error(t, run.Err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, StageSalesHistory, run.FailedStage)
	assert.Nil(t, run.Alerts)

	var dsErr *domain.DataSourceError
	assert.True(t, errors.As(run.Err, &dsErr))

	out, err := json.Marshal(run.Envelope())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, false, raw["success"])
	assert.Contains(t, raw["error"], "connection refused")
	_, hasAlerts := raw["alerts"]
	assert.False(t, hasAlerts)
}

func TestOrchestrator_InventoryFailureDiscardsPredictions(t *testing.T) {
	source := &stubSource{
		sales:        thirtyDaysOfSales(),
		inventoryErr: domain.NewDataSourceError("inventory", errors.New("timeout")),
	}
	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")

	alerts, err := newTestOrchestrator(t, source, artifact).Run(context.Background(), forecast.ReuseIfPresent)
	require.Error(t, err)
	assert.Nil(t, alerts)
	assert.Contains(t, err.Error(), "timeout")
}

func TestOrchestrator_WarnsAboutMissingQuantities(t *testing.T) {
	sales := thirtyDaysOfSales()
	sales[0].QuantitySold = nil
	source := &stubSource{sales: sales}
	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")

	run := newTestOrchestrator(t, source, artifact).Execute(context.Background(), forecast.ForceRetrain)
	require.NoError(t, run.Err)
	assert.Equal(t, 59, run.TrainingRows)
	require.Len(t, run.Warnings, 1)
}

func TestOrchestrator_Train(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")
	o := newTestOrchestrator(t, &stubSource{sales: thirtyDaysOfSales()}, artifact)

	report, err := o.Train(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 60, report.TrainingRows)
	require.NotNil(t, report.Metrics)
	assert.Equal(t, 15, report.Metrics.TestRows)
	assert.FileExists(t, artifact)

	_, err = json.Marshal(report)
	assert.NoError(t, err)
}

func TestOrchestrator_TrainWithoutRows(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "sales_predictor.json")
	o := newTestOrchestrator(t, &stubSource{}, artifact)

	_, err := o.Train(context.Background())
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
	assert.NoFileExists(t, artifact)
}
