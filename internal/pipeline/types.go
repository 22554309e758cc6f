package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/alerts"
	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/features"
)

// SalesSource is the tabular data the pipeline reads. Every call is a
// scoped blocking read returning the full result set.
type SalesSource interface {
	// SalesHistory returns quantities aggregated per (sale item, day)
	SalesHistory(ctx context.Context) ([]domain.SaleRecord, error)

	// Inventory returns the on-hand snapshot per (product, store)
	Inventory(ctx context.Context) ([]domain.InventorySnapshot, error)

	// ProductNames returns display names for products
	ProductNames(ctx context.Context) ([]domain.ProductName, error)

	// StoreNames returns display names for stores
	StoreNames(ctx context.Context) ([]domain.StoreName, error)
}

// PipelineConfig holds configuration for an orchestrator instance
type PipelineConfig struct {
	HorizonDays int
	ArtifactKey string // path or object key of the model artifact
	Thresholds  alerts.Thresholds
	Location    *time.Location // calendar used to pick "today"
}

// DefaultPipelineConfig returns the stock horizon, artifact name and tiers
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		HorizonDays: features.DefaultHorizonDays,
		ArtifactKey: "sales_predictor.json",
		Thresholds:  alerts.DefaultThresholds(),
		Location:    time.Local,
	}
}

// RunStatus represents the current state of a pipeline run
type RunStatus string

const (
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// Stage names used in logs and run reports
const (
	StageSalesHistory = "sales_history"
	StageFeatures     = "features"
	StageModel        = "model"
	StageHorizon      = "horizon"
	StagePredict      = "predict"
	StageInventory    = "inventory"
	StageAlerts       = "alerts"
)

// Run tracks a single execution of the pipeline
type Run struct {
	ID           string
	Strategy     string
	Today        time.Time
	Status       RunStatus
	FailedStage  string
	SalesRows    int
	TrainingRows int
	HorizonRows  int
	Warnings     []string
	Alerts       []domain.Alert
	StartedAt    time.Time
	CompletedAt  *time.Time
	Err          error
}

// Envelope converts the run outcome into the all-or-nothing result
func (r *Run) Envelope() domain.Envelope {
	return domain.NewEnvelope(r.Alerts, r.Err)
}
