package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/alerts"
	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/features"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Orchestrator sequences sales loading, model resolution, horizon scoring and
// alert classification.
type Orchestrator struct {
	source     SalesSource
	forecaster *forecast.Forecaster
	classifier *alerts.Classifier
	cfg        PipelineConfig
	now        func() time.Time
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(source SalesSource, forecaster *forecast.Forecaster, cfg PipelineConfig) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Orchestrator{
		source:     source,
		forecaster: forecaster,
		classifier: alerts.NewClassifier(cfg.Thresholds),
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock replaces the wall clock used to pick the first horizon day.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Config returns the settings the orchestrator was built with.
func (o *Orchestrator) Config() PipelineConfig {
	return o.cfg
}

// Now returns the current time on the orchestrator clock.
func (o *Orchestrator) Now() time.Time {
	return o.now()
}

// Run executes the pipeline and returns its alerts. On failure no alerts are
// returned.
func (o *Orchestrator) Run(ctx context.Context, strategy forecast.Strategy) ([]domain.Alert, error) {
	run := o.Execute(ctx, strategy)
	if run.Err != nil {
		return nil, run.Err
	}
	return run.Alerts, nil
}

// Execute runs every stage and reports the outcome.
func (o *Orchestrator) Execute(ctx context.Context, strategy forecast.Strategy) *Run {
	return o.ExecuteOn(ctx, strategy, o.now())
}

// ExecuteOn is Execute with an explicit first horizon day.
func (o *Orchestrator) ExecuteOn(ctx context.Context, strategy forecast.Strategy, today time.Time) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		Strategy:  strategy.String(),
		Today:     today.In(o.cfg.Location),
		Status:    StatusProcessing,
		StartedAt: time.Now(),
	}

	logger := log.With().Str("run_id", run.ID).Logger()
	logger.Info().
		Str("strategy", run.Strategy).
		Str("today", run.Today.Format("2006-01-02")).
		Int("horizon_days", o.cfg.HorizonDays).
		Msg("pipeline: run started")

	alertsOut, stage, err := o.execute(ctx, strategy, run, logger)

	now := time.Now()
	run.CompletedAt = &now
	if err != nil {
		run.Status = StatusFailed
		run.FailedStage = stage
		run.Err = err
		logger.Error().Err(err).Str("stage", stage).Msg("pipeline: run failed")
		return run
	}

	run.Status = StatusCompleted
	run.Alerts = alertsOut
	logger.Info().
		Int("alerts", len(alertsOut)).
		Dur("elapsed", now.Sub(run.StartedAt)).
		Msg("pipeline: run completed")

	return run
}

func (o *Orchestrator) execute(ctx context.Context, strategy forecast.Strategy, run *Run, logger zerolog.Logger) ([]domain.Alert, string, error) {
	// 1. Sales history
	records, err := o.source.SalesHistory(ctx)
	if err != nil {
		return nil, StageSalesHistory, err
	}
	run.SalesRows = len(records)

	missing := features.CountMissing(records)
	logger.Info().
		Str("stage", StageFeatures).
		Int("rows", len(records)).
		Int("missing_product_id", missing.ProductID).
		Int("missing_store_id", missing.StoreID).
		Int("missing_quantity_sold", missing.QuantitySold).
		Msg("pipeline: missing values per column")

	// 2. Training table
	set := features.Build(records)
	run.TrainingRows = len(set.Rows)
	run.Warnings = append(run.Warnings, set.Warnings...)

	// 3. Model
	model, err := o.forecaster.LoadOrTrain(ctx, o.cfg.ArtifactKey, set.Rows, strategy)
	if err != nil {
		return nil, StageModel, err
	}

	// 4. Horizon
	horizon := features.ExpandHorizon(run.Today, set.ProductIDs, set.StoreIDs, o.cfg.HorizonDays)
	run.HorizonRows = len(horizon)
	logger.Debug().
		Str("stage", StageHorizon).
		Int("products", len(set.ProductIDs)).
		Int("stores", len(set.StoreIDs)).
		Int("rows", len(horizon)).
		Msg("pipeline: horizon expanded")

	// 5. Predictions
	quantities, err := o.forecaster.Predict(model, features.FeatureRows(horizon))
	if err != nil {
		return nil, StagePredict, err
	}
	predictions := make([]domain.Prediction, len(horizon))
	for i, h := range horizon {
		predictions[i] = domain.Prediction{
			ProductID:         h.ProductID,
			StoreID:           h.StoreID,
			Date:              h.Date,
			PredictedQuantity: quantities[i],
		}
	}

	// 6. Inventory and names
	inv, err := o.loadInventory(ctx)
	if err != nil {
		return nil, StageInventory, err
	}

	// 7. Alerts
	out := o.classifier.Classify(predictions, inv.snapshots, inv.products, inv.stores)
	logger.Info().
		Str("stage", StageAlerts).
		Int("pairs", len(set.ProductIDs)*len(set.StoreIDs)).
		Int("alerts", len(out)).
		Msg("pipeline: alerts classified")

	return out, "", nil
}

type inventoryView struct {
	snapshots []domain.InventorySnapshot
	products  []domain.ProductName
	stores    []domain.StoreName
}

// loadInventory reads inventory and both name tables concurrently.
func (o *Orchestrator) loadInventory(ctx context.Context) (*inventoryView, error) {
	var view inventoryView
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := o.source.Inventory(gctx)
		view.snapshots = rows
		return err
	})
	g.Go(func() error {
		rows, err := o.source.ProductNames(gctx)
		view.products = rows
		return err
	})
	g.Go(func() error {
		rows, err := o.source.StoreNames(gctx)
		view.stores = rows
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &view, nil
}

// TrainReport summarizes an explicit retrain outside a scoring run.
type TrainReport struct {
	RunID        string            `json:"run_id"`
	ArtifactKey  string            `json:"artifact"`
	TrainingRows int               `json:"training_rows"`
	Metrics      *forecast.Metrics `json:"metrics,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// Train fits a fresh model on the full sales history and saves it, without
// scoring a horizon.
func (o *Orchestrator) Train(ctx context.Context) (*TrainReport, error) {
	report := &TrainReport{RunID: uuid.NewString(), ArtifactKey: o.cfg.ArtifactKey}
	logger := log.With().Str("run_id", report.RunID).Logger()

	records, err := o.source.SalesHistory(ctx)
	if err != nil {
		logger.Error().Err(err).Str("stage", StageSalesHistory).Msg("pipeline: train failed")
		return nil, err
	}

	set := features.Build(records)
	report.TrainingRows = len(set.Rows)
	report.Warnings = set.Warnings

	model, metrics, err := o.forecaster.Train(set.Rows)
	if err != nil {
		logger.Error().Err(err).Str("stage", StageModel).Msg("pipeline: train failed")
		return nil, err
	}
	report.Metrics = metrics

	if err := o.forecaster.Save(ctx, o.cfg.ArtifactKey, model); err != nil {
		return nil, err
	}

	logger.Info().
		Int("training_rows", report.TrainingRows).
		Str("artifact", o.cfg.ArtifactKey).
		Msg("pipeline: model retrained")
	return report, nil
}
