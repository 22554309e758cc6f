package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/features"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Strategy decides whether a persisted model may be reused.
type Strategy int

const (
	// ReuseIfPresent loads the artifact when it exists, training only when
	// it is absent. The stored model is never checked for staleness.
	ReuseIfPresent Strategy = iota
	// ForceRetrain always trains and overwrites the artifact.
	ForceRetrain
)

func (s Strategy) String() string {
	if s == ForceRetrain {
		return "force"
	}
	return "reuse"
}

// ParseStrategy maps "reuse" / "force" onto a Strategy.
func ParseStrategy(v string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "reuse", "reuse_if_present":
		return ReuseIfPresent, nil
	case "force", "retrain", "force_retrain":
		return ForceRetrain, nil
	default:
		return ReuseIfPresent, fmt.Errorf("unknown retrain policy %q", v)
	}
}

// Options tune the holdout diagnostics.
type Options struct {
	HoldoutFraction float64
	HoldoutSeed     int64
}

// DefaultOptions mirror the diagnostic split used since the first release.
func DefaultOptions() Options {
	return Options{HoldoutFraction: 0.25, HoldoutSeed: 42}
}

// Forecaster trains, persists and applies LinearModels.
type Forecaster struct {
	store ArtifactStore
	opts  Options
	now   func() time.Time
}

// NewForecaster builds a Forecaster persisting through store.
func NewForecaster(store ArtifactStore, opts Options) *Forecaster {
	return &Forecaster{
		store: store,
		opts:  opts,
		now:   time.Now,
	}
}

// Train fits a model on rows. A seeded holdout is scored for diagnostics
// only; the returned Metrics is nil when the split is not possible.
func (f *Forecaster) Train(rows []domain.TrainingRow) (*LinearModel, *Metrics, error) {
	if len(rows) == 0 {
		return nil, nil, domain.ErrInsufficientData
	}

	fitRows := rows
	var testRows []domain.TrainingRow

	train, test, ok := holdoutSplit(len(rows), f.opts.HoldoutFraction, f.opts.HoldoutSeed)
	if ok {
		fitRows = pick(rows, train)
		testRows = pick(rows, test)
	} else {
		log.Warn().Int("rows", len(rows)).Msg("forecast: too few rows for a holdout split, fitting on all rows")
	}

	x := make([][]float64, len(fitRows))
	y := make([]float64, len(fitRows))
	for i, r := range fitRows {
		x[i] = features.Values(r.FeatureRow)
		y[i] = r.Target
	}

	intercept, coef, err := fitLeastSquares(x, y)
	if err != nil {
		return nil, nil, fmt.Errorf("fit linear model: %w", err)
	}

	model := &LinearModel{
		Intercept:    intercept,
		Coefficients: make(map[string]float64, len(features.Columns)),
		Schema:       SchemaFingerprint(),
		TrainedAt:    f.now().UTC(),
		TrainingRows: len(fitRows),
	}
	for i, col := range features.Columns {
		model.Coefficients[col] = coef[i]
	}

	if len(testRows) == 0 {
		return model, nil, nil
	}

	predicted := make([]float64, len(testRows))
	actual := make([]float64, len(testRows))
	for i, r := range testRows {
		raw, err := model.PredictRaw(r.FeatureRow)
		if err != nil {
			return nil, nil, err
		}
		predicted[i] = math.Expm1(raw)
		actual[i] = math.Expm1(r.Target)
	}

	metrics := &Metrics{TrainRows: len(fitRows), TestRows: len(testRows)}
	metrics.MAE, metrics.R2 = evaluate(predicted, actual)

	log.Info().
		Int("train_rows", metrics.TrainRows).
		Int("test_rows", metrics.TestRows).
		Float64("mae", metrics.MAE).
		Float64("r2", metrics.R2).
		Msg("forecast: holdout evaluation")

	return model, metrics, nil
}

// Predict scores rows, returning non-negative quantities rounded to 2 decimals
// in input order.
func (f *Forecaster) Predict(model *LinearModel, rows []domain.FeatureRow) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if err := features.Validate(row); err != nil {
			return nil, err
		}
		raw, err := model.PredictRaw(row)
		if err != nil {
			return nil, err
		}
		q := ToQuantity(raw)
		if math.IsNaN(raw) || math.IsInf(q, 0) {
			return nil, &domain.PredictionError{ProductID: row.ProductID, StoreID: row.StoreID, Raw: raw}
		}
		out[i] = q
	}
	return out, nil
}

// ToQuantity maps a log1p-scale output back to a quantity. Outputs past the
// float64 range come back as +Inf unrounded.
func ToQuantity(raw float64) float64 {
	q := math.Expm1(raw)
	if q < 0 || math.IsNaN(q) {
		q = 0
	}
	if math.IsInf(q, 1) {
		return q
	}
	return decimal.NewFromFloat(q).Round(2).InexactFloat64()
}

// LoadOrTrain returns the model for key according to strategy.
func (f *Forecaster) LoadOrTrain(ctx context.Context, key string, rows []domain.TrainingRow, strategy Strategy) (*LinearModel, error) {
	if strategy == ReuseIfPresent {
		exists, err := f.store.Exists(ctx, key)
		if err != nil {
			return nil, &domain.SerializationError{Key: key, Err: err}
		}
		if exists {
			model, err := f.Load(ctx, key)
			if err != nil {
				return nil, err
			}
			log.Info().Str("artifact", key).Msg("Loaded existing model.")
			return model, nil
		}
	}

	model, _, err := f.Train(rows)
	if err != nil {
		return nil, err
	}
	if err := f.Save(ctx, key, model); err != nil {
		return nil, err
	}
	log.Info().Str("artifact", key).Int("rows", len(rows)).Msg("Trained and saved new model.")

	return model, nil
}

// Load reads and decodes the artifact stored under key.
func (f *Forecaster) Load(ctx context.Context, key string) (*LinearModel, error) {
	data, err := f.store.Read(ctx, key)
	if err != nil {
		return nil, &domain.SerializationError{Key: key, Err: err}
	}

	var model LinearModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, &domain.SerializationError{Key: key, Err: err}
	}

	if want := SchemaFingerprint(); model.Schema != want {
		log.Warn().
			Str("artifact", key).
			Str("artifact_schema", model.Schema).
			Str("current_schema", want).
			Msg("forecast: model artifact was trained against a different feature schema")
	}

	return &model, nil
}

// Save encodes model and writes it under key, replacing any previous artifact.
func (f *Forecaster) Save(ctx context.Context, key string, model *LinearModel) error {
	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return &domain.SerializationError{Key: key, Err: err}
	}
	if err := f.store.Write(ctx, key, data); err != nil {
		return &domain.SerializationError{Key: key, Err: err}
	}
	return nil
}

func pick(rows []domain.TrainingRow, idx []int) []domain.TrainingRow {
	out := make([]domain.TrainingRow, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}
