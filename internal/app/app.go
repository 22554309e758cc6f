package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/restock-forecast/internal/alerts"
	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
	"github.com/andresuchdata/restock-forecast/internal/repository"
	"github.com/andresuchdata/restock-forecast/internal/repository/sqldb"
	"github.com/andresuchdata/restock-forecast/internal/storage"
	"github.com/rs/zerolog/log"
)

// App holds the pipeline dependencies shared by the CLI and the HTTP server.
type App struct {
	Config       *config.Config
	Source       pipeline.SalesSource
	Store        forecast.ArtifactStore
	Forecaster   *forecast.Forecaster
	Orchestrator *pipeline.Orchestrator

	closers []func() error
}

// New connects the configured data source and artifact store.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pipelineCfg := PipelineConfig(cfg)
	if err := pipelineCfg.Thresholds.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg}

	source, closeSource, err := NewSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Source = source
	if closeSource != nil {
		a.closers = append(a.closers, closeSource)
	}

	store, err := NewArtifactStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	a.Forecaster = forecast.NewForecaster(store, forecast.Options{
		HoldoutFraction: cfg.Forecast.HoldoutFraction,
		HoldoutSeed:     cfg.Forecast.HoldoutSeed,
	})
	a.Orchestrator = pipeline.NewOrchestrator(source, a.Forecaster, pipelineCfg)

	log.Info().
		Str("source", cfg.Source.Kind).
		Str("artifact_backend", cfg.Forecast.ArtifactBackend).
		Str("artifact", cfg.Forecast.ArtifactPath).
		Msg("app: dependencies ready")

	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// DefaultStrategy maps RETRAIN_POLICY onto a model strategy.
func (a *App) DefaultStrategy() forecast.Strategy {
	s, err := forecast.ParseStrategy(a.Config.Forecast.RetrainPolicy)
	if err != nil {
		return forecast.ReuseIfPresent
	}
	return s
}

func PipelineConfig(cfg *config.Config) pipeline.PipelineConfig {
	return pipeline.PipelineConfig{
		HorizonDays: cfg.Forecast.HorizonDays,
		ArtifactKey: cfg.Forecast.ArtifactPath,
		Thresholds: alerts.Thresholds{
			Low:    cfg.Forecast.LowThreshold,
			Medium: cfg.Forecast.MedThreshold,
			High:   cfg.Forecast.HighThreshold,
		},
		Location: cfg.Forecast.Location(),
	}
}

// NewSource opens the sales data source. The returned func closes it and may
// be nil.
func NewSource(ctx context.Context, cfg *config.Config) (pipeline.SalesSource, func() error, error) {
	switch cfg.Source.Kind {
	case "file":
		return repository.NewFileSource(cfg.Source.Dir), nil, nil
	case "sql", "":
		db, err := sqldb.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewSalesRepository(db, cfg.Database.Schema)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported source kind %q", cfg.Source.Kind)
	}
}

func NewArtifactStore(cfg *config.Config) (forecast.ArtifactStore, error) {
	switch cfg.Forecast.ArtifactBackend {
	case "file", "":
		return forecast.NewFileStore(), nil
	case "s3":
		client, err := storage.New(StorageConfig(cfg))
		if err != nil {
			return nil, err
		}
		return forecast.NewObjectStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported artifact backend %q", cfg.Forecast.ArtifactBackend)
	}
}

func StorageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	}
}
