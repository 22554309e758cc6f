package service

import (
	"context"
	"sync"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/cache"
	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
	"github.com/rs/zerolog/log"
)

// PredictRequest selects the model strategy and, optionally, the first
// horizon day. A zero Today means the orchestrator clock.
type PredictRequest struct {
	Strategy forecast.Strategy
	Today    time.Time
}

// PredictResult is one envelope plus where it came from.
type PredictResult struct {
	RunID    string
	Today    time.Time
	Cached   bool
	Envelope domain.Envelope
}

// PredictionService runs the restock pipeline on demand. Runs are serialized
// because they share one model artifact.
type PredictionService struct {
	orchestrator *pipeline.Orchestrator
	cache        cache.AlertCache

	mu sync.Mutex
}

func NewPredictionService(orchestrator *pipeline.Orchestrator, cacheImpl cache.AlertCache) *PredictionService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAlertCache()
	}
	return &PredictionService{orchestrator: orchestrator, cache: cacheImpl}
}

func (s *PredictionService) Predict(ctx context.Context, req PredictRequest) PredictResult {
	cfg := s.orchestrator.Config()
	var today time.Time
	if req.Today.IsZero() {
		today = s.orchestrator.Now().In(cfg.Location)
	} else {
		// keep the requested calendar date whatever zone it was parsed in
		y, m, d := req.Today.Date()
		today = time.Date(y, m, d, 0, 0, 0, 0, cfg.Location)
	}

	query := cache.AlertQuery{
		Today:       today,
		HorizonDays: cfg.HorizonDays,
		Low:         cfg.Thresholds.Low,
		Medium:      cfg.Thresholds.Medium,
		High:        cfg.Thresholds.High,
		Artifact:    cfg.ArtifactKey,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Strategy == forecast.ReuseIfPresent {
		if alerts, ok, err := s.cache.Get(ctx, query); err == nil && ok {
			log.Debug().Str("today", today.Format("2006-01-02")).Msg("predictions: served from cache")
			return PredictResult{Today: today, Cached: true, Envelope: domain.NewEnvelope(alerts, nil)}
		} else if err != nil {
			log.Warn().Err(err).Msg("predictions: cache get failed")
		}
	}

	run := s.orchestrator.ExecuteOn(ctx, req.Strategy, today)
	result := PredictResult{RunID: run.ID, Today: run.Today, Envelope: run.Envelope()}
	if run.Err != nil {
		return result
	}

	// a retrained model makes every cached list stale
	if req.Strategy == forecast.ForceRetrain {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			log.Warn().Err(err).Msg("predictions: cache invalidate failed")
		}
	}
	if err := s.cache.Set(ctx, query, run.Alerts); err != nil {
		log.Warn().Err(err).Msg("predictions: cache set failed")
	}

	return result
}
