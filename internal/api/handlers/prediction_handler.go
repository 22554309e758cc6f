package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/alerts"
	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/andresuchdata/restock-forecast/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	headerRunID = "X-Run-Id"
	headerCache = "X-Cache"
)

type PredictionHandler struct {
	service *service.PredictionService
}

func NewPredictionHandler(service *service.PredictionService) *PredictionHandler {
	return &PredictionHandler{service: service}
}

// GetPredictions runs the pipeline and writes the envelope. Failed runs
// answer 500 with the error shape. Alerts keep (product, store) order unless
// sort=priority; min_priority drops lower tiers.
func (h *PredictionHandler) GetPredictions(c *gin.Context) {
	req, err := parsePredictRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, domain.NewEnvelope(nil, err))
		return
	}
	view, err := parseAlertView(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, domain.NewEnvelope(nil, err))
		return
	}

	res := h.service.Predict(c.Request.Context(), req)
	if res.RunID != "" {
		c.Header(headerRunID, res.RunID)
	}
	if res.Cached {
		c.Header(headerCache, "HIT")
	} else {
		c.Header(headerCache, "MISS")
	}

	if !res.Envelope.Success {
		c.JSON(http.StatusInternalServerError, res.Envelope)
		return
	}

	c.JSON(http.StatusOK, domain.NewEnvelope(view.apply(res.Envelope.Alerts), nil))
}

// alertView narrows and reorders a successful alert list for display.
type alertView struct {
	minPriority domain.Priority
	byPriority  bool
}

func (v alertView) apply(in []domain.Alert) []domain.Alert {
	out := make([]domain.Alert, 0, len(in))
	for _, a := range in {
		if v.minPriority != "" && a.Priority.Rank() < v.minPriority.Rank() {
			continue
		}
		out = append(out, a)
	}
	if v.byPriority {
		alerts.SortByPriority(out)
	}
	return out
}

func parseAlertView(c *gin.Context) (alertView, error) {
	var v alertView

	if raw := strings.TrimSpace(c.Query("min_priority")); raw != "" {
		p, ok := domain.ParsePriority(raw)
		if !ok {
			return v, fmt.Errorf("invalid min_priority value %q", raw)
		}
		v.minPriority = p
	}

	switch sortBy := strings.TrimSpace(c.Query("sort")); sortBy {
	case "", "key":
	case "priority":
		v.byPriority = true
	default:
		return v, fmt.Errorf("invalid sort value %q: want key or priority", sortBy)
	}

	return v, nil
}

func parsePredictRequest(c *gin.Context) (service.PredictRequest, error) {
	var req service.PredictRequest

	if raw := strings.TrimSpace(c.Query("retrain")); raw != "" {
		retrain, err := strconv.ParseBool(raw)
		if err != nil {
			return req, fmt.Errorf("invalid retrain value %q", raw)
		}
		if retrain {
			req.Strategy = forecast.ForceRetrain
		}
	}

	if raw := strings.TrimSpace(c.Query("today")); raw != "" {
		today, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return req, fmt.Errorf("invalid today value %q: want YYYY-MM-DD", raw)
		}
		req.Today = today
	}

	return req, nil
}
