package forecast

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/features"
	"gonum.org/v1/gonum/mat"
)

// rankTolerance drops singular values below this fraction of the largest one.
// Constant columns (a single store, a single year) end up here.
const rankTolerance = 1e-10

// LinearModel is a fitted ordinary-least-squares regressor on log1p(quantity).
type LinearModel struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
	Schema       string             `json:"schema"`
	TrainedAt    time.Time          `json:"trained_at"`
	TrainingRows int                `json:"training_rows"`
}

// SchemaFingerprint identifies the feature columns and derivation rules a
// model is trained against.
func SchemaFingerprint() string {
	raw := fmt.Sprintf("v%d|%s", features.DerivationVersion, strings.Join(features.Columns, ","))
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// PredictRaw returns the model output on the log1p scale.
func (m *LinearModel) PredictRaw(row domain.FeatureRow) (float64, error) {
	values := features.Values(row)
	out := m.Intercept
	for i, col := range features.Columns {
		w, ok := m.Coefficients[col]
		if !ok {
			return 0, &domain.SchemaMismatchError{Column: col, Reason: "model has no coefficient for column"}
		}
		out += w * values[i]
	}
	return out, nil
}

// fitLeastSquares solves min |y - b0 - X·b|² returning the minimum-norm
// solution. Columns are centered so the intercept is mean(y) - mean(X)·b.
func fitLeastSquares(x [][]float64, y []float64) (float64, []float64, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0, nil, domain.ErrInsufficientData
	}
	p := len(x[0])

	xMean := make([]float64, p)
	yMean := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xMean[j] += x[i][j]
		}
		yMean += y[i]
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean /= float64(n)

	centered := mat.NewDense(n, p, nil)
	target := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			centered.Set(i, j, x[i][j]-xMean[j])
		}
		target.Set(i, 0, y[i]-yMean)
	}

	coef := make([]float64, p)

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return 0, nil, fmt.Errorf("least squares: svd factorization failed")
	}

	if rank := svd.Rank(rankTolerance); rank > 0 {
		var beta mat.Dense
		svd.SolveTo(&beta, target, rank)
		for j := 0; j < p; j++ {
			coef[j] = beta.At(j, 0)
		}
	}

	intercept := yMean
	for j := 0; j < p; j++ {
		intercept -= coef[j] * xMean[j]
	}

	return intercept, coef, nil
}
