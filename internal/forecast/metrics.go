package forecast

import (
	"encoding/json"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics are holdout diagnostics on the original (expm1) scale.
type Metrics struct {
	TrainRows int
	TestRows  int
	MAE       float64
	R2        float64
}

// MarshalJSON writes r2 as null when it is undefined, e.g. for a constant
// holdout target.
func (m Metrics) MarshalJSON() ([]byte, error) {
	out := struct {
		TrainRows int      `json:"train_rows"`
		TestRows  int      `json:"test_rows"`
		MAE       float64  `json:"mae"`
		R2        *float64 `json:"r2"`
	}{TrainRows: m.TrainRows, TestRows: m.TestRows, MAE: m.MAE}
	if !math.IsNaN(m.R2) && !math.IsInf(m.R2, 0) {
		r2 := m.R2
		out.R2 = &r2
	}
	return json.Marshal(out)
}

// holdoutSplit returns train and test row indices. The test side gets
// ceil(n*fraction) rows picked by a seeded permutation. ok is false when
// either side would be empty.
func holdoutSplit(n int, fraction float64, seed int64) (train, test []int, ok bool) {
	if n < 2 || fraction <= 0 || fraction >= 1 {
		return nil, nil, false
	}

	nTest := int(math.Ceil(float64(n) * fraction))
	if nTest <= 0 || nTest >= n {
		return nil, nil, false
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], true
}

func evaluate(predicted, actual []float64) (mae, r2 float64) {
	mae = floats.Distance(predicted, actual, 1) / float64(len(actual))
	r2 = stat.RSquaredFrom(predicted, actual, nil)
	return mae, r2
}
