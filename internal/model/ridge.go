package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/raceforge/regsim/internal/dataset"
	"github.com/raceforge/regsim/pkg/logger"
)

var (
	// ErrNotFitted indicates Predict was called on an unfitted model.
	ErrNotFitted = errors.New("model: not fitted")
	// ErrColumnMismatch indicates the prediction batch schema differs from
	// the schema used at fit time.
	ErrColumnMismatch = errors.New("model: feature columns do not match fit columns")
)

const (
	holdoutFraction = 0.2
	defaultLambda   = 1.0
)

// Metrics holds diagnostic holdout accuracy. These never gate model use.
type Metrics struct {
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
	SpearmanRho float64 `json:"spearman_rho"`
	TrainRows   int     `json:"train_rows"`
	HoldoutRows int     `json:"holdout_rows"`
}

// Ridge is a fitted L2-regularized linear regression predicting a
// continuous finishing-position value. Immutable after Fit.
type Ridge struct {
	columns   []string
	columnSet map[string]int
	weights   []float64 // one per feature column
	intercept float64
	means     []float64 // training-fold imputation means

	Lambda  float64
	Metrics Metrics
}

// Fit trains a ridge regression on the feature table. Missing feature
// values are imputed with column means computed over the training fold
// only. A seeded 80/20 split produces holdout metrics; the returned model
// is fitted on the training fold.
func Fit(t *dataset.Table, target string, featureColumns []string, seed int64) (*Ridge, error) {
	if t == nil || t.NumRows() == 0 {
		return nil, dataset.ErrEmptyTable
	}
	if len(featureColumns) == 0 {
		return nil, fmt.Errorf("model: no feature columns given")
	}
	if !t.HasColumn(target) {
		return nil, fmt.Errorf("%w: target %q", dataset.ErrMissingColumn, target)
	}
	for _, c := range featureColumns {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("%w: feature %q", dataset.ErrMissingColumn, c)
		}
	}

	y, err := t.Column(target)
	if err != nil {
		return nil, err
	}
	for i, v := range y {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("model: NaN target %q at row %d", target, i)
		}
	}

	features, err := t.Select(featureColumns)
	if err != nil {
		return nil, err
	}

	n := features.NumRows()
	p := len(featureColumns)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

	holdout := int(float64(n) * holdoutFraction)
	trainIdx := indices[:n-holdout]
	holdoutIdx := indices[n-holdout:]

	means := columnMeans(features, trainIdx)

	x := imputedMatrix(features, trainIdx, means)
	yTrain := make([]float64, len(trainIdx))
	for i, idx := range trainIdx {
		yTrain[i] = y[idx]
	}

	m := &Ridge{
		columns:   append([]string(nil), featureColumns...),
		columnSet: columnSet(featureColumns),
		means:     means,
		Lambda:    defaultLambda,
	}
	if err := m.solve(x, yTrain, p); err != nil {
		return nil, fmt.Errorf("model: fit failed: %w", err)
	}

	evalIdx := holdoutIdx
	if len(evalIdx) == 0 {
		evalIdx = trainIdx
	}
	m.Metrics = m.evaluate(features, y, evalIdx)
	m.Metrics.TrainRows = len(trainIdx)
	m.Metrics.HoldoutRows = len(holdoutIdx)

	logger.GetLogger().WithFields(logrus.Fields{
		"rows":         n,
		"features":     p,
		"holdout_rows": len(holdoutIdx),
		"mae":          m.Metrics.MAE,
		"rmse":         m.Metrics.RMSE,
		"spearman_rho": m.Metrics.SpearmanRho,
	}).Info("Ridge model fitted")

	return m, nil
}

// solve fits weights via the augmented least-squares formulation of
// ridge: rows of sqrt(lambda)*I are appended so the intercept stays
// unpenalized and a rank-deficient design still has a unique solution.
func (m *Ridge) solve(x [][]float64, y []float64, p int) error {
	n := len(x)
	rows := n + p
	cols := p + 1 // trailing intercept column

	a := mat.NewDense(rows, cols, nil)
	b := mat.NewVecDense(rows, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			a.Set(i, j, x[i][j])
		}
		a.Set(i, p, 1.0)
		b.SetVec(i, y[i])
	}
	sqrtLambda := math.Sqrt(m.Lambda)
	for j := 0; j < p; j++ {
		a.Set(n+j, j, sqrtLambda)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return err
	}

	m.weights = make([]float64, p)
	for j := 0; j < p; j++ {
		m.weights[j] = sol.AtVec(j)
	}
	m.intercept = sol.AtVec(p)
	return nil
}

// Columns returns the ordered feature columns used at fit time.
func (m *Ridge) Columns() []string {
	return append([]string(nil), m.columns...)
}

// Predict returns one predicted value per row of the batch. The batch's
// column set must match the fit columns by name; order is irrelevant.
// Pure given the fitted parameters.
func (m *Ridge) Predict(batch *dataset.Table) ([]float64, error) {
	if m.weights == nil {
		return nil, ErrNotFitted
	}
	if !sameColumnSet(batch.Columns, m.columnSet) {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrColumnMismatch, batch.Columns, m.columns)
	}

	idx := make([]int, len(m.columns))
	for j, c := range m.columns {
		// a duplicated batch column can pass the set-size check while
		// shadowing a missing one
		i, ok := batch.ColumnIndex(c)
		if !ok {
			return nil, fmt.Errorf("%w: batch missing %q", ErrColumnMismatch, c)
		}
		idx[j] = i
	}

	out := make([]float64, batch.NumRows())
	for r, row := range batch.Rows {
		v := m.intercept
		for j, i := range idx {
			value := row.Values[i]
			if math.IsNaN(value) {
				value = m.means[j]
			}
			v += m.weights[j] * value
		}
		out[r] = v
	}
	return out, nil
}

func (m *Ridge) evaluate(features *dataset.Table, y []float64, idx []int) Metrics {
	batch := dataset.NewTable(features.Columns)
	truth := make([]float64, len(idx))
	for i, rowIdx := range idx {
		row := features.Rows[rowIdx]
		row.Values = append([]float64(nil), row.Values...)
		batch.Rows = append(batch.Rows, row)
		truth[i] = y[rowIdx]
	}
	preds, err := m.Predict(batch)
	if err != nil {
		return Metrics{}
	}
	return Metrics{
		MAE:         meanAbsoluteError(preds, truth),
		RMSE:        rootMeanSquaredError(preds, truth),
		SpearmanRho: spearman(preds, truth),
	}
}

func columnMeans(features *dataset.Table, idx []int) []float64 {
	p := len(features.Columns)
	means := make([]float64, p)
	for j := 0; j < p; j++ {
		sum, count := 0.0, 0
		for _, rowIdx := range idx {
			v := features.Rows[rowIdx].Values[j]
			if !math.IsNaN(v) {
				sum += v
				count++
			}
		}
		if count > 0 {
			means[j] = sum / float64(count)
		}
	}
	return means
}

func imputedMatrix(features *dataset.Table, idx []int, means []float64) [][]float64 {
	out := make([][]float64, len(idx))
	for i, rowIdx := range idx {
		src := features.Rows[rowIdx].Values
		row := make([]float64, len(src))
		for j, v := range src {
			if math.IsNaN(v) {
				v = means[j]
			}
			row[j] = v
		}
		out[i] = row
	}
	return out
}

func columnSet(columns []string) map[string]int {
	set := make(map[string]int, len(columns))
	for i, c := range columns {
		set[c] = i
	}
	return set
}

func sameColumnSet(columns []string, set map[string]int) bool {
	if len(columns) != len(set) {
		return false
	}
	for _, c := range columns {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}

func meanAbsoluteError(preds, truth []float64) float64 {
	if len(preds) == 0 {
		return 0
	}
	sum := 0.0
	for i := range preds {
		sum += math.Abs(preds[i] - truth[i])
	}
	return sum / float64(len(preds))
}

func rootMeanSquaredError(preds, truth []float64) float64 {
	if len(preds) == 0 {
		return 0
	}
	sum := 0.0
	for i := range preds {
		diff := preds[i] - truth[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(preds)))
}
