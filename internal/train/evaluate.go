package train

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/Veraticus/idguard/internal/model"
)

// ErrInvalidSplit is returned for an unusable holdout configuration.
var ErrInvalidSplit = errors.New("invalid train/test split")

// Split shuffles rows with seed and holds out testSize of them.
func Split(x [][]float64, y []int, testSize float64, seed int64) (xTrain [][]float64, xTest [][]float64, yTrain []int, yTest []int, err error) {
	if len(x) != len(y) {
		return nil, nil, nil, nil, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	trainIdx, testIdx, err := SplitIndices(len(x), testSize, seed)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	for _, i := range testIdx {
		xTest = append(xTest, x[i])
		yTest = append(yTest, y[i])
	}
	for _, i := range trainIdx {
		xTrain = append(xTrain, x[i])
		yTrain = append(yTrain, y[i])
	}
	return xTrain, xTest, yTrain, yTest, nil
}

// SplitIndices permutes 0..n-1 with seed and returns the train and test positions.
// The test share is ceil(n*testSize), leaving at least one training row.
func SplitIndices(n int, testSize float64, seed int64) (trainIdx, testIdx []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("%w: test size must be in (0, 1), got %v", ErrInvalidSplit, testSize)
	}
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 rows, got %d", ErrInvalidSplit, n)
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible sampling, not security
	perm := rng.Perm(n)

	// The epsilon keeps products like 10*0.3 from rounding up to 4.
	nTest := min(int(math.Ceil(float64(n)*testSize-1e-9)), n-1)
	return perm[nTest:], perm[:nTest], nil
}

// Evaluate scores predictions against y, treating label 1 as positive.
func Evaluate(f *Forest, x [][]float64, y []int) (model.Metrics, error) {
	pred, err := f.Predict(x)
	if err != nil {
		return model.Metrics{}, err
	}
	if len(pred) != len(y) {
		return model.Metrics{}, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(pred), len(y))
	}

	var m model.Metrics
	for i, p := range pred {
		switch {
		case p == 1 && y[i] == 1:
			m.TruePositives++
		case p == 0 && y[i] == 0:
			m.TrueNegatives++
		case p == 1:
			m.FalsePositives++
		default:
			m.FalseNegatives++
		}
	}

	m.Accuracy = ratio(m.TruePositives+m.TrueNegatives, len(y))
	m.Precision = ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
	m.Recall = ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
