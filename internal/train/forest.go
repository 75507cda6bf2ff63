package train

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrFeatureWidth is returned when rows do not match the fitted feature count.
var ErrFeatureWidth = errors.New("feature width mismatch")

// ForestParams configures a random forest.
type ForestParams struct {
	Trees       int   `json:"trees"`
	MaxDepth    int   `json:"max_depth"`
	MaxFeatures int   `json:"max_features"`
	Seed        int64 `json:"seed"`
}

// DefaultForestParams returns 100 trees of depth at most 6 with seed 42.
func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, MaxDepth: 6, Seed: 42}
}

// Forest is a fitted random forest classifier.
type Forest struct {
	Trees    []Tree       `json:"trees"`
	Params   ForestParams `json:"params"`
	Features int          `json:"features"`
}

// FitForest fits a forest on x and binary labels y. Each tree sees a bootstrap
// sample and considers sqrt(features) candidates per split unless MaxFeatures is set.
// Trees are grown one after another from a single seeded source.
func FitForest(x [][]float64, y []int, params ForestParams) (*Forest, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	if len(x) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureWidth, i, len(row), width)
		}
	}
	if params.Trees <= 0 {
		params.Trees = DefaultForestParams().Trees
	}
	if params.MaxDepth <= 0 {
		params.MaxDepth = DefaultForestParams().MaxDepth
	}
	if params.MaxFeatures <= 0 {
		params.MaxFeatures = max(1, int(math.Sqrt(float64(width))))
	}

	master := rand.New(rand.NewSource(params.Seed)) //nolint:gosec // reproducible sampling, not security
	forest := &Forest{Params: params, Features: width, Trees: make([]Tree, 0, params.Trees)}

	for t := 0; t < params.Trees; t++ {
		rng := rand.New(rand.NewSource(master.Int63())) //nolint:gosec // reproducible sampling, not security
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}
		forest.Trees = append(forest.Trees, growTree(x, y, sample, params.MaxDepth, params.MaxFeatures, rng))
	}

	return forest, nil
}

// PredictProba returns the mean class-1 probability across trees for each row.
func (f *Forest) PredictProba(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != f.Features {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureWidth, i, len(row), f.Features)
		}
		sum := 0.0
		for t := range f.Trees {
			sum += f.Trees[t].Prob(row)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}

// Predict returns 1 where the class-1 probability exceeds one half.
func (f *Forest) Predict(x [][]float64) ([]int, error) {
	probs, err := f.PredictProba(x)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(probs))
	for i, p := range probs {
		if p > 0.5 {
			labels[i] = 1
		}
	}
	return labels, nil
}
