// Package train balances the training set with SMOTE and fits a random forest.
package train

import (
	"log/slog"
)

// Trainer oversamples the minority class and fits a forest with the same seed.
type Trainer struct {
	Logger    *slog.Logger
	Params    ForestParams
	Neighbors int
}

// NewTrainer returns a trainer with the default forest and five SMOTE neighbours.
func NewTrainer(logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{Logger: logger, Params: DefaultForestParams(), Neighbors: 5}
}

// ClassBalance counts the labels of each class.
type ClassBalance struct {
	Invalid int
	Valid   int
}

// Balance counts labels in y.
func Balance(y []int) ClassBalance {
	var b ClassBalance
	for _, label := range y {
		if label == 1 {
			b.Valid++
		} else {
			b.Invalid++
		}
	}
	return b
}

// Fit resamples x and y to equal class counts and fits a forest on the result.
func (t *Trainer) Fit(x [][]float64, y []int) (*Forest, error) {
	before := Balance(y)

	sx, sy, err := SMOTE{Neighbors: t.Neighbors, Seed: t.Params.Seed}.Resample(x, y)
	if err != nil {
		return nil, err
	}

	after := Balance(sy)
	t.Logger.Info("Resampled training set",
		"invalid_before", before.Invalid,
		"valid_before", before.Valid,
		"invalid_after", after.Invalid,
		"valid_after", after.Valid)

	forest, err := FitForest(sx, sy, t.Params)
	if err != nil {
		return nil, err
	}

	t.Logger.Info("Fitted random forest",
		"trees", len(forest.Trees),
		"max_depth", forest.Params.MaxDepth,
		"features", forest.Features)

	return forest, nil
}
