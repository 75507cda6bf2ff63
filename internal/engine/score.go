package engine

import (
	"context"
	"fmt"

	"github.com/Veraticus/idguard/internal/dataset"
	"github.com/Veraticus/idguard/internal/extract"
	"github.com/Veraticus/idguard/internal/model"
)

// Score is the model output for one customer.
type Score struct {
	CustomerID  string
	Probability float64
	Label       model.Label
}

// Score loads the stored transform and model, fetches the scoring query once
// and predicts every returned row. The transform is applied as fitted, never refit.
func (e *Engine) Score(ctx context.Context) ([]Score, error) {
	transform, forest, err := e.artifacts.LoadPair(e.cfg.Artifacts.TransformPath, e.cfg.Artifacts.ModelPath)
	if err != nil {
		return nil, err
	}

	table, err := e.fetchScoring(ctx)
	if err != nil {
		return nil, err
	}

	assembler, err := dataset.NewAssembler(model.CustomerSchema, e.cfg.Extraction.StrictIDs)
	if err != nil {
		return nil, err
	}
	ds, err := assembler.AssembleUnlabeled(table)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble scoring set: %w", err)
	}

	x, err := transform.Transform(ds.Features())
	if err != nil {
		return nil, fmt.Errorf("failed to transform scoring set: %w", err)
	}
	probs, err := forest.PredictProba(x)
	if err != nil {
		return nil, err
	}

	ids := ds.Identifiers()
	scores := make([]Score, len(probs))
	for i, p := range probs {
		label := model.LabelInvalid
		if p > 0.5 {
			label = model.LabelValid
		}
		scores[i] = Score{CustomerID: ids[i], Probability: p, Label: label}
	}

	e.logger.Info("Scored customers", "rows", len(scores))
	return scores, nil
}

func (e *Engine) fetchScoring(ctx context.Context) (*model.Table, error) {
	session, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			e.logger.Warn("Failed to close warehouse session", "error", closeErr)
		}
	}()

	return extract.FetchOnce(ctx, session, e.templates, e.cfg.Extraction.ScoreQuery, model.CustomerSchema)
}
