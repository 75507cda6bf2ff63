// Package engine runs the training and scoring workflows end to end.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/idguard/internal/artifact"
	"github.com/Veraticus/idguard/internal/common"
	"github.com/Veraticus/idguard/internal/config"
	"github.com/Veraticus/idguard/internal/dataset"
	"github.com/Veraticus/idguard/internal/extract"
	"github.com/Veraticus/idguard/internal/features"
	"github.com/Veraticus/idguard/internal/model"
	"github.com/Veraticus/idguard/internal/service"
	"github.com/Veraticus/idguard/internal/train"
)

// SessionOpener opens a warehouse session for one workflow.
type SessionOpener func(ctx context.Context) (service.Session, error)

// ProgressFunc returns the batch observer for one class extraction. It may return nil.
type ProgressFunc func(label model.Label) func(extract.BatchOutcome)

// Engine wires extraction, assembly, training and persistence together.
type Engine struct {
	open      SessionOpener
	templates service.TemplateReader
	runs      service.RunStore
	artifacts *artifact.Store
	progress  ProgressFunc
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
	cfg       config.Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgress sets the per-class batch observer factory.
func WithProgress(p ProgressFunc) Option {
	return func(e *Engine) { e.progress = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithArtifacts replaces the artifact store.
func WithArtifacts(s *artifact.Store) Option {
	return func(e *Engine) { e.artifacts = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. runs may be nil, in which case no history is recorded.
func New(open SessionOpener, templates service.TemplateReader, runs service.RunStore, cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		open:      open,
		templates: templates,
		runs:      runs,
		cfg:       cfg,
		artifacts: artifact.NewStore(),
		logger:    slog.Default(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Train extracts both classes, fits the transform and the forest, evaluates on
// the holdout, writes both artifacts and records the run. The returned run is
// non-nil even on failure so callers can render what happened.
func (e *Engine) Train(ctx context.Context) (*model.TrainingRun, error) {
	run := &model.TrainingRun{
		ID:            e.newID(),
		Status:        model.RunStatusRunning,
		StartedAt:     e.now(),
		ModelPath:     e.cfg.Artifacts.ModelPath,
		TransformPath: e.cfg.Artifacts.TransformPath,
	}
	if err := e.record(ctx, run); err != nil {
		return run, err
	}

	e.logger.Info("Starting training run", "run_id", run.ID)
	err := e.train(ctx, run)

	run.FinishedAt = e.now()
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		e.logger.Error("Training run failed", "run_id", run.ID, "error", err)
	} else {
		run.Status = model.RunStatusSucceeded
		e.logger.Info("Training run finished",
			"run_id", run.ID,
			"duration", run.FinishedAt.Sub(run.StartedAt),
			"f1", run.Metrics.F1)
	}

	// An interrupted run is still recorded as failed.
	if saveErr := e.record(context.WithoutCancel(ctx), run); saveErr != nil {
		return run, errors.Join(err, saveErr)
	}
	return run, err
}

func (e *Engine) train(ctx context.Context, run *model.TrainingRun) error {
	valid, invalid, err := e.extractClasses(ctx, run)
	if err != nil {
		return err
	}

	assembler, err := dataset.NewAssembler(model.CustomerSchema, e.cfg.Extraction.StrictIDs)
	if err != nil {
		return err
	}
	ds, err := assembler.Assemble(valid, invalid)
	if err != nil {
		return fmt.Errorf("failed to assemble dataset: %w", err)
	}

	counts := ds.ClassCounts()
	e.logger.Info("Assembled dataset",
		"rows", len(ds.Rows),
		"valid", counts[model.LabelValid],
		"invalid", counts[model.LabelInvalid])

	trainIdx, testIdx, err := train.SplitIndices(len(ds.Rows), e.cfg.Training.TestSize, e.cfg.Training.Seed)
	if err != nil {
		return err
	}
	trainSet, testSet := ds.Subset(trainIdx), ds.Subset(testIdx)

	transform, xTrain, err := features.FitTransform(features.CustomerSpec(), trainSet.Features())
	if err != nil {
		return fmt.Errorf("failed to fit transform: %w", err)
	}
	xTest, err := transform.Transform(testSet.Features())
	if err != nil {
		return fmt.Errorf("failed to transform holdout: %w", err)
	}

	trainer := train.NewTrainer(e.logger)
	trainer.Params = train.ForestParams{
		Trees:    e.cfg.Training.Trees,
		MaxDepth: e.cfg.Training.MaxDepth,
		Seed:     e.cfg.Training.Seed,
	}
	if e.cfg.Training.Neighbors > 0 {
		trainer.Neighbors = e.cfg.Training.Neighbors
	}

	forest, err := trainer.Fit(xTrain, trainSet.Labels())
	if err != nil {
		return fmt.Errorf("failed to train model: %w", err)
	}

	metrics, err := train.Evaluate(forest, xTest, testSet.Labels())
	if err != nil {
		return fmt.Errorf("failed to evaluate model: %w", err)
	}

	if err := e.artifacts.SaveTransform(run.TransformPath, transform); err != nil {
		return err
	}
	if err := e.artifacts.SaveModel(run.ModelPath, forest, transform.SchemaHash()); err != nil {
		return err
	}

	run.Metrics = metrics
	run.SchemaHash = transform.SchemaHash()
	run.TrainRows = len(trainIdx)
	run.TestRows = len(testIdx)
	run.FeatureCount = len(transform.FeatureNames)
	return nil
}

// extractClasses runs the valid and then the invalid extraction on one session,
// closing it before returning.
func (e *Engine) extractClasses(ctx context.Context, run *model.TrainingRun) (valid, invalid *model.Table, err error) {
	session, err := e.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			e.logger.Warn("Failed to close warehouse session", "error", closeErr)
		}
	}()

	queries := []struct {
		name  string
		label model.Label
	}{
		{e.cfg.Extraction.ValidQuery, model.LabelValid},
		{e.cfg.Extraction.InvalidQuery, model.LabelInvalid},
	}

	tables := make([]*model.Table, len(queries))
	for i, q := range queries {
		result, err := e.extractClass(ctx, session, q.name, q.label)
		if err != nil {
			return nil, nil, err
		}
		run.Extractions = append(run.Extractions, result.Summary(q.label))
		tables[i] = result.Table
	}

	if e.cfg.Extraction.RequireAll {
		for _, s := range run.Extractions {
			if !s.Complete() {
				return nil, nil, fmt.Errorf("%w: %s extraction skipped %d of %d batches",
					common.ErrIncompleteRun, s.Label, s.BatchesSkipped, s.BatchesRequested)
			}
		}
	}
	return tables[0], tables[1], nil
}

func (e *Engine) extractClass(ctx context.Context, q service.Querier, name string, label model.Label) (*extract.Result, error) {
	template, err := e.templates.ReadTemplate(name)
	if err != nil {
		return nil, err
	}

	opts := e.extractOptions(label)
	ex, err := extract.New(q, opts)
	if err != nil {
		return nil, err
	}

	result, err := ex.Batched(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("%s extraction: %w", label, err)
	}

	e.logger.Info("Extraction summary",
		"class", label.String(),
		"batches_requested", result.Requested,
		"batches_skipped", len(result.Failed),
		"rows", result.Table.Len())
	return result, nil
}

func (e *Engine) extractOptions(label model.Label) extract.Options {
	x := e.cfg.Extraction
	opts := extract.Options{
		Logger:       e.logger.With("class", label.String()),
		CountQuery:   e.cfg.Warehouse.CountStatement(),
		Schema:       model.CustomerSchema,
		BatchSize:    x.BatchSize,
		BatchTimeout: x.BatchTimeout,
		Retry: service.RetryOptions{
			MaxAttempts:  x.MaxAttempts,
			InitialDelay: x.RetryDelay,
			MaxDelay:     x.RetryDelay * 8,
			Multiplier:   2,
		},
	}
	if e.progress != nil {
		opts.Observer = e.progress(label)
	}
	return opts
}

func (e *Engine) record(ctx context.Context, run *model.TrainingRun) error {
	if e.runs == nil {
		return nil
	}
	if err := e.runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}
