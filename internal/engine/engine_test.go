package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/idguard/internal/common"
	"github.com/Veraticus/idguard/internal/config"
	"github.com/Veraticus/idguard/internal/extract"
	"github.com/Veraticus/idguard/internal/model"
	"github.com/Veraticus/idguard/internal/service"
	"github.com/Veraticus/idguard/internal/testutil"
	"github.com/Veraticus/idguard/internal/testutil/customers"
	"github.com/Veraticus/idguard/internal/warehouse"
)

// flakySession fails every query that contains failOn.
type flakySession struct {
	service.Session
	failOn string
}

func (f *flakySession) ExecuteQuery(ctx context.Context, query string) ([][]any, error) {
	if f.failOn != "" && strings.Contains(query, f.failOn) {
		return nil, errors.New("spool space exhausted")
	}
	return f.Session.ExecuteQuery(ctx, query)
}

func opener(cfg config.Warehouse, failOn string) SessionOpener {
	return func(ctx context.Context) (service.Session, error) {
		s, err := warehouse.Open(ctx, cfg, nil)
		if err != nil {
			return nil, err
		}
		return &flakySession{Session: s, failOn: failOn}, nil
	}
}

type fixture struct {
	wh  *testutil.Warehouse
	db  *testutil.TestDB
	cfg config.Config
}

func setup(t *testing.T, valid, invalid, batchSize int) *fixture {
	t.Helper()
	rows := customers.NewBuilder(7).WithValid(valid).WithInvalid(invalid).Build()
	wh := testutil.SetupWarehouse(t, rows)

	cfg := wh.Config(batchSize)
	cfg.Training = config.Training{Seed: 42, TestSize: 0.3, Trees: 25, MaxDepth: 6, Neighbors: 5}
	dir := t.TempDir()
	cfg.Artifacts = config.Artifacts{
		ModelPath:     filepath.Join(dir, "models", "random_forest_model.json"),
		TransformPath: filepath.Join(dir, "models", "preprocessor.json"),
	}

	return &fixture{wh: wh, db: testutil.SetupTestDB(t), cfg: cfg}
}

func (f *fixture) engine(failOn string, opts ...Option) *Engine {
	return New(opener(f.cfg.Warehouse, failOn), f.wh.Templates, f.db.Storage, f.cfg, opts...)
}

func TestEngine_TrainAndScore(t *testing.T) {
	f := setup(t, 60, 30, 25)

	var (
		mu       sync.Mutex
		observed = map[model.Label]int{}
	)
	progress := func(label model.Label) func(extract.BatchOutcome) {
		return func(extract.BatchOutcome) {
			mu.Lock()
			observed[label]++
			mu.Unlock()
		}
	}

	e := f.engine("", WithProgress(progress))
	run, err := e.Train(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, 63, run.TrainRows)
	assert.Equal(t, 27, run.TestRows)
	assert.NotEmpty(t, run.SchemaHash)
	assert.Positive(t, run.FeatureCount)
	assert.Greater(t, run.Metrics.Accuracy, 0.6)
	assert.Equal(t, map[model.Label]int{model.LabelValid: 4, model.LabelInvalid: 4}, observed)

	require.Len(t, run.Extractions, 2)
	for _, s := range run.Extractions {
		assert.True(t, s.Complete())
		assert.Equal(t, int64(90), s.TotalRecords)
		assert.Equal(t, 4, s.BatchesRequested)
	}
	assert.Equal(t, 60, run.Extractions[0].RowsFetched)
	assert.Equal(t, 30, run.Extractions[1].RowsFetched)

	assert.FileExists(t, f.cfg.Artifacts.ModelPath)
	assert.FileExists(t, f.cfg.Artifacts.TransformPath)

	stored := f.db.MustGetRun(run.ID)
	assert.Equal(t, model.RunStatusSucceeded, stored.Status)
	assert.Equal(t, run.Metrics, stored.Metrics)
	assert.Len(t, stored.Extractions, 2)

	scores, err := e.Score(context.Background())
	require.NoError(t, err)
	require.Len(t, scores, 90)
	for i, s := range scores {
		assert.Equal(t, f.wh.Customers[i].Record.CustomerID, s.CustomerID)
		assert.GreaterOrEqual(t, s.Probability, 0.0)
		assert.LessOrEqual(t, s.Probability, 1.0)
		assert.Equal(t, s.Probability > 0.5, s.Label == model.LabelValid)
	}
}

func TestEngine_TrainSkipsFailedBatch(t *testing.T) {
	f := setup(t, 60, 30, 25)

	run, err := f.engine("BETWEEN 26 AND 50").Train(context.Background())
	require.NoError(t, err)

	require.Len(t, run.Extractions, 2)
	for _, s := range run.Extractions {
		assert.False(t, s.Complete())
		assert.Equal(t, 4, s.BatchesRequested)
		assert.Equal(t, 1, s.BatchesSkipped)
		assert.Equal(t, []int{1}, s.SkippedBatches)
	}
	assert.Less(t, run.TrainRows+run.TestRows, 90)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
}

func TestEngine_TrainRequireComplete(t *testing.T) {
	f := setup(t, 60, 30, 25)
	f.cfg.Extraction.RequireAll = true

	run, err := f.engine("BETWEEN 26 AND 50").Train(context.Background())
	require.ErrorIs(t, err, common.ErrIncompleteRun)
	assert.Equal(t, model.RunStatusFailed, run.Status)

	stored := f.db.MustGetRun(run.ID)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "skipped 1 of 4 batches")
	assert.Len(t, stored.Extractions, 2)

	_, statErr := os.Stat(f.cfg.Artifacts.ModelPath)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestEngine_TrainOpenFailure(t *testing.T) {
	f := setup(t, 10, 10, 25)
	fail := func(context.Context) (service.Session, error) {
		return nil, common.ErrConnection
	}
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	e := New(fail, f.wh.Templates, f.db.Storage, f.cfg, WithClock(func() time.Time { return now }))
	run, err := e.Train(context.Background())
	require.ErrorIs(t, err, common.ErrConnection)

	stored := f.db.MustGetRun(run.ID)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
	assert.True(t, stored.StartedAt.Equal(now))
	assert.Empty(t, stored.Extractions)
}

func TestEngine_ScoreWithoutArtifacts(t *testing.T) {
	f := setup(t, 5, 5, 25)

	_, err := f.engine("").Score(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEngine_TrainWithoutHistory(t *testing.T) {
	f := setup(t, 30, 15, 50)

	e := New(opener(f.cfg.Warehouse, ""), f.wh.Templates, nil, f.cfg)
	run, err := e.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
}
