package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/idguard/internal/extract"
	"github.com/Veraticus/idguard/internal/fingerprint"
	"github.com/Veraticus/idguard/internal/model"
)

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"A", "B"}, [][]string{{"x"}, {"y", "z"}}, []Alignment{AlignLeft, AlignRight})

	assert.Contains(t, out, "A")
	assert.Contains(t, out, "x")
	assert.Contains(t, out, "z")
	assert.Empty(t, RenderTable(nil, [][]string{{"x"}}, nil))
}

func TestRenderExtractions(t *testing.T) {
	out := RenderExtractions([]model.ExtractionSummary{
		{Label: model.LabelValid, TotalRecords: 250, BatchesRequested: 3, RowsFetched: 250},
		{Label: model.LabelInvalid, TotalRecords: 250, BatchesRequested: 3, BatchesSkipped: 1, SkippedBatches: []int{2}, RowsFetched: 80},
	})

	assert.Contains(t, out, "valid")
	assert.Contains(t, out, "invalid")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "skipped [2]")
}

func TestRenderRun(t *testing.T) {
	started := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	t.Run("succeeded", func(t *testing.T) {
		out := RenderRun(&model.TrainingRun{
			ID:            "b1f7",
			Status:        model.RunStatusSucceeded,
			StartedAt:     started,
			ModelPath:     "models/m.json",
			TransformPath: "models/t.json",
			TrainRows:     70,
			TestRows:      30,
			Metrics:       model.Metrics{Accuracy: 0.9, F1: 0.875},
		})
		assert.Contains(t, out, "0.900")
		assert.Contains(t, out, "0.875")
		assert.Contains(t, out, "models/m.json")
	})

	t.Run("failed", func(t *testing.T) {
		out := RenderRun(&model.TrainingRun{ID: "c2", Status: model.RunStatusFailed, StartedAt: started, Error: "boom"})
		assert.Contains(t, out, "Run failed: boom")
	})
}

func TestRenderRuns(t *testing.T) {
	started := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	out := RenderRuns([]model.TrainingRun{{
		ID:         "0123456789abcdef",
		Status:     model.RunStatusSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(95 * time.Second),
		Metrics:    model.Metrics{F1: 0.5},
		Extractions: []model.ExtractionSummary{
			{BatchesRequested: 2, BatchesSkipped: 1},
			{BatchesRequested: 2, BatchesSkipped: 1},
		},
	}})

	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "1m35s")
	assert.Contains(t, out, "0.500")
}

func TestRenderScoresAndFingerprint(t *testing.T) {
	out := RenderScores([]Score{{CustomerID: "48213907", Probability: 0.93, Predicted: model.LabelValid}})
	assert.Contains(t, out, "48213907")
	assert.Contains(t, out, "0.930")

	out = RenderFingerprint("123456", fingerprint.Compute("123456"))
	assert.Contains(t, out, "123456")
	assert.Contains(t, out, "true")
}

func TestBatchProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewBatchProgress(&buf, "valid")

	p.Observe(extract.BatchOutcome{Index: 0, Total: 3, Rows: 100})
	p.Observe(extract.BatchOutcome{Index: 1, Total: 3, Err: errors.New("timeout")})
	p.Observe(extract.BatchOutcome{Index: 2, Total: 3, Rows: 50})

	require.Equal(t, 1, p.Skipped())
	assert.Contains(t, buf.String(), "Extracting valid")
}

func TestInterruptHandler_Stop(t *testing.T) {
	var buf bytes.Buffer
	h := NewInterruptHandler(&buf, "run recorded as failed")

	ctx, stop := h.HandleInterrupts(context.Background())
	stop()
	stop()

	<-ctx.Done()
	assert.False(t, h.WasInterrupted())
	assert.Empty(t, buf.String())
}
