package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/idguard/internal/model"
	"github.com/Veraticus/idguard/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = model.Schema{Name: "test", Columns: []string{"customer_id", "window"}}

// fakeWarehouse serves a fixed number of rows and fails configured windows.
type fakeWarehouse struct {
	failStarts map[int]bool
	countErr   error
	queries    []string
	total      int
}

func (f *fakeWarehouse) ExecuteQuery(ctx context.Context, query string) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.queries = append(f.queries, query)
	if strings.HasPrefix(query, "COUNT") {
		if f.countErr != nil {
			return nil, f.countErr
		}
		return [][]any{{int64(f.total)}}, nil
	}

	var start, end int
	if _, err := fmt.Sscanf(query, "SELECT %d %d", &start, &end); err != nil {
		return nil, err
	}
	if f.failStarts[start] {
		return nil, errors.New("spool space exhausted")
	}
	var rows [][]any
	for i := start; i <= end && i <= f.total; i++ {
		rows = append(rows, []any{fmt.Sprintf("%d", 1000+i), fmt.Sprintf("%d-%d", start, end)})
	}
	return rows, nil
}

func newExtractor(t *testing.T, q service.Querier, size int) *Extractor {
	t.Helper()
	e, err := New(q, Options{
		CountQuery: "COUNT",
		Schema:     testSchema,
		BatchSize:  size,
		Retry:      service.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond},
	})
	require.NoError(t, err)
	return e
}

func TestWindows(t *testing.T) {
	tests := []struct {
		name  string
		want  []Window
		total int64
		size  int
	}{
		{
			name:  "uneven last batch",
			total: 250,
			size:  100,
			want:  []Window{{1, 100}, {101, 200}, {201, 250}},
		},
		{
			name:  "exact multiple",
			total: 200,
			size:  100,
			want:  []Window{{1, 100}, {101, 200}},
		},
		{
			name:  "smaller than one batch",
			total: 7,
			size:  100,
			want:  []Window{{1, 7}},
		},
		{
			name:  "empty source",
			total: 0,
			size:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Windows(tt.total, tt.size))
		})
	}
}

func TestExtractor_Batched(t *testing.T) {
	wh := &fakeWarehouse{total: 250}
	e := newExtractor(t, wh, 100)

	var outcomes []BatchOutcome
	e.opts.Observer = func(o BatchOutcome) { outcomes = append(outcomes, o) }

	res, err := e.Batched(context.Background(), "SELECT {start} {end}")
	require.NoError(t, err)

	assert.Equal(t, []string{"COUNT", "SELECT 1 100", "SELECT 101 200", "SELECT 201 250"}, wh.queries)
	assert.Equal(t, 3, res.Requested)
	assert.True(t, res.Complete())
	assert.Equal(t, 250, res.Table.Len())
	assert.Equal(t, testSchema.Columns, res.Table.Columns)

	// Batch-major order.
	assert.Equal(t, "1001", res.Table.Rows[0][0])
	assert.Equal(t, "1101", res.Table.Rows[100][0])
	assert.Equal(t, "1250", res.Table.Rows[249][0])

	require.Len(t, outcomes, 3)
	assert.Equal(t, 50, outcomes[2].Rows)
}

func TestExtractor_BatchedSkipsFailingBatch(t *testing.T) {
	wh := &fakeWarehouse{total: 250, failStarts: map[int]bool{201: true}}
	e := newExtractor(t, wh, 100)

	res, err := e.Batched(context.Background(), "SELECT {start} {end}")
	require.NoError(t, err)

	assert.False(t, res.Complete())
	assert.Equal(t, 200, res.Table.Len())
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 2, res.Failed[0].Index)
	assert.Equal(t, Window{201, 250}, res.Failed[0].Window)

	// The failing batch was attempted twice before being skipped.
	assert.Equal(t, 2, strings.Count(strings.Join(wh.queries, "|"), "SELECT 201 250"))

	summary := res.Summary(model.LabelValid)
	assert.Equal(t, 3, summary.BatchesRequested)
	assert.Equal(t, 1, summary.BatchesSkipped)
	assert.Equal(t, []int{2}, summary.SkippedBatches)
	assert.Equal(t, 200, summary.RowsFetched)
	assert.False(t, summary.Complete())
}

// hangingWarehouse blocks on the configured windows until the query context ends.
type hangingWarehouse struct {
	fakeWarehouse
	hangStarts map[int]bool
}

func (h *hangingWarehouse) ExecuteQuery(ctx context.Context, query string) ([][]any, error) {
	var start, end int
	if _, err := fmt.Sscanf(query, "SELECT %d %d", &start, &end); err == nil && h.hangStarts[start] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return h.fakeWarehouse.ExecuteQuery(ctx, query)
}

func TestExtractor_BatchTimeoutSkipsHungBatch(t *testing.T) {
	wh := &hangingWarehouse{fakeWarehouse: fakeWarehouse{total: 250}, hangStarts: map[int]bool{101: true}}
	e := newExtractor(t, wh, 100)
	e.opts.BatchTimeout = 20 * time.Millisecond

	began := time.Now()
	res, err := e.Batched(context.Background(), "SELECT {start} {end}")
	elapsed := time.Since(began)
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, 1, res.Failed[0].Index)
	assert.ErrorIs(t, res.Failed[0].Err, context.DeadlineExceeded)

	// The batches after the hung one still ran.
	assert.Equal(t, 150, res.Table.Len())
	assert.Contains(t, wh.queries, "SELECT 201 250")
	assert.Less(t, elapsed, 2*time.Second)
}

func TestExtractor_CountFailureIsFatal(t *testing.T) {
	wh := &fakeWarehouse{countErr: errors.New("connection reset")}
	e := newExtractor(t, wh, 100)

	_, err := e.Batched(context.Background(), "SELECT {start} {end}")
	assert.ErrorIs(t, err, ErrCount)
	assert.Len(t, wh.queries, 1)
}

func TestExtractor_Cancelled(t *testing.T) {
	wh := &fakeWarehouse{total: 250}
	e := newExtractor(t, wh, 100)

	ctx, cancel := context.WithCancel(context.Background())
	e.opts.Observer = func(o BatchOutcome) {
		if o.Index == 0 {
			cancel()
		}
	}

	_, err := e.Batched(ctx, "SELECT {start} {end}")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractor_RejectsTemplateWithoutMarkers(t *testing.T) {
	e := newExtractor(t, &fakeWarehouse{total: 10}, 5)
	_, err := e.Batched(context.Background(), "SELECT * FROM t")
	assert.ErrorIs(t, err, ErrMissingMarkers)
}

func TestNew_InvalidBatchSize(t *testing.T) {
	_, err := New(&fakeWarehouse{}, Options{Schema: testSchema})
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

type staticTemplates map[string]string

func (s staticTemplates) ReadTemplate(name string) (string, error) {
	tpl, ok := s[name]
	if !ok {
		return "", errors.New("not found")
	}
	return tpl, nil
}

func TestFetchOnce(t *testing.T) {
	wh := &fakeWarehouse{total: 3}
	tpls := staticTemplates{"score.sql": "SELECT 1 3"}

	table, err := FetchOnce(context.Background(), wh, tpls, "score.sql", testSchema)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"SELECT 1 3"}, wh.queries)

	_, err = FetchOnce(context.Background(), wh, tpls, "missing.sql", testSchema)
	assert.Error(t, err)
}
