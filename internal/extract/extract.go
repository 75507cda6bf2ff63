// Package extract pages a warehouse query into bounded batches.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/idguard/internal/common"
	"github.com/Veraticus/idguard/internal/model"
	"github.com/Veraticus/idguard/internal/service"
	"github.com/Veraticus/idguard/internal/warehouse"
)

// Extraction errors.
var (
	ErrCount          = errors.New("count query failed")
	ErrInvalidBatch   = errors.New("batch size must be positive")
	ErrMissingMarkers = errors.New("query template must contain {start} and {end}")
)

// Window is an inclusive, 1-based row range.
type Window struct {
	Start int
	End   int
}

// Windows splits total rows into windows of at most size rows.
func Windows(total int64, size int) []Window {
	if total <= 0 || size <= 0 {
		return nil
	}
	batches := int((total + int64(size) - 1) / int64(size))
	windows := make([]Window, 0, batches)
	for b := 0; b < batches; b++ {
		start := b*size + 1
		end := min(start+size-1, int(total))
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows
}

// FailedBatch records a batch that was skipped after exhausting its retries.
type FailedBatch struct {
	Err    error
	Window Window
	Index  int
}

// BatchOutcome is reported to the observer after each batch.
type BatchOutcome struct {
	Err      error
	Window   Window
	Index    int
	Total    int
	Rows     int
	Attempts int
}

// Result is the output of a batched extraction.
type Result struct {
	Table     *model.Table
	Failed    []FailedBatch
	Total     int64
	Requested int
}

// Complete reports whether every batch was fetched.
func (r *Result) Complete() bool {
	return len(r.Failed) == 0
}

// Summary describes the extraction for reporting and run history.
func (r *Result) Summary(label model.Label) model.ExtractionSummary {
	skipped := make([]int, len(r.Failed))
	for i, f := range r.Failed {
		skipped[i] = f.Index
	}
	return model.ExtractionSummary{
		Label:            label,
		TotalRecords:     r.Total,
		BatchesRequested: r.Requested,
		BatchesSkipped:   len(r.Failed),
		SkippedBatches:   skipped,
		RowsFetched:      r.Table.Len(),
	}
}

// Options configures a batched extraction.
type Options struct {
	Observer     func(BatchOutcome)
	Logger       *slog.Logger
	CountQuery   string
	Schema       model.Schema
	Retry        service.RetryOptions
	BatchTimeout time.Duration
	BatchSize    int
}

// Extractor runs batched and single-shot extractions against a warehouse.
type Extractor struct {
	querier service.Querier
	opts    Options
}

// New creates an extractor.
func New(querier service.Querier, opts Options) (*Extractor, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatch, opts.BatchSize)
	}
	if err := opts.Schema.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Extractor{querier: querier, opts: opts}, nil
}

// Count runs the count query and returns the number of eligible rows.
func (e *Extractor) Count(ctx context.Context) (int64, error) {
	rows, err := e.querier.ExecuteQuery(ctx, e.opts.CountQuery)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCount, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, fmt.Errorf("%w: empty result", ErrCount)
	}
	n, err := toInt64(rows[0][0])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCount, err)
	}
	return n, nil
}

// Batched pages template through the warehouse. A failing batch is retried,
// then skipped and recorded in the result. Only a count failure or
// cancellation of ctx aborts the extraction.
func (e *Extractor) Batched(ctx context.Context, template string) (*Result, error) {
	if !hasMarkers(template) {
		return nil, ErrMissingMarkers
	}

	total, err := e.Count(ctx)
	if err != nil {
		e.opts.Logger.Error("Count query failed", "error", err)
		return nil, err
	}

	windows := Windows(total, e.opts.BatchSize)
	result := &Result{
		Table:     model.NewTable(e.opts.Schema),
		Total:     total,
		Requested: len(windows),
	}

	e.opts.Logger.Info("Starting batched extraction",
		"total_records", total,
		"batch_size", e.opts.BatchSize,
		"batches", len(windows))

	for b, w := range windows {
		rows, attempts, err := e.fetchBatch(ctx, template, w)
		if err == nil {
			err = result.Table.Append(rows)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("extraction cancelled at batch %d: %w", b, ctxErr)
		}

		outcome := BatchOutcome{Index: b, Total: len(windows), Window: w, Attempts: attempts, Err: err}
		if err != nil {
			e.opts.Logger.Warn("Skipping batch",
				"batch", b,
				"start", w.Start,
				"end", w.End,
				"attempts", attempts,
				"error", err)
			result.Failed = append(result.Failed, FailedBatch{Index: b, Window: w, Err: err})
		} else {
			outcome.Rows = len(rows)
			e.opts.Logger.Debug("Fetched batch", "batch", b, "rows", len(rows))
		}
		if e.opts.Observer != nil {
			e.opts.Observer(outcome)
		}
	}

	e.opts.Logger.Info("Batched extraction finished",
		"rows", result.Table.Len(),
		"batches_requested", result.Requested,
		"batches_skipped", len(result.Failed))

	return result, nil
}

func (e *Extractor) fetchBatch(ctx context.Context, template string, w Window) ([][]any, int, error) {
	query := warehouse.Render(template, w.Start, w.End)

	var rows [][]any
	var attempts int
	err := common.WithRetry(ctx, func(attempt int) error {
		attempts = attempt
		batchCtx := ctx
		if e.opts.BatchTimeout > 0 {
			var cancel context.CancelFunc
			batchCtx, cancel = context.WithTimeout(ctx, e.opts.BatchTimeout)
			defer cancel()
		}

		var err error
		rows, err = e.querier.ExecuteQuery(batchCtx, query)
		if err != nil {
			return err
		}
		return checkWidth(rows, len(e.opts.Schema.Columns))
	}, e.opts.Retry)

	return rows, attempts, err
}

// FetchOnce reads the named template and runs it once without windowing.
func FetchOnce(ctx context.Context, querier service.Querier, templates service.TemplateReader, name string, schema model.Schema) (*model.Table, error) {
	query, err := templates.ReadTemplate(name)
	if err != nil {
		return nil, err
	}

	rows, err := querier.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}

	table := model.NewTable(schema)
	if err := table.Append(rows); err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return table, nil
}

func checkWidth(rows [][]any, width int) error {
	for i, row := range rows {
		if len(row) != width {
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: row %d has %d values, want %d", model.ErrSchemaMismatch, i, len(row), width),
				Retryable: false,
			}
		}
	}
	return nil
}

func hasMarkers(template string) bool {
	return strings.Contains(template, warehouse.StartMarker) && strings.Contains(template, warehouse.EndMarker)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
