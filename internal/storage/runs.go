package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/idguard/internal/model"
)

// SaveRun inserts or replaces a training run and its extraction summaries.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *model.TrainingRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var finishedAt any
	if !run.FinishedAt.IsZero() {
		finishedAt = run.FinishedAt.UTC()
	}

	m := run.Metrics
	_, err = tx.ExecContext(ctx, `
		INSERT INTO training_runs (
			id, status, started_at, finished_at, model_path, transform_path, schema_hash, error,
			train_rows, test_rows, feature_count,
			accuracy, precision_score, recall, f1,
			true_positives, true_negatives, false_positives, false_negatives
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			model_path = excluded.model_path,
			transform_path = excluded.transform_path,
			schema_hash = excluded.schema_hash,
			error = excluded.error,
			train_rows = excluded.train_rows,
			test_rows = excluded.test_rows,
			feature_count = excluded.feature_count,
			accuracy = excluded.accuracy,
			precision_score = excluded.precision_score,
			recall = excluded.recall,
			f1 = excluded.f1,
			true_positives = excluded.true_positives,
			true_negatives = excluded.true_negatives,
			false_positives = excluded.false_positives,
			false_negatives = excluded.false_negatives`,
		run.ID, run.Status, run.StartedAt.UTC(), finishedAt,
		run.ModelPath, run.TransformPath, run.SchemaHash, run.Error,
		run.TrainRows, run.TestRows, run.FeatureCount,
		m.Accuracy, m.Precision, m.Recall, m.F1,
		m.TruePositives, m.TrueNegatives, m.FalsePositives, m.FalseNegatives,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM run_extractions WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear extractions for run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_extractions (
			run_id, label, total_records, batches_requested, batches_skipped, skipped_batches, rows_fetched
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, e := range run.Extractions {
		skipped, marshalErr := json.Marshal(e.SkippedBatches)
		if marshalErr != nil {
			return fmt.Errorf("failed to encode skipped batches: %w", marshalErr)
		}
		if _, err = stmt.ExecContext(ctx,
			run.ID, int(e.Label), e.TotalRecords, e.BatchesRequested, e.BatchesSkipped,
			string(skipped), e.RowsFetched,
		); err != nil {
			return fmt.Errorf("failed to save %s extraction for run %s: %w", e.Label, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a single training run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.TrainingRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadExtractions(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRecentRuns returns up to limit runs, newest first.
func (s *SQLiteStorage) GetRecentRuns(ctx context.Context, limit int) ([]model.TrainingRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []model.TrainingRun
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	for i := range runs {
		if err := s.loadExtractions(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

const selectRuns = `
	SELECT id, status, started_at, finished_at,
		COALESCE(model_path, ''), COALESCE(transform_path, ''),
		COALESCE(schema_hash, ''), COALESCE(error, ''),
		train_rows, test_rows, feature_count,
		accuracy, precision_score, recall, f1,
		true_positives, true_negatives, false_positives, false_negatives
	FROM training_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.TrainingRun, error) {
	var (
		run        model.TrainingRun
		finishedAt sql.NullTime
		startedAt  time.Time
	)
	m := &run.Metrics
	err := row.Scan(
		&run.ID, &run.Status, &startedAt, &finishedAt,
		&run.ModelPath, &run.TransformPath, &run.SchemaHash, &run.Error,
		&run.TrainRows, &run.TestRows, &run.FeatureCount,
		&m.Accuracy, &m.Precision, &m.Recall, &m.F1,
		&m.TruePositives, &m.TrueNegatives, &m.FalsePositives, &m.FalseNegatives,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = startedAt
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

func (s *SQLiteStorage) loadExtractions(ctx context.Context, run *model.TrainingRun) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, total_records, batches_requested, batches_skipped,
			COALESCE(skipped_batches, 'null'), rows_fetched
		FROM run_extractions
		WHERE run_id = ?
		ORDER BY label DESC`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to query extractions for run %s: %w", run.ID, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			e       model.ExtractionSummary
			label   int
			skipped string
		)
		if err := rows.Scan(&label, &e.TotalRecords, &e.BatchesRequested, &e.BatchesSkipped,
			&skipped, &e.RowsFetched); err != nil {
			return fmt.Errorf("failed to scan extraction: %w", err)
		}
		e.Label = model.Label(label)
		if err := json.Unmarshal([]byte(skipped), &e.SkippedBatches); err != nil {
			return fmt.Errorf("failed to decode skipped batches: %w", err)
		}
		run.Extractions = append(run.Extractions, e)
	}
	return rows.Err()
}
