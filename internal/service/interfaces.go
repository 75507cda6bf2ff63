// Package service defines the contracts between the pipeline and its collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/idguard/internal/model"
)

// Querier runs a SQL statement against the warehouse and returns its rows.
type Querier interface {
	ExecuteQuery(ctx context.Context, query string) ([][]any, error)
}

// Session is an open warehouse connection. Close must be safe to call more than once.
type Session interface {
	Querier
	Close() error
}

// TemplateReader loads a parameterized query definition by name.
// Templates use {start} and {end} as substitution markers.
type TemplateReader interface {
	ReadTemplate(name string) (string, error)
}

// BlobStore persists values as opaque blobs, one file per value.
type BlobStore interface {
	Persist(path string, v any) error
	Load(path string, v any) error
}

// BulkLoader copies a table into the warehouse, replacing any existing table.
// The pipeline does not implement it; it exists so upstream loaders share the schema type.
type BulkLoader interface {
	InsertTable(ctx context.Context, schema, table, primaryIndex string, t *model.Table) error
}

// RunStore defines the contract for training run history.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.TrainingRun) error
	GetRun(ctx context.Context, id string) (*model.TrainingRun, error)
	GetRecentRuns(ctx context.Context, limit int) ([]model.TrainingRun, error)
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
