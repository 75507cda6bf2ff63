// Package testutil provides shared fixtures for run history and warehouse tests.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/idguard/internal/model"
	"github.com/Veraticus/idguard/internal/service"
	"github.com/Veraticus/idguard/internal/storage"
)

// TestDB is a migrated in-memory run history database.
type TestDB struct {
	Storage service.RunStore
	t       *testing.T
}

// SetupTestDB creates a new in-memory run store seeded with runs.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T, runs ...model.TrainingRun) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for i := range runs {
		if err := store.SaveRun(ctx, &runs[i]); err != nil {
			t.Fatalf("failed to seed run %q: %v", runs[i].ID, err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// MustGetRun fetches a run or fails the test.
func (db *TestDB) MustGetRun(id string) *model.TrainingRun {
	db.t.Helper()
	run, err := db.Storage.GetRun(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to get run %q: %v", id, err)
	}
	return run
}
