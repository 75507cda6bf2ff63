package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/Veraticus/idguard/internal/cli"
	"github.com/Veraticus/idguard/internal/common"
	"github.com/Veraticus/idguard/internal/config"
	"github.com/Veraticus/idguard/internal/engine"
	"github.com/Veraticus/idguard/internal/extract"
	"github.com/Veraticus/idguard/internal/model"
	"github.com/Veraticus/idguard/internal/service"
	"github.com/Veraticus/idguard/internal/storage"
	"github.com/Veraticus/idguard/internal/warehouse"
)

// loadConfig reads and validates the full pipeline configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("configuration is incomplete; see config.example.yaml", err)
	}
	return cfg, nil
}

// initStorage opens and migrates the run history database.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func sessionOpener(cfg config.Warehouse) engine.SessionOpener {
	return func(ctx context.Context) (service.Session, error) {
		s, err := warehouse.Open(ctx, cfg, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func progressBars(w io.Writer) engine.ProgressFunc {
	return func(label model.Label) func(extract.BatchOutcome) {
		return cli.NewBatchProgress(w, label.String()).Observe
	}
}
