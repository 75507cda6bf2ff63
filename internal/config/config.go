// Package config loads typed application settings from viper.
package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/idguard/internal/common"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Warehouse  Warehouse
	Extraction Extraction
	Training   Training
	Artifacts  Artifacts
	Database   Database
}

// Warehouse holds connection settings for the source warehouse.
type Warehouse struct {
	Driver      string
	DSN         string
	Host        string
	Name        string
	User        string
	Password    string
	SSLMode     string
	SourceTable string
	CountQuery  string
	ConnTimeout time.Duration
	Port        int
}

// Extraction holds batch extraction settings.
type Extraction struct {
	TemplatesDir string
	ValidQuery   string
	InvalidQuery string
	ScoreQuery   string
	BatchTimeout time.Duration
	RetryDelay   time.Duration
	BatchSize    int
	MaxAttempts  int
	StrictIDs    bool
	RequireAll   bool
}

// Training holds model training settings.
type Training struct {
	Seed      int64
	TestSize  float64
	Trees     int
	MaxDepth  int
	Neighbors int
}

// Artifacts holds output paths for the fitted transform and model.
type Artifacts struct {
	ModelPath     string
	TransformPath string
}

// Database holds the run history database location.
type Database struct {
	Path string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("warehouse.driver", "pgx")
	v.SetDefault("warehouse.host", "localhost")
	v.SetDefault("warehouse.port", 5432)
	v.SetDefault("warehouse.ssl_mode", "disable")
	v.SetDefault("warehouse.source_table", "info_per_customer")
	v.SetDefault("warehouse.conn_timeout", "10s")

	v.SetDefault("extraction.templates_dir", "sql/queries")
	v.SetDefault("extraction.valid_query", "valid_query.sql")
	v.SetDefault("extraction.invalid_query", "invalid_query.sql")
	v.SetDefault("extraction.score_query", "score_query.sql")
	v.SetDefault("extraction.batch_size", 10000)
	v.SetDefault("extraction.batch_timeout", "5m")
	v.SetDefault("extraction.max_attempts", 3)
	v.SetDefault("extraction.retry_delay", "2s")

	v.SetDefault("training.seed", 42)
	v.SetDefault("training.test_size", 0.3)
	v.SetDefault("training.trees", 100)
	v.SetDefault("training.max_depth", 6)
	v.SetDefault("training.neighbors", 5)

	v.SetDefault("artifacts.model_path", "models/random_forest_model.json")
	v.SetDefault("artifacts.transform_path", "models/preprocessor.json")

	v.SetDefault("database.path", "$HOME/.local/share/idguard/runs.db")
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Warehouse: Warehouse{
			Driver:      v.GetString("warehouse.driver"),
			DSN:         v.GetString("warehouse.dsn"),
			Host:        v.GetString("warehouse.host"),
			Port:        v.GetInt("warehouse.port"),
			Name:        v.GetString("warehouse.name"),
			User:        v.GetString("warehouse.user"),
			Password:    v.GetString("warehouse.password"),
			SSLMode:     v.GetString("warehouse.ssl_mode"),
			SourceTable: v.GetString("warehouse.source_table"),
			CountQuery:  v.GetString("warehouse.count_query"),
			ConnTimeout: v.GetDuration("warehouse.conn_timeout"),
		},
		Extraction: Extraction{
			TemplatesDir: ExpandPath(v.GetString("extraction.templates_dir")),
			ValidQuery:   v.GetString("extraction.valid_query"),
			InvalidQuery: v.GetString("extraction.invalid_query"),
			ScoreQuery:   v.GetString("extraction.score_query"),
			BatchSize:    v.GetInt("extraction.batch_size"),
			BatchTimeout: v.GetDuration("extraction.batch_timeout"),
			MaxAttempts:  v.GetInt("extraction.max_attempts"),
			RetryDelay:   v.GetDuration("extraction.retry_delay"),
			StrictIDs:    v.GetBool("extraction.strict_ids"),
			RequireAll:   v.GetBool("extraction.require_complete"),
		},
		Training: Training{
			Seed:      v.GetInt64("training.seed"),
			TestSize:  v.GetFloat64("training.test_size"),
			Trees:     v.GetInt("training.trees"),
			MaxDepth:  v.GetInt("training.max_depth"),
			Neighbors: v.GetInt("training.neighbors"),
		},
		Artifacts: Artifacts{
			ModelPath:     ExpandPath(v.GetString("artifacts.model_path")),
			TransformPath: ExpandPath(v.GetString("artifacts.transform_path")),
		},
		Database: Database{
			Path: ExpandPath(v.GetString("database.path")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Warehouse.Driver {
	case "pgx", "sqlite3":
	default:
		return fmt.Errorf("%w: unsupported warehouse driver %q", common.ErrInvalidConfig, c.Warehouse.Driver)
	}
	if c.Warehouse.DSN == "" && c.Warehouse.Name == "" {
		return fmt.Errorf("%w: warehouse.dsn or warehouse.name", common.ErrMissingConfig)
	}
	if c.Warehouse.SourceTable == "" && c.Warehouse.CountQuery == "" {
		return fmt.Errorf("%w: warehouse.source_table or warehouse.count_query", common.ErrMissingConfig)
	}
	if c.Extraction.BatchSize <= 0 {
		return fmt.Errorf("%w: extraction.batch_size must be positive, got %d", common.ErrInvalidConfig, c.Extraction.BatchSize)
	}
	if c.Extraction.BatchTimeout <= 0 {
		return fmt.Errorf("%w: extraction.batch_timeout must be positive", common.ErrInvalidConfig)
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return fmt.Errorf("%w: training.test_size must be in (0, 1), got %v", common.ErrInvalidConfig, c.Training.TestSize)
	}
	if c.Training.Trees <= 0 || c.Training.MaxDepth <= 0 {
		return fmt.Errorf("%w: training.trees and training.max_depth must be positive", common.ErrInvalidConfig)
	}
	if c.Artifacts.ModelPath == "" || c.Artifacts.TransformPath == "" {
		return fmt.Errorf("%w: artifacts.model_path and artifacts.transform_path", common.ErrMissingConfig)
	}
	return nil
}

// DataSourceName returns the driver DSN for the warehouse.
// An explicit DSN wins over the individual fields.
func (w Warehouse) DataSourceName() string {
	if w.DSN != "" {
		return w.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		w.Host, w.Port, w.Name, w.User, w.Password, w.SSLMode,
	)
}

// CountStatement returns the query used to size a batched extraction.
func (w Warehouse) CountStatement() string {
	if w.CountQuery != "" {
		return w.CountQuery
	}
	return fmt.Sprintf("SELECT COUNT(*) AS total_records FROM %s WHERE customer_id IS NOT NULL", w.SourceTable)
}
