package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/idguard/internal/config"
	"github.com/Veraticus/idguard/internal/model"
	"github.com/Veraticus/idguard/internal/testutil/customers"
	"github.com/Veraticus/idguard/internal/warehouse"
)

// Template names written by SetupWarehouse.
const (
	ValidTemplate   = "valid_customers.sql"
	InvalidTemplate = "invalid_customers.sql"
	ScoreTemplate   = "score_customers.sql"
)

// SourceTable is the fixture table name.
const SourceTable = "info_per_customer"

// Warehouse is a SQLite stand-in for the customer warehouse.
type Warehouse struct {
	Session   *warehouse.Session
	Templates warehouse.FileTemplates
	DSN       string
	Customers []customers.Customer
}

// SetupWarehouse writes customers into a file-backed SQLite database and
// renders query templates against it. Rows are numbered in slice order so
// the count query and the {start}/{end} windows agree.
func SetupWarehouse(t *testing.T, rows []customers.Customer) *Warehouse {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "warehouse.db")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open warehouse: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := seed(db, rows); err != nil {
		_ = db.Close()
		t.Fatalf("failed to seed warehouse: %v", err)
	}

	tmplDir := filepath.Join(dir, "queries")
	if err := writeTemplates(tmplDir); err != nil {
		_ = db.Close()
		t.Fatalf("failed to write templates: %v", err)
	}

	session := warehouse.NewSession(db, nil)
	t.Cleanup(func() { _ = session.Close() })

	return &Warehouse{
		Session:   session,
		Templates: warehouse.FileTemplates{Dir: tmplDir},
		DSN:       dsn,
		Customers: rows,
	}
}

// Config returns settings that point the pipeline at this fixture.
func (w *Warehouse) Config(batchSize int) config.Config {
	return config.Config{
		Warehouse: config.Warehouse{
			Driver:      "sqlite3",
			DSN:         w.DSN,
			SourceTable: SourceTable,
		},
		Extraction: config.Extraction{
			TemplatesDir: w.Templates.Dir,
			ValidQuery:   ValidTemplate,
			InvalidQuery: InvalidTemplate,
			ScoreQuery:   ScoreTemplate,
			BatchSize:    batchSize,
			MaxAttempts:  1,
		},
	}
}

func seed(db *sql.DB, rows []customers.Customer) error {
	ctx := context.Background()
	cols := model.CustomerSchema.Columns
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		rn INTEGER PRIMARY KEY,
		is_valid INTEGER NOT NULL,
		business_unit TEXT, zone TEXT, region TEXT, customer_id TEXT, composite_key TEXT,
		min_date TEXT, max_date TEXT,
		transaction_count INTEGER, money REAL, dates_count INTEGER, volume REAL, qty REAL
	)`, SourceTable)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+2), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (rn, is_valid, %s) VALUES (%s)",
		SourceTable, strings.Join(cols, ", "), placeholders)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, c := range rows {
		args := append([]any{i + 1, int(c.Label)}, c.Values()...)
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func writeTemplates(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	cols := strings.Join(model.CustomerSchema.Columns, ", ")
	templates := map[string]string{
		ValidTemplate: fmt.Sprintf("SELECT %s FROM %s WHERE is_valid = 1 AND rn BETWEEN %s AND %s ORDER BY rn",
			cols, SourceTable, warehouse.StartMarker, warehouse.EndMarker),
		InvalidTemplate: fmt.Sprintf("SELECT %s FROM %s WHERE is_valid = 0 AND rn BETWEEN %s AND %s ORDER BY rn",
			cols, SourceTable, warehouse.StartMarker, warehouse.EndMarker),
		ScoreTemplate: fmt.Sprintf("SELECT %s FROM %s ORDER BY rn", cols, SourceTable),
	}
	for name, body := range templates {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body+"\n"), 0o600); err != nil {
			return err
		}
	}
	return nil
}
