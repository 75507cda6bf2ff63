package model

import "fmt"

// Table is a column-named set of raw rows as returned by the warehouse driver.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable creates an empty table for the given schema.
func NewTable(schema Schema) *Table {
	cols := make([]string, len(schema.Columns))
	copy(cols, schema.Columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds rows to the end of the table. Every row must have one value per column.
func (t *Table) Append(rows [][]any) error {
	for i, row := range rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrSchemaMismatch, i, len(row), len(t.Columns))
		}
	}
	t.Rows = append(t.Rows, rows...)
	return nil
}
