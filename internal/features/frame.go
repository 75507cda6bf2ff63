package features

import (
	"errors"
	"fmt"
)

// Frame errors.
var (
	ErrMissingColumn   = errors.New("missing column")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrLengthMismatch  = errors.New("column length mismatch")
)

// Kind is the type of values a column holds.
type Kind int

// Column kinds.
const (
	Numeric Kind = iota
	Categorical
)

// Column is a named column of either numeric or categorical values.
type Column struct {
	Name    string
	Floats  []float64
	Strings []string
	Kind    Kind
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Strings)
	}
	return len(c.Floats)
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	columns []Column
	index   map[string]int
	rows    int
}

// NewFrame creates a frame, checking names are unique and lengths agree.
func NewFrame(columns ...Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if err := f.Add(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Add appends a column.
func (f *Frame) Add(c Column) error {
	if _, ok := f.index[c.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
	}
	if len(f.columns) > 0 && c.Len() != f.rows {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrLengthMismatch, c.Name, c.Len(), f.rows)
	}
	f.rows = c.Len()
	f.index[c.Name] = len(f.columns)
	f.columns = append(f.columns, c)
	return nil
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	return f.rows
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order.
func (f *Frame) Columns() []Column {
	return f.columns
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, error) {
	i, ok := f.index[name]
	if !ok {
		return Column{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return f.columns[i], nil
}
