// Package dataset turns extracted warehouse tables into a labelled feature set.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/idguard/internal/features"
	"github.com/Veraticus/idguard/internal/fingerprint"
	"github.com/Veraticus/idguard/internal/model"
)

// Assembly errors.
var (
	ErrInvalidDate = errors.New("invalid date")
	ErrNoRows      = errors.New("no rows to assemble")
)

// Row is one assembled record with its label and identifier fingerprint.
type Row struct {
	Record      model.Record
	Fingerprint fingerprint.Features
	Label       model.Label
}

// Dataset is the assembled training set.
type Dataset struct {
	Rows []Row
}

// Assembler converts tables of the given schema into datasets.
type Assembler struct {
	schema model.Schema
	idx    map[string]int
	strict bool
}

// NewAssembler creates an assembler. It fails if the schema lacks any required column.
// With strict set, identifiers containing non-digit characters are rejected.
func NewAssembler(schema model.Schema, strict bool) (*Assembler, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := schema.Require(model.CustomerSchema.Columns...); err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(schema.Columns))
	for i, c := range schema.Columns {
		idx[c] = i
	}
	return &Assembler{schema: schema, idx: idx, strict: strict}, nil
}

// Assemble labels invalid rows 0 and valid rows 1 and concatenates them, invalid first.
func (a *Assembler) Assemble(valid, invalid *model.Table) (*Dataset, error) {
	ds := &Dataset{Rows: make([]Row, 0, valid.Len()+invalid.Len())}
	for _, part := range []struct {
		table *model.Table
		label model.Label
	}{
		{invalid, model.LabelInvalid},
		{valid, model.LabelValid},
	} {
		rows, err := a.rows(part.table, part.label)
		if err != nil {
			return nil, fmt.Errorf("%s rows: %w", part.label, err)
		}
		ds.Rows = append(ds.Rows, rows...)
	}
	if len(ds.Rows) == 0 {
		return nil, ErrNoRows
	}
	return ds, nil
}

// AssembleUnlabeled builds rows for scoring. Labels are left at zero and must not be used.
func (a *Assembler) AssembleUnlabeled(t *model.Table) (*Dataset, error) {
	rows, err := a.rows(t, model.LabelInvalid)
	if err != nil {
		return nil, err
	}
	return &Dataset{Rows: rows}, nil
}

func (a *Assembler) rows(t *model.Table, label model.Label) ([]Row, error) {
	if t == nil {
		return nil, nil
	}
	if err := a.schema.Matches(t.Columns); err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(t.Rows))
	for i, raw := range t.Rows {
		rec, err := a.record(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if rec.CustomerID == "" {
			return nil, fmt.Errorf("row %d: %w", i, fingerprint.ErrEmptyIdentifier)
		}
		if a.strict {
			if err := fingerprint.Validate(rec.CustomerID); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
		}
		out = append(out, Row{
			Record:      rec,
			Label:       label,
			Fingerprint: fingerprint.Compute(rec.CustomerID),
		})
	}
	return out, nil
}

func (a *Assembler) record(raw []any) (model.Record, error) {
	get := func(col string) any { return raw[a.idx[col]] }

	var rec model.Record
	var err error

	rec.BusinessUnit = toString(get(model.ColBusinessUnit))
	rec.Zone = toString(get(model.ColZone))
	rec.Region = toString(get(model.ColRegion))
	rec.CustomerID = strings.TrimSpace(toString(get(model.ColCustomerID)))
	rec.CompositeKey = toString(get(model.ColCompositeKey))

	if rec.MinDate, err = toDate(get(model.ColMinDate)); err != nil {
		return rec, fmt.Errorf("%s: %w", model.ColMinDate, err)
	}
	if rec.MaxDate, err = toDate(get(model.ColMaxDate)); err != nil {
		return rec, fmt.Errorf("%s: %w", model.ColMaxDate, err)
	}
	rec.TransactionCount = toNumeric(get(model.ColTransactionCount))
	rec.DatesCount = toNumeric(get(model.ColDatesCount))
	rec.Money = toNumeric(get(model.ColMoney))
	rec.Volume = toNumeric(get(model.ColVolume))
	rec.Qty = toNumeric(get(model.ColQty))

	return rec, nil
}

// Features returns X: every column except the identifier, composite key and label.
func (d *Dataset) Features() *features.Frame {
	n := len(d.Rows)
	cats := map[string][]string{
		model.ColBusinessUnit: make([]string, n),
		model.ColZone:         make([]string, n),
		model.ColRegion:       make([]string, n),
		model.ColMinDate:      make([]string, n),
		model.ColMaxDate:      make([]string, n),
	}
	nums := map[string][]float64{
		model.ColTransactionCount: make([]float64, n),
		model.ColMoney:            make([]float64, n),
		model.ColDatesCount:       make([]float64, n),
		model.ColVolume:           make([]float64, n),
		model.ColQty:              make([]float64, n),
	}
	fps := make([][]float64, len(model.FingerprintColumns))
	for j := range fps {
		fps[j] = make([]float64, n)
	}

	for i, r := range d.Rows {
		rec := r.Record
		cats[model.ColBusinessUnit][i] = rec.BusinessUnit
		cats[model.ColZone][i] = rec.Zone
		cats[model.ColRegion][i] = rec.Region
		cats[model.ColMinDate][i] = rec.MinDate.Format(model.DateLayout)
		cats[model.ColMaxDate][i] = rec.MaxDate.Format(model.DateLayout)
		nums[model.ColTransactionCount][i] = rec.TransactionCount
		nums[model.ColMoney][i] = rec.Money
		nums[model.ColDatesCount][i] = rec.DatesCount
		nums[model.ColVolume][i] = rec.Volume
		nums[model.ColQty][i] = rec.Qty
		for j, v := range r.Fingerprint.Vector() {
			fps[j][i] = v
		}
	}

	var cols []features.Column
	for _, name := range model.CustomerSchema.Columns {
		switch {
		case name == model.ColCustomerID || name == model.ColCompositeKey:
			continue
		case cats[name] != nil:
			cols = append(cols, features.Column{Name: name, Kind: features.Categorical, Strings: cats[name]})
		default:
			cols = append(cols, features.Column{Name: name, Kind: features.Numeric, Floats: nums[name]})
		}
	}
	for j, name := range model.FingerprintColumns {
		cols = append(cols, features.Column{Name: name, Kind: features.Numeric, Floats: fps[j]})
	}

	// Names are unique and lengths equal by construction.
	frame, _ := features.NewFrame(cols...)
	return frame
}

// Labels returns y as 0/1 values in row order.
func (d *Dataset) Labels() []int {
	y := make([]int, len(d.Rows))
	for i, r := range d.Rows {
		y[i] = int(r.Label)
	}
	return y
}

// Identifiers returns the customer identifiers in row order.
func (d *Dataset) Identifiers() []string {
	ids := make([]string, len(d.Rows))
	for i, r := range d.Rows {
		ids[i] = r.Record.CustomerID
	}
	return ids
}

// ClassCounts returns the number of rows per label.
func (d *Dataset) ClassCounts() map[model.Label]int {
	counts := make(map[model.Label]int, 2)
	for _, r := range d.Rows {
		counts[r.Label]++
	}
	return counts
}

// Subset returns a dataset holding the rows at idx, in that order.
func (d *Dataset) Subset(idx []int) *Dataset {
	rows := make([]Row, len(idx))
	for k, i := range idx {
		rows[k] = d.Rows[i]
	}
	return &Dataset{Rows: rows}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format(model.DateLayout)
	default:
		return fmt.Sprint(s)
	}
}

// toNumeric parses leniently: anything unparsable or non-finite becomes NaN.
func toNumeric(v any) float64 {
	f := parseNumeric(v)
	if math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

func parseNumeric(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int:
		return float64(n)
	case string, []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(toString(n)), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func toDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
	case string, []byte:
		t, err := time.Parse(model.DateLayout, strings.TrimSpace(toString(d)))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidDate, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %v (%T)", ErrInvalidDate, v, v)
	}
}
