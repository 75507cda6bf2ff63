package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/Veraticus/idguard/internal/features"
	"github.com/Veraticus/idguard/internal/fingerprint"
	"github.com/Veraticus/idguard/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(id string, money any, minDate any) []any {
	return []any{"BU1", "north", "R1", id, "K-" + id, minDate, "2024-03-31", int64(12), money, int64(4), "10.5", "3"}
}

func table(rows ...[]any) *model.Table {
	t := model.NewTable(model.CustomerSchema)
	t.Rows = rows
	return t
}

func newAssembler(t *testing.T, strict bool) *Assembler {
	t.Helper()
	a, err := NewAssembler(model.CustomerSchema, strict)
	require.NoError(t, err)
	return a
}

func TestAssembler_Assemble(t *testing.T) {
	a := newAssembler(t, false)
	valid := table(row("80012345", "100.25", "2024-01-02"), row("80099871", 42.0, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	invalid := table(row("1111", "n/a", "2024-01-05"))

	ds, err := a.Assemble(valid, invalid)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)

	assert.Equal(t, []int{0, 1, 1}, ds.Labels())
	assert.Equal(t, []string{"1111", "80012345", "80099871"}, ds.Identifiers())
	assert.Equal(t, map[model.Label]int{model.LabelInvalid: 1, model.LabelValid: 2}, ds.ClassCounts())

	assert.True(t, math.IsNaN(ds.Rows[0].Record.Money), "unparsable money becomes NaN")
	assert.InDelta(t, 100.25, ds.Rows[1].Record.Money, 1e-9)
	assert.InDelta(t, 10.5, ds.Rows[1].Record.Volume, 1e-9)
	assert.Equal(t, fingerprint.Compute("1111"), ds.Rows[0].Fingerprint)
	assert.Equal(t, "2024-02-01", ds.Rows[2].Record.MinDate.Format(model.DateLayout))
}

func TestAssembler_Features(t *testing.T) {
	a := newAssembler(t, false)
	ds, err := a.Assemble(table(row("1357", "1", "2024-01-02")), table(row("2468", "2", "2024-01-03")))
	require.NoError(t, err)

	x := ds.Features()
	assert.Equal(t, 2, x.Rows())
	assert.Equal(t, []string{
		model.ColBusinessUnit, model.ColZone, model.ColRegion,
		model.ColMinDate, model.ColMaxDate,
		model.ColTransactionCount, model.ColMoney, model.ColDatesCount, model.ColVolume, model.ColQty,
		model.ColIDLength, model.ColIDHasRepeatedDigits, model.ColIDIsAscending,
		model.ColIDIsDescending, model.ColIDHasRepetitivePattern,
	}, x.Names())

	_, err = x.Column(model.ColCustomerID)
	assert.ErrorIs(t, err, features.ErrMissingColumn)
	_, err = x.Column(model.ColCompositeKey)
	assert.ErrorIs(t, err, features.ErrMissingColumn)

	minDate, err := x.Column(model.ColMinDate)
	require.NoError(t, err)
	assert.Equal(t, features.Categorical, minDate.Kind)
	assert.Equal(t, []string{"2024-01-03", "2024-01-02"}, minDate.Strings)

	asc, err := x.Column(model.ColIDIsAscending)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, asc.Floats)
}

func TestAssembler_Errors(t *testing.T) {
	tests := []struct {
		wantErr error
		valid   *model.Table
		name    string
		strict  bool
	}{
		{
			name:    "unparsable date is fatal",
			valid:   table(row("1234", "1", "02/01/2024")),
			wantErr: ErrInvalidDate,
		},
		{
			name:    "missing date is fatal",
			valid:   table(row("1234", "1", nil)),
			wantErr: ErrInvalidDate,
		},
		{
			name:    "empty identifier",
			valid:   table(row("  ", "1", "2024-01-02")),
			wantErr: fingerprint.ErrEmptyIdentifier,
		},
		{
			name:    "strict mode rejects non-digit identifiers",
			valid:   table(row("12a4", "1", "2024-01-02")),
			strict:  true,
			wantErr: fingerprint.ErrNonDigit,
		},
		{
			name:    "column mismatch",
			valid:   &model.Table{Columns: []string{"customer_id"}, Rows: [][]any{{"1"}}},
			wantErr: model.ErrSchemaMismatch,
		},
		{
			name:    "nothing to assemble",
			valid:   table(),
			wantErr: ErrNoRows,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAssembler(t, tt.strict).Assemble(tt.valid, table())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAssembler_LenientNumerics(t *testing.T) {
	tests := []struct {
		check func(t *testing.T, rec model.Record)
		mut   func(r []any)
		name  string
	}{
		{
			name: "null transaction count",
			mut:  func(r []any) { r[7] = nil },
			check: func(t *testing.T, rec model.Record) {
				assert.True(t, math.IsNaN(rec.TransactionCount))
			},
		},
		{
			name: "unparsable dates count",
			mut:  func(r []any) { r[9] = "unknown" },
			check: func(t *testing.T, rec model.Record) {
				assert.True(t, math.IsNaN(rec.DatesCount))
			},
		},
		{
			name: "infinite money text",
			mut:  func(r []any) { r[8] = "inf" },
			check: func(t *testing.T, rec model.Record) {
				assert.True(t, math.IsNaN(rec.Money))
			},
		},
		{
			name: "negative infinity volume",
			mut:  func(r []any) { r[10] = "-Infinity" },
			check: func(t *testing.T, rec model.Record) {
				assert.True(t, math.IsNaN(rec.Volume))
			},
		},
		{
			name: "infinite float from driver",
			mut:  func(r []any) { r[11] = math.Inf(1) },
			check: func(t *testing.T, rec model.Record) {
				assert.True(t, math.IsNaN(rec.Qty))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := row("80012345", "12.5", "2024-01-02")
			tt.mut(r)

			ds, err := newAssembler(t, false).AssembleUnlabeled(table(r))
			require.NoError(t, err)
			require.Len(t, ds.Rows, 1)
			tt.check(t, ds.Rows[0].Record)
		})
	}
}

func TestAssembler_NonFiniteValuesFitCleanly(t *testing.T) {
	a := newAssembler(t, false)
	ds, err := a.Assemble(
		table(row("80012345", "inf", "2024-01-02"), row("80099871", "20", "2024-01-03")),
		table(row("1111", "10", "2024-01-04")),
	)
	require.NoError(t, err)

	ft, _, err := features.FitTransform(features.CustomerSpec(), ds.Features())
	require.NoError(t, err)
	for _, sc := range ft.Scalers {
		assert.False(t, math.IsInf(sc.Mean, 0), sc.Column)
		assert.False(t, math.IsNaN(sc.Mean), sc.Column)
	}
}

func TestAssembler_NonDigitIdentifierDefaultPolicy(t *testing.T) {
	ds, err := newAssembler(t, false).Assemble(table(row("12a4", "1", "2024-01-02")), nil)
	require.NoError(t, err)

	fp := ds.Rows[0].Fingerprint
	assert.False(t, fp.IsAscending)
	assert.False(t, fp.IsDescending)
}

func TestNewAssembler_MissingColumns(t *testing.T) {
	_, err := NewAssembler(model.Schema{Name: "partial", Columns: []string{model.ColCustomerID}}, false)
	assert.ErrorIs(t, err, model.ErrSchemaMismatch)
}

func TestAssembler_AssembleUnlabeled(t *testing.T) {
	ds, err := newAssembler(t, false).AssembleUnlabeled(table(row("5555", "1", "2024-01-02")))
	require.NoError(t, err)
	assert.Equal(t, []string{"5555"}, ds.Identifiers())
	assert.Equal(t, 1, ds.Features().Rows())
}

func TestDataset_Subset(t *testing.T) {
	a := newAssembler(t, false)
	ds, err := a.Assemble(table(row("80012345", "1", "2024-01-02"), row("80099871", "2", "2024-01-02")), table(row("1111", "3", "2024-01-02")))
	require.NoError(t, err)

	sub := ds.Subset([]int{2, 0})
	assert.Equal(t, []string{"80099871", "1111"}, sub.Identifiers())
	assert.Equal(t, []int{1, 0}, sub.Labels())
	assert.Len(t, ds.Rows, 3)
}
