package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{name: "customer schema", schema: CustomerSchema},
		{name: "empty", schema: Schema{Name: "empty"}, wantErr: true},
		{name: "duplicate", schema: Schema{Name: "dup", Columns: []string{"a", "b", "a"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSchemaMismatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSchema_RequireAndMatches(t *testing.T) {
	s := Schema{Name: "s", Columns: []string{ColCustomerID, ColMoney}}

	assert.NoError(t, s.Require(ColMoney))
	assert.ErrorIs(t, s.Require(ColQty), ErrSchemaMismatch)
	assert.NoError(t, s.Matches([]string{ColCustomerID, ColMoney}))
	assert.ErrorIs(t, s.Matches([]string{ColMoney, ColCustomerID}), ErrSchemaMismatch)
	assert.Equal(t, 1, s.Index(ColMoney))
	assert.Equal(t, -1, s.Index(ColZone))
}

func TestTable_Append(t *testing.T) {
	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())

	tbl := NewTable(Schema{Name: "s", Columns: []string{"a", "b"}})
	require.NoError(t, tbl.Append([][]any{{1, 2}, {3, 4}}))
	assert.Equal(t, 2, tbl.Len())

	err := tbl.Append([][]any{{5, 6}, {7}})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Equal(t, 2, tbl.Len(), "a bad batch leaves the table unchanged")
}

func TestExtractionSummary_Complete(t *testing.T) {
	assert.True(t, ExtractionSummary{BatchesRequested: 3}.Complete())
	assert.False(t, ExtractionSummary{BatchesRequested: 3, BatchesSkipped: 1}.Complete())
	assert.Equal(t, "valid", LabelValid.String())
	assert.Equal(t, "invalid", LabelInvalid.String())
}
