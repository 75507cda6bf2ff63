// Package model defines the core data types shared by extraction, assembly and training.
package model

import (
	"errors"
	"fmt"
	"slices"
)

// Column names of the customer transaction schema.
const (
	ColBusinessUnit     = "business_unit"
	ColZone             = "zone"
	ColRegion           = "region"
	ColCustomerID       = "customer_id"
	ColCompositeKey     = "composite_key"
	ColMinDate          = "min_date"
	ColMaxDate          = "max_date"
	ColTransactionCount = "transaction_count"
	ColMoney            = "money"
	ColDatesCount       = "dates_count"
	ColVolume           = "volume"
	ColQty              = "qty"
)

// Derived column names added during assembly.
const (
	ColCategory               = "category"
	ColIDLength               = "id_length"
	ColIDHasRepeatedDigits    = "id_has_repeated_digits"
	ColIDIsAscending          = "id_is_ascending"
	ColIDIsDescending         = "id_is_descending"
	ColIDHasRepetitivePattern = "id_has_repetitive_pattern"
)

// DateLayout is the fixed layout for date columns coming from the warehouse.
const DateLayout = "2006-01-02"

// ErrSchemaMismatch is returned when a table's columns do not match a schema.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Schema is an ordered list of column names.
type Schema struct {
	Name    string
	Columns []string
}

// CustomerSchema is the column layout every extraction query must return.
var CustomerSchema = Schema{
	Name: "customer_transactions",
	Columns: []string{
		ColBusinessUnit,
		ColZone,
		ColRegion,
		ColCustomerID,
		ColCompositeKey,
		ColMinDate,
		ColMaxDate,
		ColTransactionCount,
		ColMoney,
		ColDatesCount,
		ColVolume,
		ColQty,
	},
}

// FingerprintColumns lists the identifier features in their fixed order.
var FingerprintColumns = []string{
	ColIDLength,
	ColIDHasRepeatedDigits,
	ColIDIsAscending,
	ColIDIsDescending,
	ColIDHasRepetitivePattern,
}

// Index returns the position of a column, or -1.
func (s Schema) Index(column string) int {
	return slices.Index(s.Columns, column)
}

// Validate checks that the schema has columns and no duplicates.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: schema %q has no columns", ErrSchemaMismatch, s.Name)
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if _, ok := seen[c]; ok {
			return fmt.Errorf("%w: duplicate column %q in schema %q", ErrSchemaMismatch, c, s.Name)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// Require checks that every named column is present.
func (s Schema) Require(columns ...string) error {
	for _, c := range columns {
		if s.Index(c) < 0 {
			return fmt.Errorf("%w: schema %q is missing column %q", ErrSchemaMismatch, s.Name, c)
		}
	}
	return nil
}

// Matches reports whether the given columns equal the schema, in order.
func (s Schema) Matches(columns []string) error {
	if !slices.Equal(s.Columns, columns) {
		return fmt.Errorf("%w: expected %v, got %v", ErrSchemaMismatch, s.Columns, columns)
	}
	return nil
}
