// Package fingerprint derives shape features from customer identifiers.
//
// The digit-sequence checks only consider identifiers made of decimal digits.
// Any non-digit character breaks monotonicity: such an identifier is neither
// ascending nor descending. Callers that want to reject those identifiers
// instead should call Validate first.
package fingerprint

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyIdentifier is returned for blank identifiers.
	ErrEmptyIdentifier = errors.New("empty identifier")
	// ErrNonDigit is returned by Validate for identifiers with non-digit characters.
	ErrNonDigit = errors.New("identifier contains non-digit characters")
)

// Features is the fixed set of signals computed from one identifier.
type Features struct {
	Length               int
	HasRepeatedDigit     bool
	IsAscending          bool
	IsDescending         bool
	HasRepetitivePattern bool
}

// Compute returns the fingerprint of id.
func Compute(id string) Features {
	runes := []rune(id)
	return Features{
		Length:               len(runes),
		HasRepeatedDigit:     hasRepeated(runes),
		IsAscending:          monotonic(runes, func(a, b rune) bool { return a < b }),
		IsDescending:         monotonic(runes, func(a, b rune) bool { return a > b }),
		HasRepetitivePattern: repetitive(runes),
	}
}

// Validate checks that id is non-empty and made only of decimal digits.
func Validate(id string) error {
	if id == "" {
		return ErrEmptyIdentifier
	}
	for i, r := range id {
		if !isDigit(r) {
			return fmt.Errorf("%w: %q at offset %d", ErrNonDigit, r, i)
		}
	}
	return nil
}

// Vector returns the features as floats, in the order of model.FingerprintColumns.
func (f Features) Vector() []float64 {
	return []float64{
		float64(f.Length),
		boolFloat(f.HasRepeatedDigit),
		boolFloat(f.IsAscending),
		boolFloat(f.IsDescending),
		boolFloat(f.HasRepetitivePattern),
	}
}

func hasRepeated(runes []rune) bool {
	seen := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		seen[r] = struct{}{}
	}
	return len(seen) < len(runes)
}

func monotonic(runes []rune, less func(a, b rune) bool) bool {
	for _, r := range runes {
		if !isDigit(r) {
			return false
		}
	}
	for i := 1; i < len(runes); i++ {
		if !less(runes[i-1], runes[i]) {
			return false
		}
	}
	return true
}

// repetitive reports whether id equals its first two characters repeated len/2 times.
// Odd lengths never match.
func repetitive(runes []rune) bool {
	block := string(runes[:min(2, len(runes))])
	return strings.Repeat(block, len(runes)/2) == string(runes)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
