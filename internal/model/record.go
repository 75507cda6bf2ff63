package model

import "time"

// Record is a typed customer transaction row.
// Numeric fields use NaN for missing values.
type Record struct {
	MinDate          time.Time
	MaxDate          time.Time
	BusinessUnit     string
	Zone             string
	Region           string
	CustomerID       string
	CompositeKey     string
	TransactionCount float64
	Money            float64
	DatesCount       float64
	Volume           float64
	Qty              float64
}

// Label is the binary class of a record.
type Label int

// Record classes.
const (
	LabelInvalid Label = 0
	LabelValid   Label = 1
)

func (l Label) String() string {
	if l == LabelValid {
		return "valid"
	}
	return "invalid"
}
