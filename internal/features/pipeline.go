// Package features implements the column transform applied ahead of the classifier:
// one-hot encoding for categorical columns, standard scaling for numeric
// columns and passthrough for everything else.
package features

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Pipeline errors.
var (
	ErrNotFitted           = errors.New("transform is not fitted")
	ErrUnlistedCategorical = errors.New("categorical column is not in the one-hot group")
	ErrWrongKind           = errors.New("column has the wrong kind")
)

// Spec names the column groups of a pipeline.
type Spec struct {
	Categorical []string
	Numeric     []string
}

// Encoder is a fitted one-hot encoder for one column.
type Encoder struct {
	Column     string   `json:"column"`
	Categories []string `json:"categories"`
}

// Scaler is a fitted standard scaler for one column.
type Scaler struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// FittedTransform holds every parameter learned at fit time.
// It must be reused as is for any data the model will score.
type FittedTransform struct {
	Encoders     []Encoder `json:"encoders"`
	Scalers      []Scaler  `json:"scalers"`
	Passthrough  []string  `json:"passthrough"`
	FeatureNames []string  `json:"feature_names"`
}

// Fit learns categories and scaling parameters from x.
// Columns not named in spec pass through and must be numeric.
func Fit(spec Spec, x *Frame) (*FittedTransform, error) {
	ft := &FittedTransform{}

	for _, name := range spec.Categorical {
		col, err := x.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Kind != Categorical {
			return nil, fmt.Errorf("%w: %s is not categorical", ErrWrongKind, name)
		}
		ft.Encoders = append(ft.Encoders, Encoder{Column: name, Categories: distinct(col.Strings)})
	}

	for _, name := range spec.Numeric {
		col, err := x.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Kind != Numeric {
			return nil, fmt.Errorf("%w: %s is not numeric", ErrWrongKind, name)
		}
		mean, scale := meanScale(col.Floats)
		ft.Scalers = append(ft.Scalers, Scaler{Column: name, Mean: mean, Scale: scale})
	}

	for _, col := range x.Columns() {
		if slices.Contains(spec.Categorical, col.Name) || slices.Contains(spec.Numeric, col.Name) {
			continue
		}
		if col.Kind != Numeric {
			return nil, fmt.Errorf("%w: %s", ErrUnlistedCategorical, col.Name)
		}
		ft.Passthrough = append(ft.Passthrough, col.Name)
	}

	ft.FeatureNames = ft.featureNames()
	return ft, nil
}

// FitTransform fits on x and returns the transformed matrix.
func FitTransform(spec Spec, x *Frame) (*FittedTransform, [][]float64, error) {
	ft, err := Fit(spec, x)
	if err != nil {
		return nil, nil, err
	}
	out, err := ft.Transform(x)
	if err != nil {
		return nil, nil, err
	}
	return ft, out, nil
}

// Transform applies the fitted parameters to x. Unseen categories encode as all zeros.
// Missing numeric values map to the fitted mean, which is zero after scaling.
func (ft *FittedTransform) Transform(x *Frame) ([][]float64, error) {
	if ft == nil || ft.FeatureNames == nil {
		return nil, ErrNotFitted
	}

	width := len(ft.FeatureNames)
	out := make([][]float64, x.Rows())
	for i := range out {
		out[i] = make([]float64, width)
	}

	offset := 0
	for _, enc := range ft.Encoders {
		col, err := x.Column(enc.Column)
		if err != nil {
			return nil, err
		}
		if col.Kind != Categorical {
			return nil, fmt.Errorf("%w: %s is not categorical", ErrWrongKind, enc.Column)
		}
		for i, v := range col.Strings {
			if j, ok := slices.BinarySearch(enc.Categories, v); ok {
				out[i][offset+j] = 1
			}
		}
		offset += len(enc.Categories)
	}

	for _, sc := range ft.Scalers {
		col, err := x.Column(sc.Column)
		if err != nil {
			return nil, err
		}
		if col.Kind != Numeric {
			return nil, fmt.Errorf("%w: %s is not numeric", ErrWrongKind, sc.Column)
		}
		for i, v := range col.Floats {
			if math.IsNaN(v) {
				continue
			}
			out[i][offset] = (v - sc.Mean) / sc.Scale
		}
		offset++
	}

	for _, name := range ft.Passthrough {
		col, err := x.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Kind != Numeric {
			return nil, fmt.Errorf("%w: %s is not numeric", ErrWrongKind, name)
		}
		for i, v := range col.Floats {
			out[i][offset] = v
		}
		offset++
	}

	return out, nil
}

// SchemaHash identifies the input groups and output feature space of the transform.
func (ft *FittedTransform) SchemaHash() string {
	h := sha256.New()
	for _, enc := range ft.Encoders {
		fmt.Fprintf(h, "cat:%s\n", enc.Column)
	}
	for _, sc := range ft.Scalers {
		fmt.Fprintf(h, "num:%s\n", sc.Column)
	}
	for _, p := range ft.Passthrough {
		fmt.Fprintf(h, "remainder:%s\n", p)
	}
	h.Write([]byte(strings.Join(ft.FeatureNames, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

func (ft *FittedTransform) featureNames() []string {
	names := []string{}
	for _, enc := range ft.Encoders {
		for _, c := range enc.Categories {
			names = append(names, fmt.Sprintf("cat__%s_%s", enc.Column, c))
		}
	}
	for _, sc := range ft.Scalers {
		names = append(names, "num__"+sc.Column)
	}
	for _, p := range ft.Passthrough {
		names = append(names, "remainder__"+p)
	}
	return names
}

func distinct(values []string) []string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// meanScale returns the population mean and standard deviation, ignoring NaN.
// A zero or undefined deviation yields a scale of 1.
func meanScale(values []float64) (float64, float64) {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return 0, 1
	}
	mean, std := stat.PopMeanStdDev(present, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	return mean, std
}
