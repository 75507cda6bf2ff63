package train

import (
	"container/heap"
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Resampling errors.
var (
	ErrSingleClass      = errors.New("training data has a single class")
	ErrTooFewMinority   = errors.New("minority class needs at least two samples")
	ErrShapeMismatch    = errors.New("feature and label lengths differ")
	ErrEmptyTrainingSet = errors.New("empty training set")
)

// SMOTE oversamples the minority class by interpolating between each sampled
// minority point and one of its k nearest minority neighbours until both
// classes have the same count. The inputs are not modified.
type SMOTE struct {
	Neighbors int
	Seed      int64
}

// Resample returns x and y extended with synthetic minority samples.
func (s SMOTE) Resample(x [][]float64, y []int) ([][]float64, []int, error) {
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	if len(x) == 0 {
		return nil, nil, ErrEmptyTrainingSet
	}

	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	if len(byClass) != 2 {
		return nil, nil, fmt.Errorf("%w: %d classes", ErrSingleClass, len(byClass))
	}

	minority, majority := 0, 1
	if len(byClass[0]) > len(byClass[1]) {
		minority, majority = 1, 0
	}
	need := len(byClass[majority]) - len(byClass[minority])

	outX := make([][]float64, len(x), len(x)+need)
	copy(outX, x)
	outY := make([]int, len(y), len(y)+need)
	copy(outY, y)

	if need == 0 {
		return outX, outY, nil
	}

	members := byClass[minority]
	if len(members) < 2 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrTooFewMinority, len(members))
	}
	k := s.Neighbors
	if k <= 0 {
		k = 5
	}
	k = min(k, len(members)-1)

	neighbors := nearest(x, members, k)
	rng := rand.New(rand.NewSource(s.Seed)) //nolint:gosec // reproducible sampling, not security

	for n := 0; n < need; n++ {
		i := rng.Intn(len(members))
		nn := neighbors[i][rng.Intn(k)]
		gap := rng.Float64()

		base := x[members[i]]
		diff := make([]float64, len(base))
		floats.SubTo(diff, x[nn], base)
		synthetic := make([]float64, len(base))
		copy(synthetic, base)
		floats.AddScaled(synthetic, gap, diff)

		outX = append(outX, synthetic)
		outY = append(outY, minority)
	}

	return outX, outY, nil
}

// neighbor is a candidate neighbour; pos is its position in members and breaks distance ties.
type neighbor struct {
	dist float64
	pos  int
	row  int
}

// farther reports whether a ranks after b.
func (a neighbor) farther(b neighbor) bool {
	if a.dist != b.dist {
		return a.dist > b.dist
	}
	return a.pos > b.pos
}

// neighborHeap is a max-heap keyed on distance, so the root is the worst of the kept k.
type neighborHeap []neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return h[i].farther(h[j]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(v any)        { *h = append(*h, v.(neighbor)) }
func (h *neighborHeap) Pop() any {
	old := *h
	v := old[len(old)-1]
	*h = old[:len(old)-1]
	return v
}

// nearest returns, for each member, the row indices of its k nearest other
// members, closest first. Equal distances keep member order.
func nearest(x [][]float64, members []int, k int) [][]int {
	result := make([][]int, len(members))
	kept := make(neighborHeap, 0, k)
	for i, a := range members {
		kept = kept[:0]
		for j, b := range members {
			if i == j {
				continue
			}
			c := neighbor{dist: floats.Distance(x[a], x[b], 2), pos: j, row: b}
			switch {
			case len(kept) < k:
				heap.Push(&kept, c)
			case kept[0].farther(c):
				kept[0] = c
				heap.Fix(&kept, 0)
			}
		}

		// Popping the max-heap yields farthest first.
		result[i] = make([]int, len(kept))
		for n := len(kept) - 1; n >= 0; n-- {
			result[i][n] = heap.Pop(&kept).(neighbor).row
		}
	}
	return result
}
