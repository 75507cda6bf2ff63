package train

import (
	"math/rand"
	"sort"
)

// Node is a decision tree node. Leaves have Feature set to -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Prob      float64 `json:"prob"`
}

// Tree is a binary classification tree stored as a flat node list, root first.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Prob returns the class-1 probability of the leaf row falls into.
func (t *Tree) Prob(row []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Prob
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	rng         *rand.Rand
	x           [][]float64
	y           []int
	nodes       []Node
	maxDepth    int
	maxFeatures int
}

// growTree fits a CART tree with Gini impurity on the rows listed in sample.
// sample may contain duplicates (bootstrap draws).
func growTree(x [][]float64, y []int, sample []int, maxDepth, maxFeatures int, rng *rand.Rand) Tree {
	b := &treeBuilder{rng: rng, x: x, y: y, maxDepth: maxDepth, maxFeatures: maxFeatures}
	b.build(sample, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) build(sample []int, depth int) int {
	id := len(b.nodes)
	positives := 0
	for _, i := range sample {
		positives += b.y[i]
	}
	b.nodes = append(b.nodes, Node{Feature: -1, Prob: float64(positives) / float64(len(sample))})

	if depth >= b.maxDepth || len(sample) < 2 || positives == 0 || positives == len(sample) {
		return id
	}

	feature, threshold, ok := b.bestSplit(sample, positives)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range sample {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) bestSplit(sample []int, positives int) (int, float64, bool) {
	n := float64(len(sample))
	parent := gini(float64(positives), n)

	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(sample))
	for _, f := range b.candidateFeatures() {
		copy(order, sample)
		sort.SliceStable(order, func(p, q int) bool { return b.x[order[p]][f] < b.x[order[q]][f] })

		leftPos := 0.0
		for k := 0; k < len(order)-1; k++ {
			leftPos += float64(b.y[order[k]])
			cur, next := b.x[order[k]][f], b.x[order[k+1]][f]
			if cur == next {
				continue
			}
			nl := float64(k + 1)
			nr := n - nl
			rightPos := float64(positives) - leftPos
			impurity := (nl*gini(leftPos, nl) + nr*gini(rightPos, nr)) / n
			if gain := parent - impurity; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *treeBuilder) candidateFeatures() []int {
	width := len(b.x[0])
	perm := b.rng.Perm(width)
	return perm[:min(b.maxFeatures, width)]
}

func gini(positives, n float64) float64 {
	if n == 0 {
		return 0
	}
	p := positives / n
	return 1 - p*p - (1-p)*(1-p)
}
