package classify

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// node is one split or leaf of a classification tree.
type node struct {
	feature   int
	threshold float64
	left      *node // feature value <= threshold
	right     *node
	label     int
}

func (n *node) leaf() bool { return n.left == nil }

type tree struct {
	root *node
}

func (t *tree) Predict(x []float64) int {
	n := t.root
	for !n.leaf() {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.label
}

// growConfig controls tree induction. mtry 0 means every feature is tried
// at every split; otherwise features are visited in an rng order and the
// search stops after mtry of them once a useful split exists.
type growConfig struct {
	minLeaf int
	mtry    int
	rng     *rand.Rand
	classes int
}

type treeAlgorithm struct {
	minLeaf int
}

func (a *treeAlgorithm) Train(features [][]float64, labels []int) (Model, error) {
	if _, err := checkTrainingSet(features, labels); err != nil {
		return nil, fmt.Errorf("cart: %w", err)
	}
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	cfg := growConfig{minLeaf: max(1, a.minLeaf), classes: maxLabel(labels) + 1}
	return &tree{root: grow(features, labels, idx, cfg)}, nil
}

// grow builds a Gini tree over the samples in idx.
func grow(x [][]float64, y []int, idx []int, cfg growConfig) *node {
	counts := make([]int, cfg.classes)
	for _, i := range idx {
		counts[y[i]]++
	}
	leaf := &node{label: majority(counts)}
	if counts[leaf.label] == len(idx) || len(idx) < 2*cfg.minLeaf {
		return leaf
	}

	parent := gini(counts, len(idx))
	bestScore := parent
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(idx))
	left := make([]int, cfg.classes)
	for tried, f := range candidateFeatures(len(x[0]), cfg) {
		// keep drawing past mtry only while no useful split has been found
		if cfg.mtry > 0 && tried >= cfg.mtry && bestFeature >= 0 {
			break
		}
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })
		for k := range left {
			left[k] = 0
		}
		for k := 0; k < len(order)-1; k++ {
			left[y[order[k]]]++
			nl := k + 1
			nr := len(order) - nl
			lo, hi := x[order[k]][f], x[order[k+1]][f]
			if lo == hi || nl < cfg.minLeaf || nr < cfg.minLeaf {
				continue
			}
			score := weightedGini(left, counts, nl, nr)
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	if bestFeature < 0 {
		return leaf
	}

	var li, ri []int
	for _, i := range idx {
		if x[i][bestFeature] <= bestThreshold {
			li = append(li, i)
		} else {
			ri = append(ri, i)
		}
	}
	return &node{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      grow(x, y, li, cfg),
		right:     grow(x, y, ri, cfg),
		label:     leaf.label,
	}
}

// candidateFeatures returns the feature visiting order: natural order for
// a plain tree, a random permutation when features are subsampled.
func candidateFeatures(dims int, cfg growConfig) []int {
	if cfg.mtry <= 0 || cfg.mtry >= dims || cfg.rng == nil {
		all := make([]int, dims)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return cfg.rng.Perm(dims)
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

// weightedGini scores a split given the left counts and the parent totals.
func weightedGini(left, total []int, nl, nr int) float64 {
	gl, gr := 1.0, 1.0
	for k := range total {
		pl := float64(left[k]) / float64(nl)
		pr := float64(total[k]-left[k]) / float64(nr)
		gl -= pl * pl
		gr -= pr * pr
	}
	n := float64(nl + nr)
	return float64(nl)/n*gl + float64(nr)/n*gr
}

// sqrtFeatures is the per-split feature count used by the forest.
func sqrtFeatures(dims int) int {
	return max(1, int(math.Sqrt(float64(dims))))
}
