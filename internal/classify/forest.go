package classify

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

type forestAlgorithm struct {
	trees       int
	seed        uint64
	bagFraction float64
	minLeaf     int
}

type forest struct {
	trees   []*tree
	classes int
}

// Train grows each tree on a bag drawn without replacement, trying
// sqrt(features) candidates per split.
func (a *forestAlgorithm) Train(features [][]float64, labels []int) (Model, error) {
	dims, err := checkTrainingSet(features, labels)
	if err != nil {
		return nil, fmt.Errorf("random forest: %w", err)
	}
	if a.trees < 1 {
		return nil, fmt.Errorf("random forest: tree count must be positive, got %d", a.trees)
	}
	frac := a.bagFraction
	if frac <= 0 || frac > 1 {
		frac = 1
	}
	bag := max(1, int(math.Ceil(frac*float64(len(features)))))
	rng := rand.New(rand.NewPCG(a.seed, a.seed))
	cfg := growConfig{
		minLeaf: max(1, a.minLeaf),
		mtry:    sqrtFeatures(dims),
		rng:     rng,
		classes: maxLabel(labels) + 1,
	}
	f := &forest{classes: cfg.classes}
	for t := 0; t < a.trees; t++ {
		idx := rng.Perm(len(features))[:bag]
		sort.Ints(idx)
		f.trees = append(f.trees, &tree{root: grow(features, labels, idx, cfg)})
	}
	return f, nil
}

// Predict is a majority vote over the trees, ties to the lowest label.
func (f *forest) Predict(x []float64) int {
	votes := make([]int, f.classes)
	for _, t := range f.trees {
		votes[t.Predict(x)]++
	}
	return majority(votes)
}
