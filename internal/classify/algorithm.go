package classify

import (
	"errors"
	"fmt"
)

// Family selects a classifier strategy.
type Family string

const (
	RandomForest Family = "random_forest"
	SVM          Family = "svm"
	CART         Family = "cart"
)

// Families lists the supported strategies.
var Families = []Family{RandomForest, SVM, CART}

// ParseFamily validates a classifier family name.
func ParseFamily(s string) (Family, error) {
	for _, f := range Families {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown classifier family %q", s)
}

// Model predicts a class label from one feature vector.
type Model interface {
	Predict(features []float64) int
}

// Algorithm trains a Model. features[i] is the vector of the sample with
// label labels[i]. Implementations must be deterministic.
type Algorithm interface {
	Train(features [][]float64, labels []int) (Model, error)
}

// Params carries the fixed hyperparameters of every family.
type Params struct {
	Trees       int     `json:"trees"`
	Seed        uint64  `json:"seed"`
	BagFraction float64 `json:"bag_fraction"`
	MinLeaf     int     `json:"min_leaf"`
	Gamma       float64 `json:"gamma"`
	Cost        float64 `json:"cost"`
}

// DefaultParams returns the hyperparameters used when none are configured.
func DefaultParams() Params {
	return Params{
		Trees:       100,
		Seed:        42,
		BagFraction: 0.5,
		MinLeaf:     1,
		Gamma:       0.5,
		Cost:        10,
	}
}

// AlgorithmFor returns the strategy for f.
func AlgorithmFor(f Family, p Params) (Algorithm, error) {
	switch f {
	case RandomForest:
		return &forestAlgorithm{trees: p.Trees, seed: p.Seed, bagFraction: p.BagFraction, minLeaf: p.MinLeaf}, nil
	case SVM:
		return &svmAlgorithm{gamma: p.Gamma, cost: p.Cost}, nil
	case CART:
		return &treeAlgorithm{minLeaf: p.MinLeaf}, nil
	}
	return nil, fmt.Errorf("unknown classifier family %q", f)
}

var errNoTrainingData = errors.New("no training vectors")

func checkTrainingSet(features [][]float64, labels []int) (dims int, err error) {
	if len(features) == 0 {
		return 0, errNoTrainingData
	}
	if len(features) != len(labels) {
		return 0, fmt.Errorf("%d feature vectors for %d labels", len(features), len(labels))
	}
	for i, l := range labels {
		if l < 0 {
			return 0, fmt.Errorf("label %d at %d is negative", l, i)
		}
	}
	dims = len(features[0])
	for i, f := range features {
		if len(f) != dims {
			return 0, fmt.Errorf("vector %d has %d features, want %d", i, len(f), dims)
		}
	}
	return dims, nil
}

// majority returns the most frequent label in counts, ties to the lowest.
func majority(counts []int) int {
	best, bestN := 0, -1
	for l, n := range counts {
		if n > bestN {
			best, bestN = l, n
		}
	}
	return best
}

func maxLabel(labels []int) int {
	m := 0
	for _, l := range labels {
		if l > m {
			m = l
		}
	}
	return m
}
