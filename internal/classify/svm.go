package classify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	smoTolerance     = 1e-3
	smoMaxIterations = 100000
	smoTau           = 1e-12
)

type svmAlgorithm struct {
	gamma float64
	cost  float64
}

// binarySVM separates label pos (+1) from neg (-1).
type binarySVM struct {
	pos, neg int
	support  [][]float64
	coef     []float64 // alpha_i * y_i
	rho      float64
}

type svmModel struct {
	gamma   float64
	pairs   []binarySVM
	classes int
}

// Train fits one RBF machine per class pair and predicts by voting.
func (a *svmAlgorithm) Train(features [][]float64, labels []int) (Model, error) {
	if _, err := checkTrainingSet(features, labels); err != nil {
		return nil, fmt.Errorf("svm: %w", err)
	}
	if a.gamma <= 0 || a.cost <= 0 {
		return nil, fmt.Errorf("svm: gamma and cost must be positive, got %g and %g", a.gamma, a.cost)
	}
	present := make([]bool, maxLabel(labels)+1)
	for _, l := range labels {
		present[l] = true
	}
	var classes []int
	for l, ok := range present {
		if ok {
			classes = append(classes, l)
		}
	}
	m := &svmModel{gamma: a.gamma, classes: len(present)}
	if len(classes) == 1 {
		// a single class needs no machine; every vote goes to it
		m.pairs = append(m.pairs, binarySVM{pos: classes[0], neg: classes[0]})
		return m, nil
	}
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			var x [][]float64
			var y []float64
			for k, l := range labels {
				switch l {
				case classes[i]:
					x = append(x, features[k])
					y = append(y, 1)
				case classes[j]:
					x = append(x, features[k])
					y = append(y, -1)
				}
			}
			b := solveSMO(x, y, a.gamma, a.cost)
			b.pos, b.neg = classes[i], classes[j]
			m.pairs = append(m.pairs, b)
		}
	}
	return m, nil
}

func (m *svmModel) Predict(x []float64) int {
	votes := make([]int, m.classes)
	for _, p := range m.pairs {
		if p.pos == p.neg || p.decision(x, m.gamma) > 0 {
			votes[p.pos]++
		} else {
			votes[p.neg]++
		}
	}
	return majority(votes)
}

func (b *binarySVM) decision(x []float64, gamma float64) float64 {
	sum := -b.rho
	for i, sv := range b.support {
		sum += b.coef[i] * rbf(sv, x, gamma)
	}
	return sum
}

func rbf(a, b []float64, gamma float64) float64 {
	d := floats.Distance(a, b, 2)
	return math.Exp(-gamma * d * d)
}

// solveSMO solves the C-SVC dual with maximal-violating-pair working set
// selection.
func solveSMO(x [][]float64, y []float64, gamma, c float64) binarySVM {
	n := len(x)
	k := make([][]float64, n)
	for i := range k {
		k[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			v := rbf(x[i], x[j], gamma)
			k[i][j] = v
			k[j][i] = v
		}
	}
	q := func(i, j int) float64 { return y[i] * y[j] * k[i][j] }

	alpha := make([]float64, n)
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}

	for iter := 0; iter < smoMaxIterations; iter++ {
		i, j := -1, -1
		gmax, gmin := math.Inf(-1), math.Inf(1)
		for t := 0; t < n; t++ {
			v := -y[t] * grad[t]
			if inUp(y[t], alpha[t], c) && v > gmax {
				gmax, i = v, t
			}
			if inLow(y[t], alpha[t], c) && v < gmin {
				gmin, j = v, t
			}
		}
		if i < 0 || j < 0 || gmax-gmin < smoTolerance {
			break
		}

		oldI, oldJ := alpha[i], alpha[j]
		if y[i] != y[j] {
			quad := k[i][i] + k[j][j] + 2*q(i, j)
			if quad <= 0 {
				quad = smoTau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > c {
					alpha[i] = c
					alpha[j] = c - diff
				}
			} else if alpha[j] > c {
				alpha[j] = c
				alpha[i] = c + diff
			}
		} else {
			quad := k[i][i] + k[j][j] - 2*q(i, j)
			if quad <= 0 {
				quad = smoTau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > c {
				if alpha[i] > c {
					alpha[i] = c
					alpha[j] = sum - c
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > c {
				if alpha[j] > c {
					alpha[j] = c
					alpha[i] = sum - c
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for t := 0; t < n; t++ {
			grad[t] += q(t, i)*dI + q(t, j)*dJ
		}
	}

	out := binarySVM{rho: bias(y, alpha, grad, c)}
	for t := 0; t < n; t++ {
		if alpha[t] > 0 {
			out.support = append(out.support, x[t])
			out.coef = append(out.coef, alpha[t]*y[t])
		}
	}
	return out
}

func inUp(y, a, c float64) bool  { return (y > 0 && a < c) || (y < 0 && a > 0) }
func inLow(y, a, c float64) bool { return (y > 0 && a > 0) || (y < 0 && a < c) }

// bias averages y*grad over free vectors, falling back to the midpoint of
// the feasible interval.
func bias(y, alpha, grad []float64, c float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	sum, free := 0.0, 0
	for t := range y {
		yg := y[t] * grad[t]
		switch {
		case alpha[t] >= c:
			if y[t] < 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case alpha[t] <= 0:
			if y[t] > 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			free++
			sum += yg
		}
	}
	if free > 0 {
		return sum / float64(free)
	}
	return (ub + lb) / 2
}
