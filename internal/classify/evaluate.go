package classify

import (
	"gonum.org/v1/gonum/mat"
)

// matrixSize covers labels 0..NumClasses.
const matrixSize = NumClasses + 1

// ConfusionMatrix counts test outcomes: row is the actual label, column the
// predicted label, index 0 is unclassified.
type ConfusionMatrix struct {
	m *mat.Dense
}

// NewConfusionMatrix returns an empty 7x7 matrix.
func NewConfusionMatrix() *ConfusionMatrix {
	return &ConfusionMatrix{m: mat.NewDense(matrixSize, matrixSize, nil)}
}

// Add records one outcome. Labels outside 0..NumClasses count as
// unclassified.
func (c *ConfusionMatrix) Add(actual, predicted int) {
	c.m.Set(clampLabel(actual), clampLabel(predicted), c.m.At(clampLabel(actual), clampLabel(predicted))+1)
}

func clampLabel(l int) int {
	if l < 0 || l > NumClasses {
		return 0
	}
	return l
}

// At returns the count for (actual, predicted).
func (c *ConfusionMatrix) At(actual, predicted int) int {
	return int(c.m.At(actual, predicted))
}

// Total returns the number of recorded outcomes.
func (c *ConfusionMatrix) Total() int {
	return int(mat.Sum(c.m))
}

// Accuracy is the fraction of outcomes on the diagonal.
func (c *ConfusionMatrix) Accuracy() float64 {
	total := mat.Sum(c.m)
	if total == 0 {
		return 0
	}
	return mat.Trace(c.m) / total
}

// Kappa returns Cohen's kappa. When chance agreement is total the result
// is 1 for perfect observed agreement and 0 otherwise.
func (c *ConfusionMatrix) Kappa() float64 {
	total := mat.Sum(c.m)
	if total == 0 {
		return 0
	}
	po := mat.Trace(c.m) / total

	ones := mat.NewVecDense(matrixSize, nil)
	for i := 0; i < matrixSize; i++ {
		ones.SetVec(i, 1)
	}
	var rows, cols mat.VecDense
	rows.MulVec(c.m, ones)
	cols.MulVec(c.m.T(), ones)
	pe := mat.Dot(&rows, &cols) / (total * total)

	if pe >= 1 {
		if po >= 1 {
			return 1
		}
		return 0
	}
	return (po - pe) / (1 - pe)
}

// Rows returns the matrix as plain integers for reporting.
func (c *ConfusionMatrix) Rows() [][]int {
	out := make([][]int, matrixSize)
	for i := range out {
		out[i] = make([]int, matrixSize)
		for j := range out[i] {
			out[i][j] = int(c.m.At(i, j))
		}
	}
	return out
}

// Evaluate predicts every test vector and tallies the outcomes.
func Evaluate(m Model, features [][]float64, labels []int) *ConfusionMatrix {
	cm := NewConfusionMatrix()
	for i, f := range features {
		cm.Add(labels[i], m.Predict(f))
	}
	return cm
}

// Report summarises one training run.
type Report struct {
	Family        Family   `json:"family"`
	ReferenceYear int      `json:"reference_year"`
	Bands         []string `json:"bands"`
	TrainSamples  int      `json:"train_samples"`
	TestSamples   int      `json:"test_samples"`
	Dropped       int      `json:"dropped_samples"`
	Accuracy      float64  `json:"accuracy"`
	Kappa         float64  `json:"kappa"`
	Confusion     [][]int  `json:"confusion_matrix"`
}
