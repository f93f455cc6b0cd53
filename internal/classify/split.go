package classify

import (
	"math/rand/v2"

	"github.com/banshee-data/landcover.report/internal/geo"
)

// DefaultTrainFraction is the split threshold: a sample whose draw is at or
// below it goes to the training set.
const DefaultTrainFraction = 0.8

// Split assigns each pooled sample to train or test with one uniform draw
// in [0,1) from a PCG stream seeded with seed. The split is global, not
// stratified by class.
func Split(samples []geo.Sample, seed uint64, threshold float64) (train, test []geo.Sample) {
	rng := rand.New(rand.NewPCG(seed, seed))
	for _, s := range samples {
		if rng.Float64() <= threshold {
			train = append(train, s)
		} else {
			test = append(test, s)
		}
	}
	return train, test
}
