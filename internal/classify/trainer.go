package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/indices"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/raster"
)

var (
	// ErrModelNotTrainable is returned when the reference composite is a
	// placeholder or yields no training vectors.
	ErrModelNotTrainable = errors.New("model not trainable")

	// ErrNoTestSamples is returned when no held-out sample yields a
	// feature vector.
	ErrNoTestSamples = errors.New("no usable test samples")
)

// CompositeBuilder produces the reflectance composite for a year.
type CompositeBuilder interface {
	Build(ctx context.Context, year int) (*raster.Image, error)
}

// TrainConfig selects the reference year, family and randomness of one
// training run.
type TrainConfig struct {
	ReferenceYear int
	Family        Family
	Params        Params
	SplitSeed     uint64
	TrainFraction float64
}

// Trainer fits and evaluates a classifier on one reference composite.
type Trainer struct {
	builder CompositeBuilder
}

// NewTrainer returns a trainer reading composites from builder.
func NewTrainer(builder CompositeBuilder) *Trainer {
	return &Trainer{builder: builder}
}

// Train splits samples, extracts features from the indexed reference
// composite, fits cfg.Family and evaluates it on the held-out samples.
func (t *Trainer) Train(ctx context.Context, samples []geo.Sample, cfg TrainConfig) (*BoundModel, *Report, error) {
	for i, s := range samples {
		if !ValidLabel(s.Class) {
			return nil, nil, fmt.Errorf("sample %d has class %d, want 1..%d", i, s.Class, NumClasses)
		}
	}
	alg, err := AlgorithmFor(cfg.Family, cfg.Params)
	if err != nil {
		return nil, nil, err
	}
	frac := cfg.TrainFraction
	if frac <= 0 {
		frac = DefaultTrainFraction
	}
	trainSet, testSet := Split(samples, cfg.SplitSeed, frac)
	monitoring.Logf("[train] %d samples: %d train, %d test", len(samples), len(trainSet), len(testSet))

	comp, err := t.builder.Build(ctx, cfg.ReferenceYear)
	if err != nil {
		return nil, nil, fmt.Errorf("reference composite %d: %w", cfg.ReferenceYear, err)
	}
	if comp.Placeholder {
		return nil, nil, fmt.Errorf("reference year %d has no imagery: %w", cfg.ReferenceYear, ErrModelNotTrainable)
	}
	indexed, err := indices.Compute(comp)
	if err != nil {
		return nil, nil, err
	}
	bands := indexed.BandNames()

	xTrain, yTrain, droppedTrain := Extract(indexed, trainSet, bands)
	xTest, yTest, droppedTest := Extract(indexed, testSet, bands)
	if len(xTrain) == 0 {
		return nil, nil, fmt.Errorf("no training sample falls on a valid pixel: %w", ErrModelNotTrainable)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	model, err := alg.Train(xTrain, yTrain)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cfg.Family, err)
	}
	if len(xTest) == 0 {
		return nil, nil, ErrNoTestSamples
	}
	cm := Evaluate(model, xTest, yTest)

	report := &Report{
		Family:        cfg.Family,
		ReferenceYear: cfg.ReferenceYear,
		Bands:         bands,
		TrainSamples:  len(xTrain),
		TestSamples:   len(xTest),
		Dropped:       droppedTrain + droppedTest,
		Accuracy:      cm.Accuracy(),
		Kappa:         cm.Kappa(),
		Confusion:     cm.Rows(),
	}
	monitoring.Logf("[train] %s on %d: accuracy %.3f kappa %.3f", cfg.Family, cfg.ReferenceYear, report.Accuracy, report.Kappa)
	return Bind(cfg.Family, bands, model), report, nil
}
