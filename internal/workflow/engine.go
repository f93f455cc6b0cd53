package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/landcover.report/internal/change"
	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/indices"
	"github.com/banshee-data/landcover.report/internal/inspect"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/session"
	"github.com/banshee-data/landcover.report/internal/timeutil"
	"github.com/banshee-data/landcover.report/internal/trend"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

var (
	// ErrEmptyCollection is returned when classification produced no
	// labelled raster at all.
	ErrEmptyCollection = errors.New("classification produced an empty collection")

	// ErrYearNotConfigured is returned for a query on a year outside the
	// configured list.
	ErrYearNotConfigured = errors.New("year not configured")
)

// Options fixes the study parameters of an engine.
type Options struct {
	Years            []int
	ReferenceYear    int
	GSD              float64
	Family           classify.Family
	Params           classify.Params
	SplitSeed        uint64
	TrainFraction    float64
	TrendConcurrency int
}

// ProgressFunc is called after each year is classified.
type ProgressFunc func(year, done, total int)

// Recorder persists run artefacts. Recording failures are logged and never
// fail the query that produced them.
type Recorder interface {
	RecordRun(ctx context.Context, runID string, createdAt time.Time, years []int, report *classify.Report) error
	RecordZonal(ctx context.Context, runID string, year int, res zonal.Result) error
	RecordTransitions(ctx context.Context, runID string, report *change.Report) error
}

// Engine owns one study area and its session.
type Engine struct {
	builder classify.CompositeBuilder
	grid    raster.Grid
	aoi     *geo.AOI
	opts    Options
	sess    *session.Session

	trainer   *classify.Trainer
	analyzer  *change.Analyzer
	trend     *trend.Aggregator
	inspector *inspect.Inspector

	recorder Recorder
	clock    timeutil.Clock
	newID    func() string
}

// NewEngine returns an engine over the study grid and AOI.
func NewEngine(builder classify.CompositeBuilder, grid raster.Grid, aoi *geo.AOI, sess *session.Session, opts Options) (*Engine, error) {
	if builder == nil || aoi == nil || sess == nil {
		return nil, fmt.Errorf("engine needs a composite builder, an aoi and a session")
	}
	if opts.GSD <= 0 {
		return nil, fmt.Errorf("gsd must be positive, got %f", opts.GSD)
	}
	opts.Years = slices.Clone(opts.Years)
	slices.Sort(opts.Years)
	opts.Years = slices.Compact(opts.Years)
	return &Engine{
		builder:   builder,
		grid:      grid,
		aoi:       aoi,
		opts:      opts,
		sess:      sess,
		trainer:   classify.NewTrainer(builder),
		analyzer:  change.NewAnalyzer(aoi, opts.GSD),
		trend:     trend.NewAggregator(aoi, opts.GSD, opts.TrendConcurrency),
		inspector: inspect.New(aoi, opts.GSD),
		clock:     timeutil.RealClock{},
		newID:     uuid.NewString,
	}, nil
}

// SetRecorder attaches persistence. Passing nil detaches it.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// SetClock replaces the clock used for run timestamps.
func (e *Engine) SetClock(c timeutil.Clock) { e.clock = c }

// Years returns the configured years, ascending.
func (e *Engine) Years() []int { return slices.Clone(e.opts.Years) }

// Grid returns the study grid.
func (e *Engine) Grid() raster.Grid { return e.grid }

// AOI returns the study area.
func (e *Engine) AOI() *geo.AOI { return e.aoi }

// Options returns the engine options.
func (e *Engine) Options() Options { return e.opts }

// Session returns the engine session.
func (e *Engine) Session() *session.Session { return e.sess }

// Train fits the configured classifier, classifies every configured year
// and commits the result. Nothing is committed unless both steps succeed.
func (e *Engine) Train(ctx context.Context, samples []geo.Sample, progress ProgressFunc) (*session.State, error) {
	start := e.clock.Now()
	model, report, err := e.trainer.Train(ctx, samples, classify.TrainConfig{
		ReferenceYear: e.opts.ReferenceYear,
		Family:        e.opts.Family,
		Params:        e.opts.Params,
		SplitSeed:     e.opts.SplitSeed,
		TrainFraction: e.opts.TrainFraction,
	})
	if err != nil {
		return nil, err
	}
	labels, comps, err := e.ClassifyYears(ctx, model, progress)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := e.newID()
	if err := e.sess.Commit(&session.State{
		RunID:      runID,
		Model:      model,
		Report:     report,
		Labels:     labels,
		Composites: comps,
	}); err != nil {
		return nil, err
	}
	st := e.sess.Load()
	monitoring.Logf("[workflow] run %s committed: %d years in %s", runID, labels.Len(), e.clock.Since(start).Round(time.Millisecond))

	if e.recorder != nil {
		if err := e.recorder.RecordRun(ctx, runID, st.CommittedAt, labels.Years(), report); err != nil {
			monitoring.Logf("[workflow] failed to record run %s: %v", runID, err)
		}
	}
	return st, nil
}

// ClassifyYears labels every configured year with model. A year without
// imagery yields an all-zero placeholder label raster and the model is not
// invoked for it. The second result holds the indexed composite (or
// placeholder) per year for inspection.
func (e *Engine) ClassifyYears(ctx context.Context, model *classify.BoundModel, progress ProgressFunc) (*raster.Collection, map[int]*raster.Image, error) {
	coll, err := raster.NewCollection()
	if err != nil {
		return nil, nil, err
	}
	comps := make(map[int]*raster.Image, len(e.opts.Years))
	for n, year := range e.opts.Years {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		labels, comp, err := e.classifyYear(ctx, model, year)
		if err != nil {
			return nil, nil, fmt.Errorf("year %d: %w", year, err)
		}
		if err := coll.Add(labels); err != nil {
			return nil, nil, err
		}
		comps[year] = comp
		if progress != nil {
			progress(year, n+1, len(e.opts.Years))
		}
	}
	if coll.Len() == 0 {
		monitoring.Logf("[workflow] classification produced no rasters")
		return coll, comps, ErrEmptyCollection
	}
	return coll, comps, nil
}

func (e *Engine) classifyYear(ctx context.Context, model *classify.BoundModel, year int) (labels, comp *raster.Image, err error) {
	comp, err = e.builder.Build(ctx, year)
	if err != nil {
		return nil, nil, err
	}
	if comp.Placeholder {
		return raster.NewPlaceholder(comp.Grid, comp.Metadata, classify.LabelBand), comp, nil
	}
	indexed, err := indices.Compute(comp)
	if err != nil {
		return nil, nil, err
	}
	labels, err = model.Classify(ctx, indexed)
	if err != nil {
		return nil, nil, err
	}
	return labels, indexed, nil
}

func (e *Engine) configured(year int) error {
	if !slices.Contains(e.opts.Years, year) {
		return fmt.Errorf("%d: %w", year, ErrYearNotConfigured)
	}
	return nil
}

// SelectYear sets the inspection context.
func (e *Engine) SelectYear(year int) (*session.YearView, error) {
	if err := e.configured(year); err != nil {
		return nil, err
	}
	return e.sess.SelectYear(year)
}

// Zonal returns the class areas of one year.
func (e *Engine) Zonal(ctx context.Context, year int) (zonal.Result, error) {
	if err := e.configured(year); err != nil {
		return nil, err
	}
	st, err := e.sess.Trained()
	if err != nil {
		return nil, err
	}
	labels, ok := st.Labels.Get(year)
	if !ok {
		return nil, fmt.Errorf("%d: %w", year, ErrYearNotConfigured)
	}
	res, err := zonal.Compute(ctx, labels, e.aoi, e.opts.GSD)
	if err != nil {
		return nil, err
	}
	if e.recorder != nil {
		if err := e.recorder.RecordZonal(ctx, st.RunID, year, res); err != nil {
			monitoring.Logf("[workflow] failed to record zonal stats for %d: %v", year, err)
		}
	}
	return res, nil
}

// Change compares two years. The range is validated before anything else.
func (e *Engine) Change(ctx context.Context, year1, year2 int) (*change.Report, error) {
	if err := change.ValidateRange(year1, year2); err != nil {
		return nil, err
	}
	if err := e.configured(year1); err != nil {
		return nil, err
	}
	if err := e.configured(year2); err != nil {
		return nil, err
	}
	st, err := e.sess.Trained()
	if err != nil {
		return nil, err
	}
	report, err := e.analyzer.Analyze(ctx, st.Labels, year1, year2)
	if err != nil {
		return nil, err
	}
	if e.recorder != nil {
		if err := e.recorder.RecordTransitions(ctx, st.RunID, report); err != nil {
			monitoring.Logf("[workflow] failed to record transitions %d-%d: %v", year1, year2, err)
		}
	}
	return report, nil
}

// Trend returns the long-format area table over every classified year.
func (e *Engine) Trend(ctx context.Context) ([]trend.Row, error) {
	st, err := e.sess.Trained()
	if err != nil {
		return nil, err
	}
	return e.trend.Aggregate(ctx, st.Labels)
}

// Inspect summarises the neighbourhood of (x, y) on the selected year.
func (e *Engine) Inspect(x, y float64) (*inspect.Result, error) {
	view, err := e.sess.Current()
	if err != nil {
		return nil, err
	}
	return e.inspector.Inspect(view.Labels, view.Composite, x, y)
}
