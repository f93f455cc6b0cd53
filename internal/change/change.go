// Package change compares the labelled rasters of two years: a from/to
// transition table, a coarse change layer and an independent net area
// delta per class.
package change

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

// ErrInvalidRange is returned when year1 is not strictly before year2.
var ErrInvalidRange = errors.New("year1 must be before year2")

// MinTransitionHa is the exclusive area threshold for a reported transition.
const MinTransitionHa = 0.1

// DisplayLimit is the number of transitions shown by Top in the UI.
const DisplayLimit = 20

// LayerBand names the band of the coarse change layer.
const LayerBand = "transition"

// TransitionRecord is the area that moved from one class to another.
type TransitionRecord struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	AreaHa float64 `json:"area_ha"`
}

// Report is the full comparison of two years.
type Report struct {
	Year1 int `json:"year1"`
	Year2 int `json:"year2"`

	// Transitions is the authoritative filtered table, largest first.
	Transitions []TransitionRecord `json:"transitions"`

	// NetDelta is zonal(year2) - zonal(year1) for every class, computed
	// independently of Transitions.
	NetDelta map[int]float64 `json:"net_delta"`

	// NoData lists the years whose zonal statistics had no classified
	// pixels and were counted as zero.
	NoData []int `json:"no_data_years,omitempty"`

	// Layer holds the coarse code label1*10+label2 per pixel.
	Layer *raster.Image `json:"-"`
}

// Top returns at most n transitions for display.
func (r *Report) Top(n int) []TransitionRecord {
	if n >= len(r.Transitions) {
		return r.Transitions
	}
	return r.Transitions[:n]
}

// Analyzer compares years over a fixed AOI and GSD.
type Analyzer struct {
	aoi *geo.AOI
	gsd float64
}

// NewAnalyzer returns an analyzer.
func NewAnalyzer(aoi *geo.AOI, gsd float64) *Analyzer {
	return &Analyzer{aoi: aoi, gsd: gsd}
}

// ValidateRange rejects year1 >= year2.
func ValidateRange(year1, year2 int) error {
	if year1 >= year2 {
		return fmt.Errorf("%d to %d: %w", year1, year2, ErrInvalidRange)
	}
	return nil
}

// Analyze compares year1 and year2 of coll. The range is checked before
// any raster is read.
func (a *Analyzer) Analyze(ctx context.Context, coll *raster.Collection, year1, year2 int) (*Report, error) {
	if err := ValidateRange(year1, year2); err != nil {
		return nil, err
	}
	l1, ok := coll.Get(year1)
	if !ok {
		return nil, fmt.Errorf("year %d has no labelled raster", year1)
	}
	l2, ok := coll.Get(year2)
	if !ok {
		return nil, fmt.Errorf("year %d has no labelled raster", year2)
	}
	if !l1.Grid.Equal(l2.Grid) {
		return nil, fmt.Errorf("years %d and %d are on different grids", year1, year2)
	}

	report := &Report{Year1: year1, Year2: year2}

	var z1, z2 zonal.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		z1, err = a.zonalOrEmpty(gctx, l1)
		return err
	})
	g.Go(func() error {
		var err error
		z2, err = a.zonalOrEmpty(gctx, l2)
		return err
	})
	g.Go(func() error {
		layer, err := CoarseLayer(gctx, l1, l2)
		if err != nil {
			return err
		}
		transitions, err := a.Transitions(gctx, l1, l2)
		if err != nil {
			return err
		}
		report.Layer = layer
		report.Transitions = transitions
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if z1 == nil {
		report.NoData = append(report.NoData, year1)
	}
	if z2 == nil {
		report.NoData = append(report.NoData, year2)
	}
	report.NetDelta = make(map[int]float64, classify.NumClasses)
	for c := 1; c <= classify.NumClasses; c++ {
		report.NetDelta[c] = z2[c] - z1[c]
	}
	monitoring.Logf("[change] %d to %d: %d transitions above %.1f ha", year1, year2, len(report.Transitions), MinTransitionHa)
	return report, nil
}

// zonalOrEmpty maps ErrNoData to a nil result.
func (a *Analyzer) zonalOrEmpty(ctx context.Context, labels *raster.Image) (zonal.Result, error) {
	r, err := zonal.Compute(ctx, labels, a.aoi, a.gsd)
	if errors.Is(err, zonal.ErrNoData) {
		return nil, nil
	}
	return r, err
}

// TransitionIndex is the full 36-way code of a (from, to) pair.
func TransitionIndex(from, to int) int { return (from-1)*classify.NumClasses + (to - 1) }

// CoarseCode is the two-digit code of the visual change layer.
func CoarseCode(from, to int) int { return from*10 + to }

// Transitions tabulates the area of every (from, to) pair at the analyzer's
// GSD, keeping pairs above MinTransitionHa, largest first.
func (a *Analyzer) Transitions(ctx context.Context, l1, l2 *raster.Image) ([]TransitionRecord, error) {
	agg, cells1, err := zonal.Cells(ctx, l1, a.aoi, a.gsd)
	if err != nil {
		return nil, err
	}
	_, cells2, err := zonal.Cells(ctx, l2, a.aoi, a.gsd)
	if err != nil {
		return nil, err
	}
	to := make(map[int]int, len(cells2))
	for _, c := range cells2 {
		to[c.Index] = c.Label
	}
	var counts [classify.NumClasses * classify.NumClasses]int
	for _, c := range cells1 {
		if l, ok := to[c.Index]; ok {
			counts[TransitionIndex(c.Label, l)]++
		}
	}

	cellHa := agg.PixelAreaHa()
	var out []TransitionRecord
	for idx, n := range counts {
		area := float64(n) * cellHa
		if area <= MinTransitionHa {
			continue
		}
		out = append(out, TransitionRecord{
			From:   idx/classify.NumClasses + 1,
			To:     idx%classify.NumClasses + 1,
			AreaHa: area,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AreaHa != out[j].AreaHa {
			return out[i].AreaHa > out[j].AreaHa
		}
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out, nil
}

// CoarseLayer encodes label1*10+label2 wherever both years are valid.
func CoarseLayer(ctx context.Context, l1, l2 *raster.Image) (*raster.Image, error) {
	if l1.BandCount() == 0 || l2.BandCount() == 0 {
		return nil, fmt.Errorf("labelled raster has no bands")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b1, b2 := l1.Bands()[0], l2.Bands()[0]
	out := raster.NewBand(LayerBand, l1.Grid.Len())
	for i := range out.Values {
		v1, ok1 := b1.At(i)
		v2, ok2 := b2.At(i)
		if !ok1 || !ok2 {
			continue
		}
		out.Values[i] = float64(CoarseCode(int(v1), int(v2)))
		out.Valid[i] = true
	}
	meta := raster.Metadata{Year: l2.Metadata.Year, SeasonStart: l1.Metadata.SeasonStart, SeasonEnd: l2.Metadata.SeasonEnd}
	return raster.NewImage(l1.Grid, meta).AddBands(out)
}
