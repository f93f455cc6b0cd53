// Package zonal aggregates a labelled raster into per-class area over the
// AOI at a fixed ground sampling distance.
package zonal

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/raster"
)

// ErrNoData is returned when the AOI holds no valid classified pixel.
var ErrNoData = errors.New("no classified pixels in aoi")

// Result maps class label to area in hectares. Classes with no pixels are
// absent; callers treat absence as zero.
type Result map[int]float64

// Total returns the summed area.
func (r Result) Total() float64 {
	sum := 0.0
	for _, v := range r {
		sum += v
	}
	return sum
}

// Classes returns the labels present, ascending.
func (r Result) Classes() []int {
	out := make([]int, 0, len(r))
	for c := range r {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// Cell is one cell of the aggregation grid resolved to a label.
type Cell struct {
	Index int
	Label int
}

// Cells walks the aggregation grid (the label raster's extent at gsd) and
// returns every cell inside the AOI whose centre falls on a valid pixel
// labelled 1..6.
func Cells(ctx context.Context, labels *raster.Image, aoi *geo.AOI, gsd float64) (raster.Grid, []Cell, error) {
	if labels == nil || labels.BandCount() == 0 {
		return raster.Grid{}, nil, fmt.Errorf("labelled raster has no bands")
	}
	if gsd <= 0 {
		return raster.Grid{}, nil, fmt.Errorf("gsd must be positive, got %f", gsd)
	}
	band := labels.Bands()[0]
	agg := labels.Grid.Rescale(gsd)
	inside := aoi.Mask(agg)
	var cells []Cell
	for row := 0; row < agg.Height; row++ {
		if err := ctx.Err(); err != nil {
			return agg, nil, err
		}
		for col := 0; col < agg.Width; col++ {
			i := row*agg.Width + col
			if !inside[i] {
				continue
			}
			x, y := agg.Centre(i)
			src, ok := labels.Grid.Index(x, y)
			if !ok {
				continue
			}
			v, ok := band.At(src)
			if !ok || !classify.ValidLabel(int(v)) {
				continue
			}
			cells = append(cells, Cell{Index: i, Label: int(v)})
		}
	}
	return agg, cells, nil
}

// Compute returns class areas for labels over aoi at gsd metres.
func Compute(ctx context.Context, labels *raster.Image, aoi *geo.AOI, gsd float64) (Result, error) {
	agg, cells, err := Cells(ctx, labels, aoi, gsd)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("year %d: %w", labels.Metadata.Year, ErrNoData)
	}
	counts := make([]int, classify.NumClasses+1)
	for _, c := range cells {
		counts[c.Label]++
	}
	cellHa := agg.PixelAreaHa()
	out := make(Result)
	for l, n := range counts {
		if n > 0 {
			out[l] = float64(n) * cellHa
		}
	}
	return out, nil
}
