// Package inspect summarises the neighbourhood of a point on the year under
// inspection: the modal class and the mean of each index band.
package inspect

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/indices"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

// Result describes one inspected point. An index is nil when no pixel of
// the neighbourhood has a valid value for it.
type Result struct {
	Year      int      `json:"year"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Class     int      `json:"class"`
	ClassName string   `json:"class_name"`
	Pixels    int      `json:"pixels"`
	NDVI      *float64 `json:"ndvi"`
	NDBI      *float64 `json:"ndbi"`
	MNDWI     *float64 `json:"mndwi"`
	EVI       *float64 `json:"evi"`
	BSI       *float64 `json:"bsi"`
	UI        *float64 `json:"ui"`
}

// Inspector reads neighbourhoods of radius gsd metres inside the AOI.
type Inspector struct {
	aoi *geo.AOI
	gsd float64
}

// New returns an inspector.
func New(aoi *geo.AOI, gsd float64) *Inspector {
	return &Inspector{aoi: aoi, gsd: gsd}
}

// Inspect summarises the pixels of labels and comp whose centres lie in the
// square x±gsd, y±gsd and inside the AOI. comp may be a placeholder, in
// which case every index is unavailable. The result is zonal.ErrNoData when
// the point is outside the AOI or no label in the neighbourhood is valid.
func (in *Inspector) Inspect(labels, comp *raster.Image, x, y float64) (*Result, error) {
	if labels == nil || labels.BandCount() == 0 {
		return nil, fmt.Errorf("no labelled raster to inspect")
	}
	year := labels.Metadata.Year
	if !in.aoi.Contains(x, y) {
		return nil, fmt.Errorf("point (%.1f, %.1f) is outside the aoi: %w", x, y, zonal.ErrNoData)
	}

	pixels := in.neighbourhood(labels.Grid, x, y)
	res := &Result{Year: year, X: x, Y: y, Pixels: len(pixels)}

	label := labels.Bands()[0]
	counts := make([]int, classify.NumClasses+1)
	classified := 0
	for _, i := range pixels {
		if v, ok := label.At(i); ok && classify.ValidLabel(int(v)) {
			counts[int(v)]++
			classified++
		}
	}
	if classified == 0 {
		return nil, fmt.Errorf("year %d at (%.1f, %.1f): %w", year, x, y, zonal.ErrNoData)
	}
	res.Class = modal(counts)
	res.ClassName = classify.ClassName(res.Class)

	if comp != nil && !comp.Placeholder && comp.Grid.Equal(labels.Grid) {
		targets := map[string]**float64{
			indices.NDVI: &res.NDVI, indices.NDBI: &res.NDBI, indices.MNDWI: &res.MNDWI,
			indices.EVI: &res.EVI, indices.BSI: &res.BSI, indices.UI: &res.UI,
		}
		for _, name := range indices.Names {
			b, ok := comp.Band(name)
			if !ok {
				continue
			}
			if m, ok := meanOf(b, pixels); ok {
				*targets[name] = &m
			}
		}
	}

	return res, nil
}

func (in *Inspector) neighbourhood(g raster.Grid, x, y float64) []int {
	mask := in.aoi.Mask(g)
	var out []int
	for i := 0; i < g.Len(); i++ {
		cx, cy := g.Centre(i)
		if cx < x-in.gsd || cx > x+in.gsd || cy < y-in.gsd || cy > y+in.gsd {
			continue
		}
		if mask[i] {
			out = append(out, i)
		}
	}
	return out
}

// modal returns the most frequent label, ties to the lowest.
func modal(counts []int) int {
	best, bestN := 0, 0
	for l := 1; l < len(counts); l++ {
		if counts[l] > bestN {
			best, bestN = l, counts[l]
		}
	}
	return best
}

func meanOf(b raster.Band, pixels []int) (float64, bool) {
	vals := make([]float64, 0, len(pixels))
	for _, i := range pixels {
		if v, ok := b.At(i); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	return stat.Mean(vals, nil), true
}
