// Package trend gathers per-year zonal statistics into one long-format
// (year, class, area) table.
package trend

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

// Row is one (year, class, area) observation.
type Row struct {
	Year      int     `json:"year"`
	Class     int     `json:"class"`
	ClassName string  `json:"class_name"`
	AreaHa    float64 `json:"area_ha"`
}

// Aggregator computes the trend table over a fixed AOI and GSD.
type Aggregator struct {
	aoi         *geo.AOI
	gsd         float64
	concurrency int
}

// NewAggregator returns an aggregator that runs at most concurrency zonal
// computations at once. Values below 1 mean one at a time.
func NewAggregator(aoi *geo.AOI, gsd float64, concurrency int) *Aggregator {
	return &Aggregator{aoi: aoi, gsd: gsd, concurrency: max(1, concurrency)}
}

// Aggregate returns rows for every year of coll, ascending by year and then
// class. A year with no classified pixels contributes no rows. When no
// year yields a row the table is empty and the error is zonal.ErrNoData.
func (a *Aggregator) Aggregate(ctx context.Context, coll *raster.Collection) ([]Row, error) {
	images := coll.Images()
	results := make([]zonal.Result, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, im := range images {
		g.Go(func() error {
			res, err := zonal.Compute(gctx, im, a.aoi, a.gsd)
			if errors.Is(err, zonal.ErrNoData) {
				monitoring.Logf("[trend] year %d: no data", im.Metadata.Year)
				return nil
			}
			if err != nil {
				return fmt.Errorf("year %d: %w", im.Metadata.Year, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := []Row{}
	for i, res := range results {
		for _, c := range res.Classes() {
			rows = append(rows, Row{
				Year:      images[i].Metadata.Year,
				Class:     c,
				ClassName: classify.ClassName(c),
				AreaHa:    res[c],
			})
		}
	}
	if len(rows) == 0 {
		return rows, zonal.ErrNoData
	}
	return rows, nil
}

// Series pivots rows into per-class area series aligned with years, using
// zero where a class is absent. It is meant for charts, never for storage.
func Series(rows []Row) (years []int, byClass map[int][]float64) {
	index := map[int]int{}
	for _, r := range rows {
		if _, ok := index[r.Year]; !ok {
			index[r.Year] = len(years)
			years = append(years, r.Year)
		}
	}
	byClass = map[int][]float64{}
	for _, r := range rows {
		s, ok := byClass[r.Class]
		if !ok {
			s = make([]float64, len(years))
			byClass[r.Class] = s
		}
		s[index[r.Year]] = r.AreaHa
	}
	return years, byClass
}
