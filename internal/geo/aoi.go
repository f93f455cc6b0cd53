package geo

import (
	"fmt"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/landcover.report/internal/raster"
)

// AOI is the fixed study area every operation clips or aggregates to.
type AOI struct {
	polys orb.MultiPolygon

	mu    sync.Mutex
	masks map[raster.Grid][]bool
}

// NewAOI wraps a Polygon or MultiPolygon.
func NewAOI(g orb.Geometry) (*AOI, error) {
	var mp orb.MultiPolygon
	switch v := g.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{v}
	case orb.MultiPolygon:
		mp = v
	case orb.Bound:
		mp = orb.MultiPolygon{v.ToPolygon()}
	default:
		return nil, fmt.Errorf("aoi must be a polygon or multipolygon, got %T", g)
	}
	if len(mp) == 0 || planar.Area(mp) <= 0 {
		return nil, fmt.Errorf("aoi has no area")
	}
	return &AOI{polys: mp, masks: make(map[raster.Grid][]bool)}, nil
}

// LoadAOI reads a GeoJSON geometry, feature or feature collection from disk.
func LoadAOI(path string) (*AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aoi: %w", err)
	}
	return ParseAOI(data)
}

// ParseAOI decodes GeoJSON. Feature collections are merged into a single
// multipolygon.
func ParseAOI(data []byte) (*AOI, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		var mp orb.MultiPolygon
		for _, f := range fc.Features {
			switch g := f.Geometry.(type) {
			case orb.Polygon:
				mp = append(mp, g)
			case orb.MultiPolygon:
				mp = append(mp, g...)
			}
		}
		return NewAOI(mp)
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return NewAOI(f.Geometry)
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse aoi geojson: %w", err)
	}
	return NewAOI(g.Geometry())
}

// Contains reports whether the point lies inside the AOI.
func (a *AOI) Contains(x, y float64) bool {
	return planar.MultiPolygonContains(a.polys, orb.Point{x, y})
}

// Bound returns the AOI bounding box.
func (a *AOI) Bound() orb.Bound { return a.polys.Bound() }

// AreaHa returns the planar area of the AOI in hectares.
func (a *AOI) AreaHa() float64 { return planar.Area(a.polys) / 10000.0 }

// Geometry returns the AOI as a multipolygon.
func (a *AOI) Geometry() orb.MultiPolygon { return a.polys }

// StudyGrid returns the grid covering the AOI bounds at pixelSize.
func (a *AOI) StudyGrid(pixelSize float64) (raster.Grid, error) {
	b := a.Bound()
	return raster.NewGridForBounds(b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y(), pixelSize)
}

// Mask returns a per-pixel inside/outside mask for g, using pixel centres.
// Masks are cached per grid and must not be modified by callers.
func (a *AOI) Mask(g raster.Grid) []bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m, ok := a.masks[g]; ok {
		return m
	}
	bound := a.Bound()
	m := make([]bool, g.Len())
	for i := range m {
		x, y := g.Centre(i)
		p := orb.Point{x, y}
		if !bound.Contains(p) {
			continue
		}
		m[i] = planar.MultiPolygonContains(a.polys, p)
	}
	a.masks[g] = m
	return m
}
