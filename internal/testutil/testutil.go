// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the synthetic grids, scenes, spectra and labelled
// rasters used across the workflow tests, plus the small HTTP helpers the
// API tests share.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/sensor"
)

// PixelSize is the fixture grid resolution in metres.
const PixelSize = 30.0

// LabelBand names the band of labelled fixture rasters.
const LabelBand = "LULC"

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// Grid returns a w x h grid of 30 m pixels whose south-west corner is the
// origin.
func Grid(w, h int) raster.Grid {
	return raster.Grid{Width: w, Height: h, OriginX: 0, OriginY: float64(h) * PixelSize, PixelSize: PixelSize}
}

// GridAOI returns an AOI covering g exactly.
func GridAOI(t testing.TB, g raster.Grid) *geo.AOI {
	t.Helper()
	minX, minY, maxX, maxY := g.Bounds()
	a, err := geo.NewAOI(orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}})
	if err != nil {
		t.Fatalf("aoi: %v", err)
	}
	return a
}

// Reflectance is one pixel of surface reflectance in canonical band order.
type Reflectance [6]float64

// Typical spectra for the six land-cover classes, in class order.
var (
	VegetationSpectrum  = Reflectance{0.03, 0.06, 0.04, 0.45, 0.20, 0.10}
	WaterSpectrum       = Reflectance{0.06, 0.08, 0.05, 0.02, 0.01, 0.005}
	UrbanSpectrum       = Reflectance{0.12, 0.14, 0.16, 0.22, 0.30, 0.26}
	CultivationSpectrum = Reflectance{0.05, 0.09, 0.08, 0.30, 0.25, 0.15}
	SandSpectrum        = Reflectance{0.25, 0.30, 0.35, 0.40, 0.45, 0.40}
	BareSpectrum        = Reflectance{0.10, 0.13, 0.18, 0.24, 0.32, 0.30}
)

// ClassSpectra maps class label to its fixture spectrum.
var ClassSpectra = map[int]Reflectance{
	1: VegetationSpectrum,
	2: WaterSpectrum,
	3: UrbanSpectrum,
	4: CultivationSpectrum,
	5: SandSpectrum,
	6: BareSpectrum,
}

// RawScene builds a raw scene of family whose adapted reflectance equals
// pixels (one entry per grid pixel) with clean quality bands.
func RawScene(t testing.TB, id string, family sensor.Family, g raster.Grid, acquired time.Time, cloud float64, pixels []Reflectance) sensor.Scene {
	t.Helper()
	if len(pixels) != g.Len() {
		t.Fatalf("scene %s: %d pixels for a %d pixel grid", id, len(pixels), g.Len())
	}
	raw, qa, err := sensor.RawBands(family)
	if err != nil {
		t.Fatalf("scene %s: %v", id, err)
	}
	landsat := family != sensor.Sentinel2
	bands := make([]raster.Band, 0, len(raw)+len(qa))
	for k, name := range raw {
		b := raster.NewBand(name, g.Len())
		for i, px := range pixels {
			if landsat {
				b.Values[i] = (px[k] + 0.2) / 0.0000275
			} else {
				b.Values[i] = px[k] * 10000
			}
			b.Valid[i] = true
		}
		bands = append(bands, b)
	}
	for _, name := range qa {
		bands = append(bands, raster.ConstantBand(name, g.Len(), 0))
	}
	im, err := raster.NewImage(g, raster.Metadata{Year: acquired.Year()}).AddBands(bands...)
	if err != nil {
		t.Fatalf("scene %s: %v", id, err)
	}
	return sensor.Scene{ID: id, Family: family, Acquired: acquired, CloudCover: cloud, Image: im}
}

// UniformScene is RawScene with the same spectrum at every pixel.
func UniformScene(t testing.TB, id string, family sensor.Family, g raster.Grid, acquired time.Time, cloud float64, r Reflectance) sensor.Scene {
	t.Helper()
	pixels := make([]Reflectance, g.Len())
	for i := range pixels {
		pixels[i] = r
	}
	return RawScene(t, id, family, g, acquired, cloud, pixels)
}

// LabelImage builds a single-band labelled raster. Negative labels are
// masked.
func LabelImage(t testing.TB, g raster.Grid, year int, labels []int) *raster.Image {
	t.Helper()
	if len(labels) != g.Len() {
		t.Fatalf("label image: %d labels for a %d pixel grid", len(labels), g.Len())
	}
	b := raster.NewBand(LabelBand, g.Len())
	for i, l := range labels {
		if l < 0 {
			continue
		}
		b.Values[i] = float64(l)
		b.Valid[i] = true
	}
	im, err := raster.NewImage(g, raster.Metadata{Year: year}).AddBands(b)
	if err != nil {
		t.Fatalf("label image: %v", err)
	}
	return im
}

// FilledLabels returns n copies of label.
func FilledLabels(n, label int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = label
	}
	return out
}

// Date is a UTC midnight shorthand.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
