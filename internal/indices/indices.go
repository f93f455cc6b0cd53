// Package indices appends the six spectral index bands to a reflectance
// composite.
package indices

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/sensor"
)

// ErrPlaceholder is returned when band arithmetic is attempted on a
// placeholder composite.
var ErrPlaceholder = errors.New("index computation on placeholder raster")

// Index band names.
const (
	NDVI  = "NDVI"
	EVI   = "EVI"
	NDBI  = "NDBI"
	MNDWI = "MNDWI"
	BSI   = "BSI"
	UI    = "UI"
)

// Names lists the index bands in the order Compute appends them.
var Names = []string{NDVI, EVI, NDBI, MNDWI, BSI, UI}

// FeatureBands is the full ordered band list of an indexed composite.
var FeatureBands = append(append([]string(nil), sensor.ReflectanceBands...), Names...)

// formula computes one index from a reflectance vector in canonical band
// order. ok is false for indeterminate results.
type formula func(r [6]float64) (float64, bool)

const (
	blue = iota
	green
	red
	nir
	swir1
	swir2
)

var formulas = map[string]formula{
	NDVI: func(r [6]float64) (float64, bool) {
		return ratio(r[nir]-r[red], r[nir]+r[red])
	},
	EVI: func(r [6]float64) (float64, bool) {
		return ratio(2.5*(r[nir]-r[red]), r[nir]+6*r[red]-7.5*r[blue]+1)
	},
	NDBI: func(r [6]float64) (float64, bool) {
		return ratio(r[swir1]-r[nir], r[swir1]+r[nir])
	},
	MNDWI: func(r [6]float64) (float64, bool) {
		return ratio(r[green]-r[swir1], r[green]+r[swir1])
	},
	BSI: func(r [6]float64) (float64, bool) {
		a := r[swir2] + r[red]
		b := r[nir] + r[blue]
		return ratio(a-b, a+b)
	},
	// UI shares the NDBI formula.
	UI: func(r [6]float64) (float64, bool) {
		return ratio(r[swir1]-r[nir], r[swir1]+r[nir])
	},
}

func ratio(num, den float64) (float64, bool) {
	if den == 0 {
		return 0, false
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Compute returns a new image with the six index bands appended after the
// reflectance bands. A pixel is masked on an index band when any operand
// is masked or the result is indeterminate.
func Compute(im *raster.Image) (*raster.Image, error) {
	if im == nil {
		return nil, fmt.Errorf("nil image")
	}
	if im.Placeholder {
		return nil, fmt.Errorf("year %d: %w", im.Metadata.Year, ErrPlaceholder)
	}
	base, err := im.Select(sensor.ReflectanceBands...)
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", im.Metadata.Year, err)
	}
	n := im.Grid.Len()
	out := make([]raster.Band, len(Names))
	for k, name := range Names {
		out[k] = raster.NewBand(name, n)
	}
	var vec [6]float64
	for i := 0; i < n; i++ {
		if !base.Vector(i, sensor.ReflectanceBands, vec[:]) {
			continue
		}
		for k, name := range Names {
			if v, ok := formulas[name](vec); ok {
				out[k].Values[i] = v
				out[k].Valid[i] = true
			}
		}
	}
	return base.AddBands(out...)
}
