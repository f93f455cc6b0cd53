package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/landcover.report/internal/raster"
)

// ErrMissingBand is returned when a raw scene lacks a band its family needs.
var ErrMissingBand = errors.New("scene is missing a required band")

// Family identifies a sensor family with its own band layout, scaling and
// quality flag semantics.
type Family string

const (
	// LandsatTM is Landsat 5 Thematic Mapper collection 2 level 2.
	LandsatTM Family = "landsat_tm"
	// LandsatETM is Landsat 7 Enhanced Thematic Mapper Plus.
	LandsatETM Family = "landsat_etm"
	// LandsatOLI is Landsat 8 Operational Land Imager.
	LandsatOLI Family = "landsat_oli"
	// Sentinel2 is Sentinel-2 MSI harmonised surface reflectance.
	Sentinel2 Family = "sentinel2"
)

// Canonical reflectance band names.
const (
	Blue  = "Blue"
	Green = "Green"
	Red   = "Red"
	NIR   = "NIR"
	SWIR1 = "SWIR1"
	SWIR2 = "SWIR2"
)

// ReflectanceBands is the common band schema every adapter produces.
var ReflectanceBands = []string{Blue, Green, Red, NIR, SWIR1, SWIR2}

// Quality band names.
const (
	LandsatQABand         = "QA_PIXEL"
	LandsatSaturationBand = "QA_RADSAT"
	SentinelQABand        = "QA60"
)

// Families lists every supported family.
var Families = []Family{LandsatTM, LandsatETM, LandsatOLI, Sentinel2}

// ParseFamily validates a family name.
func ParseFamily(s string) (Family, error) {
	for _, f := range Families {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sensor family %q", s)
}

// Scene is one raw acquisition as delivered by a scene source. Image holds
// the sensor-specific bands (including quality bands) as raw digital numbers
// on the study grid.
type Scene struct {
	ID         string
	Family     Family
	Acquired   time.Time
	CloudCover float64 // percent of the scene flagged cloudy by the provider
	Image      *raster.Image
}

// Adapter converts a raw scene into a masked reflectance image.
type Adapter interface {
	Family() Family
	// Adapt returns a new image with ReflectanceBands in [0,1]. Low-quality
	// pixels are masked, not zero-filled.
	Adapt(scene Scene) (*raster.Image, error)
}

// AdapterFor returns the adapter for a family.
func AdapterFor(f Family) (Adapter, error) {
	switch f {
	case LandsatTM, LandsatETM:
		return &landsatAdapter{family: f, raw: []string{"SR_B1", "SR_B2", "SR_B3", "SR_B4", "SR_B5", "SR_B7"}}, nil
	case LandsatOLI:
		return &landsatAdapter{family: f, raw: []string{"SR_B2", "SR_B3", "SR_B4", "SR_B5", "SR_B6", "SR_B7"}}, nil
	case Sentinel2:
		return &sentinelAdapter{raw: []string{"B2", "B3", "B4", "B8", "B11", "B12"}}, nil
	default:
		return nil, fmt.Errorf("no adapter for sensor family %q", f)
	}
}

// RawBands returns the sensor-specific band names mapped onto
// ReflectanceBands, in the same order, plus the quality bands read.
func RawBands(f Family) (reflectance []string, quality []string, err error) {
	a, err := AdapterFor(f)
	if err != nil {
		return nil, nil, err
	}
	switch v := a.(type) {
	case *landsatAdapter:
		return v.raw, []string{LandsatQABand, LandsatSaturationBand}, nil
	case *sentinelAdapter:
		return v.raw, []string{SentinelQABand}, nil
	}
	return nil, nil, fmt.Errorf("no band layout for %q", f)
}

// Landsat collection 2 level 2 surface reflectance scaling.
const (
	landsatScale  = 0.0000275
	landsatOffset = -0.2

	// Fill, dilated cloud, cirrus, cloud and cloud shadow occupy the five
	// low-order bits of QA_PIXEL.
	landsatQAMask = 0b11111

	sentinelScale      = 1.0 / 10000.0
	sentinelCloudBit   = 1 << 10
	sentinelCirrusBit  = 1 << 11
	sentinelQAMaskBits = sentinelCloudBit | sentinelCirrusBit
)

type landsatAdapter struct {
	family Family
	raw    []string
}

func (a *landsatAdapter) Family() Family { return a.family }

func (a *landsatAdapter) Adapt(scene Scene) (*raster.Image, error) {
	qa, err := requireBand(scene, LandsatQABand)
	if err != nil {
		return nil, err
	}
	sat, err := requireBand(scene, LandsatSaturationBand)
	if err != nil {
		return nil, err
	}
	n := scene.Image.Grid.Len()
	keep := make([]bool, n)
	for i := 0; i < n; i++ {
		q, qok := qa.At(i)
		s, sok := sat.At(i)
		keep[i] = qok && sok && int64(q)&landsatQAMask == 0 && s == 0
	}
	return remap(scene, a.raw, keep, func(v float64) float64 {
		return v*landsatScale + landsatOffset
	})
}

type sentinelAdapter struct {
	raw []string
}

func (a *sentinelAdapter) Family() Family { return Sentinel2 }

func (a *sentinelAdapter) Adapt(scene Scene) (*raster.Image, error) {
	qa, err := requireBand(scene, SentinelQABand)
	if err != nil {
		return nil, err
	}
	n := scene.Image.Grid.Len()
	keep := make([]bool, n)
	for i := 0; i < n; i++ {
		q, ok := qa.At(i)
		keep[i] = ok && int64(q)&sentinelQAMaskBits == 0
	}
	return remap(scene, a.raw, keep, func(v float64) float64 {
		return v * sentinelScale
	})
}

func requireBand(scene Scene, name string) (raster.Band, error) {
	if scene.Image == nil {
		return raster.Band{}, fmt.Errorf("scene %s has no image: %w", scene.ID, ErrMissingBand)
	}
	b, ok := scene.Image.Band(name)
	if !ok {
		return raster.Band{}, fmt.Errorf("scene %s band %s: %w", scene.ID, name, ErrMissingBand)
	}
	return b, nil
}

// remap builds the reflectance image: raw[k] becomes ReflectanceBands[k],
// scaled and clamped to [0,1], masked wherever keep is false.
func remap(scene Scene, raw []string, keep []bool, scale func(float64) float64) (*raster.Image, error) {
	n := scene.Image.Grid.Len()
	bands := make([]raster.Band, len(raw))
	for k, name := range raw {
		src, err := requireBand(scene, name)
		if err != nil {
			return nil, err
		}
		dst := raster.NewBand(ReflectanceBands[k], n)
		for i := 0; i < n; i++ {
			v, ok := src.At(i)
			if !ok || !keep[i] {
				continue
			}
			dst.Values[i] = clamp01(scale(v))
			dst.Valid[i] = true
		}
		bands[k] = dst
	}
	meta := raster.Metadata{Year: scene.Acquired.Year(), SeasonStart: scene.Acquired, SeasonEnd: scene.Acquired}
	return raster.NewImage(scene.Image.Grid, meta).AddBands(bands...)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
