package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/landcover.report/internal/raster"
)

func rawScene(t *testing.T, family Family, bands map[string][]float64) Scene {
	t.Helper()
	g := raster.Grid{Width: 2, Height: 1, OriginX: 0, OriginY: 30, PixelSize: 30}
	im := raster.NewImage(g, raster.Metadata{})
	for name, vals := range bands {
		b := raster.NewBand(name, g.Len())
		for i, v := range vals {
			b.Values[i] = v
			b.Valid[i] = true
		}
		var err error
		im, err = im.AddBands(b)
		require.NoError(t, err)
	}
	return Scene{ID: "s1", Family: family, Acquired: time.Date(2001, 11, 2, 0, 0, 0, 0, time.UTC), Image: im}
}

func landsatDN(r float64) float64 { return (r + 0.2) / 0.0000275 }

func TestLandsatAdapterScalesAndMasks(t *testing.T) {
	bands := map[string][]float64{
		"SR_B1":     {landsatDN(0.05), landsatDN(0.05)},
		"SR_B2":     {landsatDN(0.08), landsatDN(0.08)},
		"SR_B3":     {landsatDN(0.10), landsatDN(0.10)},
		"SR_B4":     {landsatDN(0.40), landsatDN(0.40)},
		"SR_B5":     {landsatDN(0.20), landsatDN(0.20)},
		"SR_B7":     {0, 80000}, // clamps to 0 and 1
		"QA_PIXEL":  {21824, 21824 | 1<<3},
		"QA_RADSAT": {0, 0},
	}
	a, err := AdapterFor(LandsatTM)
	require.NoError(t, err)
	out, err := a.Adapt(rawScene(t, LandsatTM, bands))
	require.NoError(t, err)

	assert.Equal(t, ReflectanceBands, out.BandNames())
	nir, _ := out.Band(NIR)
	v, ok := nir.At(0)
	require.True(t, ok)
	assert.InDelta(t, 0.40, v, 1e-9)

	swir2, _ := out.Band(SWIR2)
	v, ok = swir2.At(0)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	// pixel 1 carries a cloud bit
	assert.True(t, out.ValidAt(0))
	assert.False(t, out.ValidAt(1))
	assert.Equal(t, 2001, out.Metadata.Year)
}

func TestLandsatSaturationMasks(t *testing.T) {
	bands := map[string][]float64{
		"SR_B2": {8000, 8000}, "SR_B3": {8000, 8000}, "SR_B4": {8000, 8000},
		"SR_B5": {8000, 8000}, "SR_B6": {8000, 8000}, "SR_B7": {8000, 8000},
		"QA_PIXEL":  {0, 0},
		"QA_RADSAT": {0, 4},
	}
	a, err := AdapterFor(LandsatOLI)
	require.NoError(t, err)
	out, err := a.Adapt(rawScene(t, LandsatOLI, bands))
	require.NoError(t, err)
	assert.True(t, out.ValidAt(0))
	assert.False(t, out.ValidAt(1))
}

func TestLandsatHighQABitsDoNotMask(t *testing.T) {
	// bits above the low five (e.g. snow confidence) are ignored
	bands := map[string][]float64{
		"SR_B1": {8000}, "SR_B2": {8000}, "SR_B3": {8000},
		"SR_B4": {8000}, "SR_B5": {8000}, "SR_B7": {8000},
		"QA_PIXEL":  {1 << 6},
		"QA_RADSAT": {0},
	}
	a, _ := AdapterFor(LandsatETM)
	out, err := a.Adapt(rawScene(t, LandsatETM, bands))
	require.NoError(t, err)
	assert.True(t, out.ValidAt(0))
}

func TestSentinelAdapter(t *testing.T) {
	bands := map[string][]float64{
		"B2": {500, 500}, "B3": {800, 800}, "B4": {1000, 1000},
		"B8": {4000, 4000}, "B11": {2000, 2000}, "B12": {12000, 1000},
		"QA60": {0, 1 << 11},
	}
	a, err := AdapterFor(Sentinel2)
	require.NoError(t, err)
	assert.Equal(t, Sentinel2, a.Family())
	out, err := a.Adapt(rawScene(t, Sentinel2, bands))
	require.NoError(t, err)

	red, _ := out.Band(Red)
	v, _ := red.At(0)
	assert.InDelta(t, 0.1, v, 1e-12)
	swir2, _ := out.Band(SWIR2)
	v, _ = swir2.At(0)
	assert.Equal(t, 1.0, v, "reflectance is clamped")
	assert.False(t, out.ValidAt(1), "cirrus bit masks the pixel")
}

func TestAdaptMissingBands(t *testing.T) {
	a, _ := AdapterFor(Sentinel2)
	_, err := a.Adapt(rawScene(t, Sentinel2, map[string][]float64{"B2": {1, 1}}))
	assert.ErrorIs(t, err, ErrMissingBand)

	_, err = a.Adapt(rawScene(t, Sentinel2, map[string][]float64{"QA60": {0, 0}}))
	assert.ErrorIs(t, err, ErrMissingBand)

	_, err = a.Adapt(Scene{ID: "empty"})
	assert.ErrorIs(t, err, ErrMissingBand)
}

func TestParseFamilyAndRawBands(t *testing.T) {
	f, err := ParseFamily("landsat_oli")
	require.NoError(t, err)
	assert.Equal(t, LandsatOLI, f)
	_, err = ParseFamily("modis")
	assert.Error(t, err)

	refl, qa, err := RawBands(Sentinel2)
	require.NoError(t, err)
	assert.Equal(t, []string{"B2", "B3", "B4", "B8", "B11", "B12"}, refl)
	assert.Equal(t, []string{SentinelQABand}, qa)

	_, err = AdapterFor("modis")
	assert.Error(t, err)
}
