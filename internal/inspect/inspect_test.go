package inspect

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/indices"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/testutil"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

// indexImage returns a composite whose NDVI is the pixel index and whose
// other index bands are fully masked.
func indexImage(t *testing.T, g raster.Grid) *raster.Image {
	t.Helper()
	var bands []raster.Band
	for _, name := range indices.Names {
		b := raster.NewBand(name, g.Len())
		if name == indices.NDVI {
			for i := range b.Values {
				b.Values[i] = float64(i)
				b.Valid[i] = true
			}
		}
		bands = append(bands, b)
	}
	im, err := raster.NewImage(g, raster.Metadata{Year: 2020}).AddBands(bands...)
	require.NoError(t, err)
	return im
}

func TestInspectModeAndMeans(t *testing.T) {
	g := testutil.Grid(3, 3)
	labels := testutil.LabelImage(t, g, 2020, []int{
		2, 2, 1,
		1, 1, 3,
		2, -1, 3,
	})
	in := New(testutil.GridAOI(t, g), 30)

	// centre pixel: the neighbourhood is the whole 3x3 grid
	res, err := in.Inspect(labels, indexImage(t, g), 45, 45)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Pixels)
	// 1 and 2 both appear three times; the lower label wins
	assert.Equal(t, 1, res.Class)
	assert.Equal(t, "Vegetation", res.ClassName)
	require.NotNil(t, res.NDVI)
	assert.InDelta(t, 4.0, *res.NDVI, 1e-12)
	assert.Nil(t, res.EVI)
	assert.Nil(t, res.UI)

	// corner pixel: 2x2 neighbourhood {0,1,3,4}
	res, err = in.Inspect(labels, indexImage(t, g), 15, 75)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Pixels)
	assert.Equal(t, 1, res.Class)
	assert.InDelta(t, 2.0, *res.NDVI, 1e-12)
}

func TestInspectPlaceholderComposite(t *testing.T) {
	g := testutil.Grid(2, 2)
	labels := testutil.LabelImage(t, g, 2020, []int{4, 4, 4, 4})
	in := New(testutil.GridAOI(t, g), 30)
	res, err := in.Inspect(labels, raster.NewPlaceholder(g, raster.Metadata{Year: 2020}, "Blue"), 30, 30)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Class)
	assert.Nil(t, res.NDVI)
}

func TestInspectNoData(t *testing.T) {
	g := testutil.Grid(2, 2)
	in := New(testutil.GridAOI(t, g), 30)

	_, err := in.Inspect(testutil.LabelImage(t, g, 2020, []int{1, 1, 1, 1}), nil, 500, 500)
	assert.ErrorIs(t, err, zonal.ErrNoData, "outside the aoi")

	masked := testutil.LabelImage(t, g, 2020, []int{-1, -1, -1, -1})
	_, err = in.Inspect(masked, nil, 30, 30)
	assert.ErrorIs(t, err, zonal.ErrNoData, "fully masked")

	// index bands are masked per band, so they can outlive every label
	_, err = in.Inspect(masked, indexImage(t, g), 30, 30)
	assert.ErrorIs(t, err, zonal.ErrNoData, "labels masked, indices valid")

	placeholder := raster.NewPlaceholder(g, raster.Metadata{Year: 1990}, "LULC")
	_, err = in.Inspect(placeholder, raster.NewPlaceholder(g, raster.Metadata{Year: 1990}, "Blue"), 30, 30)
	assert.ErrorIs(t, err, zonal.ErrNoData, "placeholder year")

	_, err = in.Inspect(nil, nil, 30, 30)
	assert.Error(t, err)
}

func TestInspectIgnoresPixelsOutsideAOI(t *testing.T) {
	g := testutil.Grid(3, 1)
	aoi, err := geo.NewAOI(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{60, 30}})
	require.NoError(t, err)
	labels := testutil.LabelImage(t, g, 2020, []int{5, 6, 6})
	res, err := New(aoi, 30).Inspect(labels, nil, 45, 15)
	require.NoError(t, err)
	// pixel 2 would make Bare the mode but lies outside the aoi
	assert.Equal(t, 2, res.Pixels)
	assert.Equal(t, 5, res.Class)
}
