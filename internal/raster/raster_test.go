package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() Grid {
	return Grid{Width: 4, Height: 3, OriginX: 1000, OriginY: 2000, PixelSize: 30}
}

func TestGridIndexAndCentre(t *testing.T) {
	g := testGrid()

	x, y := g.Centre(0)
	assert.Equal(t, 1015.0, x)
	assert.Equal(t, 1985.0, y)

	i, ok := g.Index(x, y)
	require.True(t, ok)
	assert.Equal(t, 0, i)

	// last pixel
	x, y = g.Centre(g.Len() - 1)
	i, ok = g.Index(x, y)
	require.True(t, ok)
	assert.Equal(t, g.Len()-1, i)

	_, ok = g.Index(999, 1990)
	assert.False(t, ok, "west of the grid")
	_, ok = g.Index(1010, 2001)
	assert.False(t, ok, "north of the grid")
}

func TestGridForBoundsCoversExtent(t *testing.T) {
	g, err := NewGridForBounds(0, 0, 95, 61, 30)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Width)
	assert.Equal(t, 3, g.Height)
	assert.Equal(t, 61.0, g.OriginY)

	_, err = NewGridForBounds(0, 0, 0, 10, 30)
	assert.Error(t, err)
	_, err = NewGridForBounds(0, 0, 10, 10, 0)
	assert.Error(t, err)
}

func TestGridPixelArea(t *testing.T) {
	g := testGrid()
	assert.InDelta(t, 0.09, g.PixelAreaHa(), 1e-12)
	assert.InDelta(t, 9.0, 100*g.PixelAreaHa(), 1e-9)
}

func TestGridGeoTransformRoundTrip(t *testing.T) {
	g := testGrid()
	back, err := GridFromGeoTransform(g.GeoTransform(), g.Width, g.Height)
	require.NoError(t, err)
	assert.True(t, g.Equal(back))

	_, err = GridFromGeoTransform([6]float64{0, 30, 1, 0, 0, -30}, 2, 2)
	assert.Error(t, err)
}

func TestImageAddBandsRejectsDuplicatesAndSizeMismatch(t *testing.T) {
	g := testGrid()
	im := NewImage(g, Metadata{Year: 2020})

	withRed, err := im.AddBands(ConstantBand("Red", g.Len(), 0.1))
	require.NoError(t, err)
	assert.Equal(t, 0, im.BandCount(), "input must not be mutated")
	assert.Equal(t, []string{"Red"}, withRed.BandNames())

	_, err = withRed.AddBands(ConstantBand("Red", g.Len(), 0.2))
	assert.Error(t, err)

	_, err = withRed.AddBands(ConstantBand("NIR", 2, 0.2))
	assert.Error(t, err)
}

func TestImageSelectAndVector(t *testing.T) {
	g := testGrid()
	im, err := NewImage(g, Metadata{Year: 2020}).AddBands(
		ConstantBand("A", g.Len(), 1),
		ConstantBand("B", g.Len(), 2),
	)
	require.NoError(t, err)

	sel, err := im.Select("B", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, sel.BandNames())

	_, err = im.Select("C")
	assert.ErrorIs(t, err, ErrBandNotFound)

	dst := make([]float64, 2)
	require.True(t, im.Vector(3, []string{"B", "A"}, dst))
	assert.Equal(t, []float64{2, 1}, dst)
	assert.False(t, im.Vector(3, []string{"C"}, dst))
}

func TestImageClipDoesNotMutateInput(t *testing.T) {
	g := testGrid()
	im, err := NewImage(g, Metadata{}).AddBands(ConstantBand("A", g.Len(), 1))
	require.NoError(t, err)

	keep := make([]bool, g.Len())
	keep[0] = true
	clipped, err := im.Clip(keep)
	require.NoError(t, err)

	a, _ := clipped.Band("A")
	assert.Equal(t, 1, a.ValidCount())
	orig, _ := im.Band("A")
	assert.Equal(t, g.Len(), orig.ValidCount())
	assert.True(t, clipped.ValidAt(0))
	assert.False(t, clipped.ValidAt(1))
}

func TestPlaceholderIsSingleZeroBand(t *testing.T) {
	g := testGrid()
	p := NewPlaceholder(g, Metadata{Year: 1990}, "Blue")
	assert.True(t, p.Placeholder)
	assert.Equal(t, []string{"Blue"}, p.BandNames())
	b, _ := p.Band("Blue")
	for i := range b.Values {
		assert.Zero(t, b.Values[i])
	}
}

func TestCollectionOrderingAndDuplicates(t *testing.T) {
	g := testGrid()
	c, err := NewCollection(
		NewImage(g, Metadata{Year: 2020}),
		NewImage(g, Metadata{Year: 1995}),
		NewImage(g, Metadata{Year: 2005}),
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1995, 2005, 2020}, c.Years())

	err = c.Add(NewImage(g, Metadata{Year: 2005}))
	assert.ErrorIs(t, err, ErrDuplicateYear)
	assert.Equal(t, 3, c.Len())

	im, ok := c.Get(2005)
	require.True(t, ok)
	assert.Equal(t, 2005, im.Metadata.Year)
	_, ok = c.Get(2010)
	assert.False(t, ok)

	var empty *Collection
	assert.Zero(t, empty.Len())
	assert.Nil(t, empty.Years())
}
