package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/landcover.report/internal/sensor"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertStatusCode(t, http.StatusNotFound, http.StatusNotFound)
}

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	AssertNoError(t, nil)
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodGet, "/api/years")
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/years", req.URL.Path)
	assert.NotNil(t, NewTestRecorder())
}

func TestGridAndAOI(t *testing.T) {
	t.Parallel()

	g := Grid(4, 3)
	require.NoError(t, g.Validate())
	assert.Equal(t, 90.0, g.OriginY)

	a := GridAOI(t, g)
	assert.InDelta(t, 12*0.09, a.AreaHa(), 1e-9)
	for _, in := range a.Mask(g) {
		assert.True(t, in)
	}
}

func TestRawSceneRoundTripsThroughAdapter(t *testing.T) {
	t.Parallel()

	g := Grid(2, 2)
	for _, fam := range sensor.Families {
		sc := UniformScene(t, "s", fam, g, Date(2020, 11, 1), 5, WaterSpectrum)
		a, err := sensor.AdapterFor(fam)
		require.NoError(t, err)
		im, err := a.Adapt(sc)
		require.NoError(t, err, fam)
		vec := make([]float64, 6)
		require.True(t, im.Vector(3, sensor.ReflectanceBands, vec))
		for k := range vec {
			assert.InDelta(t, WaterSpectrum[k], vec[k], 1e-9, "%s band %d", fam, k)
		}
	}
}

func TestLabelImageMasksNegatives(t *testing.T) {
	t.Parallel()

	im := LabelImage(t, Grid(3, 1), 2000, []int{1, -1, 0})
	assert.True(t, im.ValidAt(0))
	assert.False(t, im.ValidAt(1))
	assert.True(t, im.ValidAt(2))
	assert.Equal(t, []int{4, 4}, FilledLabels(2, 4))
}
