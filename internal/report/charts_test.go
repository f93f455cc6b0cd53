package report

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/landcover.report/internal/change"
	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/trend"
)

func sampleRows() []trend.Row {
	return []trend.Row{
		{Year: 2000, Class: classify.Vegetation, ClassName: "Vegetation", AreaHa: 12.5},
		{Year: 2000, Class: classify.Water, ClassName: "Water", AreaHa: 3},
		{Year: 2010, Class: classify.Vegetation, ClassName: "Vegetation", AreaHa: 10},
		{Year: 2010, Class: classify.UrbanArea, ClassName: "Urban Area", AreaHa: 5.5},
	}
}

func TestClassColour(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, ClassColour(classify.UrbanArea))
	assert.Equal(t, color.RGBA{R: 0x0d, G: 0xb2, B: 0x1f, A: 0xff}, ClassColour(classify.Vegetation))
	assert.Equal(t, color.RGBA{A: 0xff}, ClassColour(classify.Unclassified))
	assert.Equal(t, uint8(0x80), ClassColour(42).R)
	assert.Equal(t, "#979a5d", classHex(classify.Bare))
}

func TestTrendHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TrendHTML(&buf, "Land cover trend", sampleRows()))
	out := buf.String()
	assert.Contains(t, out, "Land cover trend")
	assert.Contains(t, out, "Vegetation")
	assert.Contains(t, out, "Urban Area")
	assert.Contains(t, out, "#0db21f")
	assert.Contains(t, out, AssetsHost)
}

func TestTrendHTMLEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, TrendHTML(&buf, "empty", nil), ErrNothingToPlot)
	assert.Zero(t, buf.Len())
}

func TestTransitionsHTML(t *testing.T) {
	report := &change.Report{
		Year1: 2000,
		Year2: 2020,
		Transitions: []change.TransitionRecord{
			{From: 1, To: 3, AreaHa: 9},
			{From: 2, To: 2, AreaHa: 4},
			{From: 4, To: 3, AreaHa: 1},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, TransitionsHTML(&buf, report, 2))
	out := buf.String()
	assert.Contains(t, out, "Vegetation → Urban Area")
	assert.Contains(t, out, "Water → Water")
	assert.NotContains(t, out, "Cultivation → Urban Area")
	assert.Contains(t, out, "largest 2 of 3")

	assert.ErrorIs(t, TransitionsHTML(&buf, nil, 5), ErrNothingToPlot)
	assert.ErrorIs(t, TransitionsHTML(&buf, &change.Report{}, 5), ErrNothingToPlot)
}

func TestTrendPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TrendPNG(&buf, "trend", sampleRows()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")))

	assert.ErrorIs(t, TrendPNG(&buf, "trend", []trend.Row{}), ErrNothingToPlot)
}

func TestTrendPlotLegend(t *testing.T) {
	p, err := TrendPlot("trend", sampleRows())
	require.NoError(t, err)
	assert.Equal(t, "Year", p.X.Label.Text)
	assert.True(t, p.Legend.Top)
	assert.False(t, p.Legend.Left)
}

func TestSaveTrendPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trend.png")
	require.NoError(t, SaveTrendPNG(path, "trend", sampleRows()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
