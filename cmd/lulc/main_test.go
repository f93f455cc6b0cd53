package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/landcover.report/internal/change"
	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/config"
	"github.com/banshee-data/landcover.report/internal/db"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/trend"
	"github.com/banshee-data/landcover.report/internal/units"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

func init() { monitoring.SetLogger(nil) }

func TestEngineOptionsFromDefaults(t *testing.T) {
	opts, err := engineOptions(config.EmptyWorkflowConfig())
	require.NoError(t, err)
	assert.Equal(t, []int{1995, 2000, 2005, 2010, 2015, 2020, 2023, 2025}, opts.Years)
	assert.Equal(t, 2023, opts.ReferenceYear)
	assert.Equal(t, 30.0, opts.GSD)
	assert.Equal(t, classify.RandomForest, opts.Family)
	assert.Equal(t, classify.DefaultParams(), opts.Params)
	assert.Equal(t, 0.8, opts.TrainFraction)
}

func TestEngineOptionsRejectsUnknownClassifier(t *testing.T) {
	name := "knn"
	cfg := config.EmptyWorkflowConfig()
	cfg.Classifier = &name
	_, err := engineOptions(cfg)
	assert.Error(t, err)
}

func TestLoadSamplesPoolsFiles(t *testing.T) {
	dir := t.TempDir()
	veg := filepath.Join(dir, "veg.geojson")
	water := filepath.Join(dir, "water.geojson")
	require.NoError(t, os.WriteFile(veg, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"class":1},"geometry":{"type":"Point","coordinates":[10,20]}},
		{"type":"Feature","properties":{"class":1},"geometry":{"type":"Point","coordinates":[11,21]}}]}`), 0644))
	require.NoError(t, os.WriteFile(water, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"class":2},"geometry":{"type":"Point","coordinates":[30,40]}}]}`), 0644))

	samples, err := loadSamples([]string{veg, water})
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, 1, samples[0].Class)
	assert.Equal(t, 2, samples[2].Class)

	_, err = loadSamples(nil)
	assert.Error(t, err)
	_, err = loadSamples([]string{filepath.Join(dir, "missing.geojson")})
	assert.Error(t, err)
}

func TestResolveConfigFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte("years: [2000, 1995]\nreference_year: 2000\n"), 0644))
	t.Setenv(envConfig, path)
	t.Setenv(envDB, filepath.Join(dir, "runs.db"))

	cfg, err := resolveConfig()
	require.NoError(t, err)
	assert.Equal(t, []int{1995, 2000}, cfg.GetYears())
	assert.Equal(t, filepath.Join(dir, "runs.db"), cfg.GetDBPath())
}

func TestRunVersionAndHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), "version", nil, &out))
	assert.Contains(t, out.String(), "lulc dev")

	out.Reset()
	require.NoError(t, run(context.Background(), "help", nil, &out))
	assert.Contains(t, out.String(), "LULC_CONFIG")

	assert.Error(t, run(context.Background(), "bogus", nil, &out))
}

func TestChangeRangeCheckedBeforeLoading(t *testing.T) {
	// the config points nowhere, so only the range check can fail first
	t.Setenv(envConfig, filepath.Join(t.TempDir(), "absent.json"))
	err := handleChange(context.Background(), []string{"-from", "2020", "-to", "2010"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, change.ErrInvalidRange)
}

func TestStatsRequiresYear(t *testing.T) {
	err := handleStats(context.Background(), nil, &bytes.Buffer{})
	assert.EqualError(t, err, "-year is required")

	err = handleStats(context.Background(), []string{"-year", "2015", "-units", "mph"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown area unit")
}

func TestMigrateAndRunsLocal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envConfig, "")
	t.Setenv(envDB, filepath.Join(dir, "landcover.db"))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), "migrate", []string{"up"}, &out))
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, handleRuns(context.Background(), nil, &out))
	assert.Equal(t, "no runs recorded\n", out.String())

	database, err := db.NewDB(filepath.Join(dir, "landcover.db"))
	require.NoError(t, err)
	err = database.RecordRun(context.Background(), "run-1", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), []int{1995, 2015}, &classify.Report{
		Family: classify.CART, ReferenceYear: 2015, Accuracy: 0.9, Kappa: 0.85,
	})
	require.NoError(t, err)
	require.NoError(t, database.Close())

	out.Reset()
	require.NoError(t, handleRuns(context.Background(), []string{"-limit", "5"}, &out))
	assert.Contains(t, out.String(), "run-1")
	assert.Contains(t, out.String(), "2026-02-01T00:00:00Z")
	assert.Contains(t, out.String(), "0.9000")
}

func TestRunsFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/runs", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"run_id":"remote","family":"svm","reference_year":2023,"created_at":"2026-03-04T05:06:07Z"}]`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, handleRuns(context.Background(), []string{"-server", srv.URL, "-limit", "3"}, &out))
	assert.Contains(t, out.String(), "remote")
	assert.Contains(t, out.String(), "svm")
}

func TestWriters(t *testing.T) {
	var out bytes.Buffer
	writeZonal(&out, 2015, zonal.Result{classify.Vegetation: 1.8, classify.Water: 0.9}, units.Hectare)
	assert.Contains(t, out.String(), "Vegetation")
	assert.Contains(t, out.String(), "area_ha")
	assert.Contains(t, out.String(), "2.70")

	out.Reset()
	writeZonal(&out, 2015, zonal.Result{classify.Vegetation: 150}, units.SqKm)
	assert.Contains(t, out.String(), "area_km2")
	assert.Contains(t, out.String(), "1.50")

	out.Reset()
	rep := &change.Report{
		Year1: 1995, Year2: 2015,
		Transitions: []change.TransitionRecord{
			{From: classify.Vegetation, To: classify.UrbanArea, AreaHa: 3.6},
			{From: classify.Water, To: classify.Water, AreaHa: 1.8},
		},
		NetDelta: map[int]float64{classify.Vegetation: -3.6, classify.UrbanArea: 3.6},
		NoData:   []int{1995},
	}
	writeChange(&out, rep, 1, units.Hectare)
	s := out.String()
	assert.Contains(t, s, "warning: 1995 has no classified pixels")
	assert.Contains(t, s, "2 transitions above 0.1 ha, showing 1")
	assert.Contains(t, s, "Urban Area")
	assert.Contains(t, s, "+3.60")
	assert.Contains(t, s, "-3.60")

	out.Reset()
	writeTrend(&out, []trend.Row{{Year: 2000, Class: 1, ClassName: "Vegetation", AreaHa: 12.5}}, units.Hectare)
	assert.Contains(t, out.String(), "12.50")

	out.Reset()
	writeTrainReport(&out, "abc", &classify.Report{
		Family: classify.CART, ReferenceYear: 2023, Accuracy: 1, Kappa: 1,
		Confusion: [][]int{{2, 0, 0, 0, 0, 0}},
	})
	assert.Contains(t, out.String(), "run abc")
	assert.Contains(t, out.String(), "accuracy 1.0000")
}

func TestWriteFileStaysInAllowedDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "change.html")
	require.NoError(t, writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "<html></html>")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))

	err = writeFile("/etc/lulc-change.html", func(io.Writer) error { return nil })
	assert.Error(t, err)
}
