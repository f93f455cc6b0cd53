package db

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/landcover.report/internal/change"
	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := NewDB(filepath.Join(t.TempDir(), "landcover.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func testReport() *classify.Report {
	return &classify.Report{
		Family:        classify.RandomForest,
		ReferenceYear: 2023,
		Bands:         []string{"Blue", "NDVI"},
		TrainSamples:  80,
		TestSamples:   20,
		Dropped:       2,
		Accuracy:      0.95,
		Kappa:         0.9,
		Confusion:     [][]int{{0, 0}, {0, 10}},
	}
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("Expected foreign_keys=1, got %d", foreignKeys)
	}
}

func TestMigrationsAtLatest(t *testing.T) {
	db := newTestDB(t)
	fsys, err := MigrationsFS()
	require.NoError(t, err)

	latest, err := GetLatestMigrationVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	st, err := db.GetMigrationStatus(fsys)
	require.NoError(t, err)
	assert.Equal(t, MigrationStatus{CurrentVersion: 2, LatestVersion: 2, TableExists: true}, st)
	assert.NoError(t, db.CheckMigrations(fsys))
}

func TestMigrateDownThenUp(t *testing.T) {
	db := newTestDB(t)
	fsys, err := MigrationsFS()
	require.NoError(t, err)

	require.NoError(t, db.MigrateDown(fsys))
	v, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)
	assert.Error(t, db.CheckMigrations(fsys))

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='net_delta'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, db.MigrateUp(fsys))
	v, _, err = db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
}

func TestBaselineRefusesWhenApplied(t *testing.T) {
	db := newTestDB(t)
	assert.Error(t, db.BaselineAtVersion(1))
}

func TestBaselineFreshDatabase(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.BaselineAtVersion(1))
	fsys, _ := MigrationsFS()
	v, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)
}

func TestRecordAndGetRun(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordRun(ctx, "run-a", created, []int{2000, 2023}, testReport()))

	got, err := db.GetRun(ctx, "run-a")
	require.NoError(t, err)
	want := Run{
		ID:            "run-a",
		Family:        classify.RandomForest,
		ReferenceYear: 2023,
		Bands:         []string{"Blue", "NDVI"},
		TrainSamples:  80,
		TestSamples:   20,
		Dropped:       2,
		Accuracy:      0.95,
		Kappa:         0.9,
		Confusion:     [][]int{{0, 0}, {0, 10}},
		Years:         []int{2000, 2023},
		CreatedAt:     created,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetRun mismatch (-want +got):\n%s", diff)
	}

	_, err = db.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.Error(t, db.RecordRun(ctx, "run-a", created, nil, testReport()), "duplicate run id")
	assert.Error(t, db.RecordRun(ctx, "run-b", created, nil, nil))
}

func TestListRunsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, db.RecordRun(ctx, id, base.Add(time.Duration(i)*time.Hour), []int{2023}, testReport()))
	}

	runs, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "first", runs[2].ID)

	runs, err = db.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestListRunsEmpty(t *testing.T) {
	db := newTestDB(t)
	runs, err := db.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestRecordZonalReplaces(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.RecordRun(ctx, "r", time.Now(), []int{2000}, testReport()))

	require.NoError(t, db.RecordZonal(ctx, "r", 2000, zonal.Result{1: 10, 2: 5}))
	require.NoError(t, db.RecordZonal(ctx, "r", 2000, zonal.Result{3: 1.5}))
	require.NoError(t, db.RecordZonal(ctx, "r", 2005, zonal.Result{1: 2}))

	stats, err := db.ZonalStats(ctx, "r")
	require.NoError(t, err)
	want := map[int]zonal.Result{2000: {3: 1.5}, 2005: {1: 2}}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("ZonalStats mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordZonalUnknownRun(t *testing.T) {
	db := newTestDB(t)
	err := db.RecordZonal(context.Background(), "nope", 2000, zonal.Result{1: 1})
	assert.Error(t, err, "foreign key")
}

func TestRecordTransitions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.RecordRun(ctx, "r", time.Now(), []int{2000, 2020}, testReport()))

	report := &change.Report{
		Year1: 2000,
		Year2: 2020,
		Transitions: []change.TransitionRecord{
			{From: 1, To: 3, AreaHa: 4.5},
			{From: 2, To: 2, AreaHa: 9},
			{From: 1, To: 1, AreaHa: 4.5},
		},
		NetDelta: map[int]float64{1: -4.5, 3: 4.5},
	}
	require.NoError(t, db.RecordTransitions(ctx, "r", report))
	require.NoError(t, db.RecordTransitions(ctx, "r", report))
	require.NoError(t, db.RecordTransitions(ctx, "r", nil))

	got, err := db.Transitions(ctx, "r", 2000, 2020)
	require.NoError(t, err)
	want := []change.TransitionRecord{
		{From: 2, To: 2, AreaHa: 9},
		{From: 1, To: 1, AreaHa: 4.5},
		{From: 1, To: 3, AreaHa: 4.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Transitions mismatch (-want +got):\n%s", diff)
	}

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM net_delta WHERE run_id = 'r'`).Scan(&n))
	assert.Equal(t, 2, n)

	none, err := db.Transitions(ctx, "r", 2000, 2005)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	var out bytes.Buffer

	require.NoError(t, RunMigrateCommand([]string{"up"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"status"}, path, &out))
	assert.Contains(t, out.String(), "Latest available: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"version", "1"}, path, &out))

	assert.Error(t, RunMigrateCommand(nil, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"sideways"}, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"force"}, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"force", "x"}, path, &out))

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"help"}, path, &out))
	assert.Contains(t, out.String(), "Usage: lulc migrate")
}

func TestServeBackup(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.RecordRun(context.Background(), "r", time.Now(), []int{2023}, testReport()))

	w := httptest.NewRecorder()
	db.serveBackup(w, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3\x00")))
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.AttachAdminRoutes(http.NewServeMux()))
}
