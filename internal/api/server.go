package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/banshee-data/landcover.report/internal/change"
	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/db"
	"github.com/banshee-data/landcover.report/internal/export"
	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/httputil"
	"github.com/banshee-data/landcover.report/internal/inspect"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/session"
	"github.com/banshee-data/landcover.report/internal/trend"
	"github.com/banshee-data/landcover.report/internal/workflow"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

var (
	// ErrTrainingInProgress is returned when a second training request
	// arrives before the first finishes.
	ErrTrainingInProgress = errors.New("training already in progress")
	// ErrExportsDisabled is returned when the server has no exporter.
	ErrExportsDisabled = errors.New("exports are not enabled")
)

// errorStatus maps domain errors onto HTTP status codes.
var errorStatus = []httputil.ErrorStatus{
	{Err: change.ErrInvalidRange, Status: http.StatusBadRequest},
	{Err: workflow.ErrYearNotConfigured, Status: http.StatusNotFound},
	{Err: zonal.ErrNoData, Status: http.StatusNotFound},
	{Err: db.ErrRunNotFound, Status: http.StatusNotFound},
	{Err: session.ErrModelNotTrained, Status: http.StatusConflict},
	{Err: session.ErrNoCurrentYear, Status: http.StatusConflict},
	{Err: ErrTrainingInProgress, Status: http.StatusConflict},
	{Err: classify.ErrModelNotTrainable, Status: http.StatusUnprocessableEntity},
	{Err: classify.ErrNoTestSamples, Status: http.StatusUnprocessableEntity},
	{Err: workflow.ErrEmptyCollection, Status: http.StatusUnprocessableEntity},
	{Err: export.ErrPlaceholder, Status: http.StatusUnprocessableEntity},
	{Err: export.ErrQueueFull, Status: http.StatusServiceUnavailable},
	{Err: export.ErrStopped, Status: http.StatusServiceUnavailable},
	{Err: ErrExportsDisabled, Status: http.StatusServiceUnavailable},
	{Err: context.Canceled, Status: http.StatusServiceUnavailable},
}

// Engine is the workflow surface the server drives.
type Engine interface {
	Years() []int
	Options() workflow.Options
	Session() *session.Session
	Train(ctx context.Context, samples []geo.Sample, progress workflow.ProgressFunc) (*session.State, error)
	SelectYear(year int) (*session.YearView, error)
	Zonal(ctx context.Context, year int) (zonal.Result, error)
	Change(ctx context.Context, year1, year2 int) (*change.Report, error)
	Trend(ctx context.Context) ([]trend.Row, error)
	Inspect(x, y float64) (*inspect.Result, error)
}

// RunStore lists persisted runs.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
	GetRun(ctx context.Context, runID string) (db.Run, error)
}

// Exporter queues raster exports.
type Exporter interface {
	Labels(labels *raster.Image) (string, error)
	Mask(labels *raster.Image, class int) (string, error)
	Composite(comp *raster.Image) (string, error)
	Status(id string) (export.Status, bool)
	List() []export.Status
}

// Server serves the land-cover queries over JSON.
type Server struct {
	engine  Engine
	samples []geo.Sample
	runs    RunStore
	exports Exporter

	trainMu sync.Mutex
}

// NewServer returns a server that trains on samples. runs and exports may
// be nil.
func NewServer(engine Engine, samples []geo.Sample, runs RunStore, exports Exporter) *Server {
	return &Server{engine: engine, samples: samples, runs: runs, exports: exports}
}

// ServeMux registers every route.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/train", s.train)
	mux.HandleFunc("/api/years", s.listYears)
	mux.HandleFunc("/api/select", s.selectYear)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/change", s.showChange)
	mux.HandleFunc("/api/change/chart", s.showChangeChart)
	mux.HandleFunc("/api/trend", s.showTrend)
	mux.HandleFunc("/api/trend/chart", s.showTrendChart)
	mux.HandleFunc("/api/inspect", s.inspectPoint)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.showRun)
	mux.HandleFunc("/api/exports", s.exportsHandler)
	mux.HandleFunc("/api/exports/{id}", s.showExport)
	return mux
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err, errorStatus)
}
