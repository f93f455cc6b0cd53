package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/landcover.report/internal/change"
	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/export"
	"github.com/banshee-data/landcover.report/internal/httputil"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/report"
	"github.com/banshee-data/landcover.report/internal/trend"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

// TrainResponse reports a committed run.
type TrainResponse struct {
	RunID       string           `json:"run_id"`
	CommittedAt time.Time        `json:"committed_at"`
	Years       []int            `json:"years"`
	Report      *classify.Report `json:"report"`
}

// YearsResponse lists the configured years and the session state.
type YearsResponse struct {
	Years         []int  `json:"years"`
	ReferenceYear int    `json:"reference_year"`
	Trained       bool   `json:"trained"`
	RunID         string `json:"run_id,omitempty"`
	CurrentYear   *int   `json:"current_year,omitempty"`
}

// SelectRequest sets the inspection year.
type SelectRequest struct {
	Year int `json:"year"`
}

// SelectResponse confirms the selected year.
type SelectResponse struct {
	Year        int  `json:"year"`
	Placeholder bool `json:"placeholder"`
}

// ClassArea is one class of a zonal result.
type ClassArea struct {
	Class     int     `json:"class"`
	ClassName string  `json:"class_name"`
	AreaHa    float64 `json:"area_ha"`
}

// StatsResponse holds the class areas of one year.
type StatsResponse struct {
	Year    int         `json:"year"`
	TotalHa float64     `json:"total_ha"`
	Classes []ClassArea `json:"classes"`
}

// Transition is a transition record with class names.
type Transition struct {
	From     int     `json:"from"`
	FromName string  `json:"from_name"`
	To       int     `json:"to"`
	ToName   string  `json:"to_name"`
	AreaHa   float64 `json:"area_ha"`
}

// ClassDelta is the net area change of one class.
type ClassDelta struct {
	Class     int     `json:"class"`
	ClassName string  `json:"class_name"`
	DeltaHa   float64 `json:"delta_ha"`
}

// ChangeResponse summarises a comparison for display.
type ChangeResponse struct {
	Year1            int          `json:"year1"`
	Year2            int          `json:"year2"`
	Transitions      []Transition `json:"transitions"`
	TotalTransitions int          `json:"total_transitions"`
	NetDelta         []ClassDelta `json:"net_delta"`
	NoData           []int        `json:"no_data_years,omitempty"`
}

// TrendResponse is the long-format table. NoData is set when no year had
// classified pixels.
type TrendResponse struct {
	Rows   []trend.Row `json:"rows"`
	NoData bool        `json:"no_data,omitempty"`
}

// ExportRequest queues an export of the year's labels, composite or a
// single class mask.
type ExportRequest struct {
	Kind  export.Kind `json:"kind"`
	Year  int         `json:"year"`
	Class int         `json:"class,omitempty"`
}

// ExportResponse returns the queued job ID.
type ExportResponse struct {
	ID string `json:"id"`
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, fmt.Errorf("missing %q parameter", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %q parameter", name)
	}
	return n, nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, fmt.Errorf("missing %q parameter", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %q parameter", name)
	}
	return f, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.trainMu.TryLock() {
		writeError(w, ErrTrainingInProgress)
		return
	}
	defer s.trainMu.Unlock()

	st, err := s.engine.Train(r.Context(), s.samples, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, TrainResponse{
		RunID:       st.RunID,
		CommittedAt: st.CommittedAt,
		Years:       st.Labels.Years(),
		Report:      st.Report,
	})
}

func (s *Server) listYears(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := YearsResponse{
		Years:         s.engine.Years(),
		ReferenceYear: s.engine.Options().ReferenceYear,
	}
	if st := s.engine.Session().Load(); st != nil {
		resp.Trained = true
		resp.RunID = st.RunID
		if st.Current != nil {
			y := st.Current.Year
			resp.CurrentYear = &y
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) selectYear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req SelectRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	view, err := s.engine.SelectYear(req.Year)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, SelectResponse{Year: view.Year, Placeholder: view.Labels.Placeholder})
}

func classAreas(res zonal.Result) []ClassArea {
	out := make([]ClassArea, 0, len(res))
	for _, c := range res.Classes() {
		out = append(out, ClassArea{Class: c, ClassName: classify.ClassName(c), AreaHa: res[c]})
	}
	return out
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	year, err := intParam(r, "year")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	res, err := s.engine.Zonal(r.Context(), year)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, StatsResponse{Year: year, TotalHa: res.Total(), Classes: classAreas(res)})
}

// compare parses year1, year2 and runs the comparison.
func (s *Server) compare(w http.ResponseWriter, r *http.Request) (*change.Report, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil, false
	}
	y1, err := intParam(r, "year1")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, false
	}
	y2, err := intParam(r, "year2")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, false
	}
	rep, err := s.engine.Change(r.Context(), y1, y2)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return rep, true
}

func limitParam(r *http.Request, def int) (int, error) {
	if r.URL.Query().Get("limit") == "" {
		return def, nil
	}
	n, err := intParam(r, "limit")
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %q parameter", "limit")
	}
	return n, nil
}

func (s *Server) showChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, err := limitParam(r, change.DisplayLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	rep, ok := s.compare(w, r)
	if !ok {
		return
	}
	resp := ChangeResponse{
		Year1:            rep.Year1,
		Year2:            rep.Year2,
		TotalTransitions: len(rep.Transitions),
		NoData:           rep.NoData,
	}
	top := rep.Top(limit)
	resp.Transitions = make([]Transition, len(top))
	for i, tr := range top {
		resp.Transitions[i] = Transition{
			From:     tr.From,
			FromName: classify.ClassName(tr.From),
			To:       tr.To,
			ToName:   classify.ClassName(tr.To),
			AreaHa:   tr.AreaHa,
		}
	}
	for c := 1; c <= classify.NumClasses; c++ {
		resp.NetDelta = append(resp.NetDelta, ClassDelta{Class: c, ClassName: classify.ClassName(c), DeltaHa: rep.NetDelta[c]})
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showChangeChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, err := limitParam(r, change.DisplayLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	rep, ok := s.compare(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.TransitionsHTML(&buf, rep, limit); err != nil {
		if errors.Is(err, report.ErrNothingToPlot) {
			httputil.NotFound(w, "no transitions above threshold")
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// trendRows runs the trend query. An all-empty table is not an error here.
func (s *Server) trendRows(w http.ResponseWriter, r *http.Request) ([]trend.Row, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil, false
	}
	rows, err := s.engine.Trend(r.Context())
	if err != nil && !errors.Is(err, zonal.ErrNoData) {
		writeError(w, err)
		return nil, false
	}
	if rows == nil {
		rows = []trend.Row{}
	}
	return rows, true
}

func (s *Server) showTrend(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.trendRows(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, TrendResponse{Rows: rows, NoData: len(rows) == 0})
}

func (s *Server) showTrendChart(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.trendRows(w, r)
	if !ok {
		return
	}
	if len(rows) == 0 {
		httputil.NotFound(w, "no classified pixels in any year")
		return
	}
	const title = "Land cover area by class"
	var buf bytes.Buffer
	var err error
	contentType := "text/html; charset=utf-8"
	switch format := r.URL.Query().Get("format"); format {
	case "", "html":
		err = report.TrendHTML(&buf, title, rows)
	case "png":
		contentType = "image/png"
		err = report.TrendPNG(&buf, title, rows)
	default:
		httputil.BadRequest(w, fmt.Sprintf("unsupported format %q", format))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) inspectPoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	x, err := floatParam(r, "x")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	y, err := floatParam(r, "y")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	res, err := s.engine.Inspect(x, y)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.runs == nil {
		httputil.NotFound(w, "run history is not enabled")
		return
	}
	limit, err := limitParam(r, 50)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.runs == nil {
		httputil.NotFound(w, "run history is not enabled")
		return
	}
	run, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) exportsHandler(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeError(w, ErrExportsDisabled)
		return
	}
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.exports.List())
	case http.MethodPost:
		s.queueExport(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) queueExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	st, err := s.engine.Session().Trained()
	if err != nil {
		writeError(w, err)
		return
	}
	labels, ok := st.Labels.Get(req.Year)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("year %d was not classified", req.Year))
		return
	}

	var id string
	switch req.Kind {
	case export.KindLabels:
		id, err = s.exports.Labels(labels)
	case export.KindMask:
		if !classify.ValidLabel(req.Class) {
			httputil.BadRequest(w, fmt.Sprintf("class must be 1..%d", classify.NumClasses))
			return
		}
		id, err = s.exports.Mask(labels, req.Class)
	case export.KindComposite:
		comp := st.Composites[req.Year]
		if comp == nil {
			comp = raster.NewPlaceholder(labels.Grid, labels.Metadata, classify.LabelBand)
		}
		id, err = s.exports.Composite(comp)
	default:
		httputil.BadRequest(w, fmt.Sprintf("unknown export kind %q", req.Kind))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, ExportResponse{ID: id})
}

func (s *Server) showExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.exports == nil {
		writeError(w, ErrExportsDisabled)
		return
	}
	st, ok := s.exports.Status(r.PathValue("id"))
	if !ok {
		httputil.NotFound(w, "export not found")
		return
	}
	httputil.WriteJSONOK(w, st)
}
