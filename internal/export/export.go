// Package export writes labelled rasters, class masks and composites to
// disk in the background. Callers submit a job and get an ID back at once;
// the write happens on a worker and its outcome is visible through Status.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"

	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/gdalio"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/security"
	"github.com/banshee-data/landcover.report/internal/timeutil"
)

var (
	// ErrQueueFull is returned when a job cannot be queued without waiting.
	ErrQueueFull = errors.New("export queue is full")
	// ErrStopped is returned for submissions after Stop.
	ErrStopped = errors.New("export dispatcher stopped")
	// ErrPlaceholder is returned when exporting a composite for a year with
	// no imagery.
	ErrPlaceholder = errors.New("year has no imagery to export")
)

// MaskBand names the single band of a class mask.
const MaskBand = "mask"

// Kind identifies what a job writes.
type Kind string

const (
	KindLabels    Kind = "labels"
	KindMask      Kind = "mask"
	KindComposite Kind = "composite"
)

// State is the lifecycle of a job.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Status reports one job.
type Status struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Year        int       `json:"year"`
	Class       int       `json:"class,omitempty"`
	Path        string    `json:"path"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// Writer persists one image.
type Writer interface {
	Write(path string, im *raster.Image, kind Kind) error
}

// GeoTIFFWriter writes labels and masks as bytes and composites as
// float64, with nodata 0 and -9999 respectively.
type GeoTIFFWriter struct{}

func (GeoTIFFWriter) Write(path string, im *raster.Image, kind Kind) error {
	if kind == KindComposite {
		return gdalio.WriteImage(path, im, godal.Float64, -9999)
	}
	return gdalio.WriteImage(path, im, godal.Byte, 0)
}

// ClassMask returns a single-band image that is 1 where labels equals
// class and 0 at every other classified pixel. Unclassified or masked
// pixels stay masked.
func ClassMask(labels *raster.Image, class int) (*raster.Image, error) {
	if !classify.ValidLabel(class) {
		return nil, fmt.Errorf("class %d out of range 1..%d", class, classify.NumClasses)
	}
	lulc, ok := labels.Band(classify.LabelBand)
	if !ok {
		return nil, fmt.Errorf("%s: %w", classify.LabelBand, raster.ErrBandNotFound)
	}
	mask := raster.NewBand(MaskBand, labels.Grid.Len())
	for i := range mask.Values {
		v, ok := lulc.At(i)
		if !ok || (v == 0 && !labels.Placeholder) {
			continue
		}
		if int(v) == class {
			mask.Values[i] = 1
		}
		mask.Valid[i] = true
	}
	return raster.NewImage(labels.Grid, labels.Metadata).AddBands(mask)
}

type job struct {
	id  string
	im  *raster.Image
	out Status
}

// Dispatcher runs export jobs on a fixed set of workers.
type Dispatcher struct {
	dir    string
	writer Writer
	clock  timeutil.Clock

	jobs chan job
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	status  map[string]*Status
}

// NewDispatcher returns a dispatcher writing under dir with at most queue
// jobs waiting. Call Start before submitting.
func NewDispatcher(dir string, writer Writer, queue int) *Dispatcher {
	return &Dispatcher{
		dir:    dir,
		writer: writer,
		clock:  timeutil.RealClock{},
		jobs:   make(chan job, max(1, queue)),
		status: make(map[string]*Status),
	}
}

// SetClock replaces the clock used for job timestamps.
func (d *Dispatcher) SetClock(c timeutil.Clock) { d.clock = c }

// Start launches workers goroutines.
func (d *Dispatcher) Start(workers int) {
	for range max(1, workers) {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.run(j)
			}
		}()
	}
}

// Stop refuses further jobs and waits for queued ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

// Labels queues the labelled raster of a year.
func (d *Dispatcher) Labels(labels *raster.Image) (string, error) {
	year := labels.Metadata.Year
	return d.submit(labels, Status{Kind: KindLabels, Year: year, Path: fmt.Sprintf("lulc_%d.tif", year)})
}

// Mask queues the binary mask of one class for a year.
func (d *Dispatcher) Mask(labels *raster.Image, class int) (string, error) {
	im, err := ClassMask(labels, class)
	if err != nil {
		return "", err
	}
	year := labels.Metadata.Year
	slug := security.SanitizeFilename(classify.ClassName(class))
	return d.submit(im, Status{Kind: KindMask, Year: year, Class: class, Path: fmt.Sprintf("mask_%s_%d.tif", slug, year)})
}

// Composite queues the seasonal composite of a year.
func (d *Dispatcher) Composite(comp *raster.Image) (string, error) {
	if comp.Placeholder {
		return "", fmt.Errorf("%d: %w", comp.Metadata.Year, ErrPlaceholder)
	}
	year := comp.Metadata.Year
	return d.submit(comp, Status{Kind: KindComposite, Year: year, Path: fmt.Sprintf("composite_%d.tif", year)})
}

func (d *Dispatcher) submit(im *raster.Image, st Status) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return "", ErrStopped
	}
	st.ID = uuid.NewString()
	st.Path = filepath.Join(d.dir, st.Path)
	if err := security.ValidatePathWithinDirectory(st.Path, d.dir); err != nil {
		return "", err
	}
	st.State = StateQueued
	st.SubmittedAt = d.clock.Now()
	select {
	case d.jobs <- job{id: st.ID, im: im, out: st}:
	default:
		return "", ErrQueueFull
	}
	d.status[st.ID] = &st
	return st.ID, nil
}

func (d *Dispatcher) setState(id string, state State, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.status[id]
	st.State = state
	if err != nil {
		st.Error = err.Error()
	}
	if state == StateDone || state == StateFailed {
		st.FinishedAt = d.clock.Now()
	}
}

func (d *Dispatcher) run(j job) {
	d.setState(j.id, StateRunning, nil)
	err := os.MkdirAll(filepath.Dir(j.out.Path), 0755)
	if err == nil {
		err = d.writer.Write(j.out.Path, j.im, j.out.Kind)
	}
	if err != nil {
		monitoring.Logf("[export] %s %d failed: %v", j.out.Kind, j.out.Year, err)
		d.setState(j.id, StateFailed, err)
		return
	}
	monitoring.Logf("[export] wrote %s", j.out.Path)
	d.setState(j.id, StateDone, nil)
}

// Status returns a copy of a job's status.
func (d *Dispatcher) Status(id string) (Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.status[id]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// List returns every job, oldest first.
func (d *Dispatcher) List() []Status {
	d.mu.Lock()
	out := make([]Status, 0, len(d.status))
	for _, st := range d.status {
		out = append(out, *st)
	}
	d.mu.Unlock()
	sort.Slice(out, func(a, b int) bool {
		if !out[a].SubmittedAt.Equal(out[b].SubmittedAt) {
			return out[a].SubmittedAt.Before(out[b].SubmittedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out
}
