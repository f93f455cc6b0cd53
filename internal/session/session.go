// Package session holds the committed training state shared by every query.
//
// One writer (the training workflow) replaces the whole State in a single
// atomic swap; readers load a snapshot and never block. A State is never
// modified after it is published.
package session

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/timeutil"
)

var (
	// ErrModelNotTrained is returned by queries made before any training
	// run has committed.
	ErrModelNotTrained = errors.New("model not trained")

	// ErrNoCurrentYear is returned by inspection before a year is selected.
	ErrNoCurrentYear = errors.New("no current year selected")
)

// YearView is the labelled raster and indexed composite of the year under
// inspection. Composite is a placeholder when the year had no imagery.
type YearView struct {
	Year      int
	Labels    *raster.Image
	Composite *raster.Image
}

// State is one committed training run.
type State struct {
	RunID       string
	CommittedAt time.Time

	Model  *classify.BoundModel
	Report *classify.Report

	// Labels holds one labelled raster per configured year.
	Labels *raster.Collection
	// Composites holds the indexed composite (or placeholder) per year.
	Composites map[int]*raster.Image

	Current *YearView
}

// Session is the single-writer, many-reader holder of State.
type Session struct {
	state atomic.Pointer[State]
	clock timeutil.Clock
}

// New returns an empty session.
func New(clock timeutil.Clock) *Session {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Session{clock: clock}
}

// Load returns the committed state, or nil before the first commit.
func (s *Session) Load() *State { return s.state.Load() }

// Commit publishes st, stamping CommittedAt. The previous state stays valid
// for readers that already hold it. When st carries no inspection context,
// the year selected before the commit stays selected if st classified it.
func (s *Session) Commit(st *State) error {
	if st == nil || st.Model == nil || st.Labels == nil {
		return fmt.Errorf("commit needs a model and a labelled collection")
	}
	now := s.clock.Now()
	for {
		prev := s.state.Load()
		next := *st
		next.CommittedAt = now
		if next.Current == nil && prev != nil && prev.Current != nil {
			if labels, ok := next.Labels.Get(prev.Current.Year); ok {
				next.Current = &YearView{Year: prev.Current.Year, Labels: labels, Composite: next.Composites[prev.Current.Year]}
			}
		}
		if s.state.CompareAndSwap(prev, &next) {
			return nil
		}
	}
}

// Trained returns the committed state or ErrModelNotTrained.
func (s *Session) Trained() (*State, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrModelNotTrained
	}
	return st, nil
}

// SelectYear makes year the inspection context. It fails with
// ErrModelNotTrained before training, or when year was not classified.
func (s *Session) SelectYear(year int) (*YearView, error) {
	for {
		cur := s.state.Load()
		if cur == nil {
			return nil, ErrModelNotTrained
		}
		labels, ok := cur.Labels.Get(year)
		if !ok {
			return nil, fmt.Errorf("year %d was not classified", year)
		}
		view := &YearView{Year: year, Labels: labels, Composite: cur.Composites[year]}
		next := *cur
		next.Current = view
		if s.state.CompareAndSwap(cur, &next) {
			return view, nil
		}
	}
}

// Current returns the inspection context.
func (s *Session) Current() (*YearView, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrModelNotTrained
	}
	if st.Current == nil {
		return nil, ErrNoCurrentYear
	}
	return st.Current, nil
}
