package composite

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/landcover.report/internal/sensor"
)

// ErrNoScenes may be returned by a SceneSource with nothing to offer for a
// family and window. The compositor treats it the same as an empty result.
var ErrNoScenes = errors.New("no scenes available")

// SceneSource is the provider-agnostic raster archive. Scenes must already
// be on the study grid; scenes on any other grid are dropped.
type SceneSource interface {
	Scenes(ctx context.Context, family sensor.Family, start, end time.Time) ([]sensor.Scene, error)
}

// MemorySource is an in-memory SceneSource, used by tests and by callers
// that load scenes up front.
type MemorySource struct {
	mu     sync.RWMutex
	scenes []sensor.Scene
}

// NewMemorySource returns a source holding scenes.
func NewMemorySource(scenes ...sensor.Scene) *MemorySource {
	s := &MemorySource{}
	s.Add(scenes...)
	return s
}

// Add appends scenes.
func (s *MemorySource) Add(scenes ...sensor.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = append(s.scenes, scenes...)
}

// Scenes returns the scenes of family acquired within [start, end], oldest
// first.
func (s *MemorySource) Scenes(ctx context.Context, family sensor.Family, start, end time.Time) ([]sensor.Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []sensor.Scene
	for _, sc := range s.scenes {
		if sc.Family != family || sc.Acquired.Before(start) || sc.Acquired.After(end) {
			continue
		}
		out = append(out, sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Acquired.Before(out[j].Acquired) })
	return out, nil
}
