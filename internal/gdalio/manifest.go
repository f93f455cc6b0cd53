package gdalio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/sensor"
)

// ManifestEntry describes one raw scene on disk.
type ManifestEntry struct {
	ID         string        `json:"id"`
	Family     sensor.Family `json:"family"`
	Acquired   time.Time     `json:"acquired"`
	CloudCover float64       `json:"cloud_cover"`
	// Path is relative to the manifest file unless absolute.
	Path string `json:"path"`
	// Bands names the file's bands in order. Empty means band descriptions.
	Bands []string `json:"bands,omitempty"`
}

// Manifest lists every scene available to the workflow.
type Manifest struct {
	Scenes []ManifestEntry `json:"scenes"`
}

// ManifestSource serves scenes listed in a manifest, reading each GeoTIFF
// only when a query asks for it.
type ManifestSource struct {
	dir     string
	entries []ManifestEntry
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*ManifestSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return NewManifestSource(filepath.Dir(path), m)
}

// NewManifestSource resolves relative scene paths against dir.
func NewManifestSource(dir string, m Manifest) (*ManifestSource, error) {
	seen := make(map[string]bool, len(m.Scenes))
	entries := make([]ManifestEntry, 0, len(m.Scenes))
	for i, e := range m.Scenes {
		if e.ID == "" {
			return nil, fmt.Errorf("scene %d has no id", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate scene id %q", e.ID)
		}
		seen[e.ID] = true
		if _, err := sensor.ParseFamily(string(e.Family)); err != nil {
			return nil, fmt.Errorf("scene %s: %w", e.ID, err)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("scene %s has no path", e.ID)
		}
		if !filepath.IsAbs(e.Path) {
			e.Path = filepath.Join(dir, e.Path)
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Acquired.Before(entries[b].Acquired)
	})
	return &ManifestSource{dir: dir, entries: entries}, nil
}

// Len returns the number of listed scenes.
func (s *ManifestSource) Len() int { return len(s.entries) }

// Scenes reads every listed scene of family acquired within [start, end].
func (s *ManifestSource) Scenes(ctx context.Context, family sensor.Family, start, end time.Time) ([]sensor.Scene, error) {
	var out []sensor.Scene
	for _, e := range s.entries {
		if e.Family != family || e.Acquired.Before(start) || e.Acquired.After(end) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		im, err := ReadImage(e.Path, e.Bands, raster.Metadata{
			Year:        e.Acquired.Year(),
			SeasonStart: e.Acquired,
			SeasonEnd:   e.Acquired,
		})
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", e.ID, err)
		}
		out = append(out, sensor.Scene{
			ID:         e.ID,
			Family:     e.Family,
			Acquired:   e.Acquired,
			CloudCover: e.CloudCover,
			Image:      im,
		})
	}
	return out, nil
}
