package geo

import (
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ClassProperty is the feature property holding a sample's integer label.
const ClassProperty = "class"

// Sample is one labelled training point.
type Sample struct {
	Point orb.Point `json:"point"`
	Class int       `json:"class"`
}

// LoadSamples reads a GeoJSON feature collection of labelled points.
func LoadSamples(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	return ParseSamples(data)
}

// ParseSamples decodes Point (and MultiPoint) features carrying an integer
// class property. A feature without a positive integer class is an error.
func ParseSamples(data []byte) ([]Sample, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse samples geojson: %w", err)
	}
	var out []Sample
	for i, f := range fc.Features {
		class, err := classOf(f.Properties)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		switch g := f.Geometry.(type) {
		case orb.Point:
			out = append(out, Sample{Point: g, Class: class})
		case orb.MultiPoint:
			for _, p := range g {
				out = append(out, Sample{Point: p, Class: class})
			}
		default:
			return nil, fmt.Errorf("feature %d: samples must be points, got %T", i, f.Geometry)
		}
	}
	return out, nil
}

// Pool merges per-class sample sets into one slice, preserving order.
func Pool(sets ...[]Sample) []Sample {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make([]Sample, 0, n)
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// WithClass labels every point with class.
func WithClass(points []orb.Point, class int) []Sample {
	out := make([]Sample, len(points))
	for i, p := range points {
		out[i] = Sample{Point: p, Class: class}
	}
	return out
}

func classOf(props geojson.Properties) (int, error) {
	raw, ok := props[ClassProperty]
	if !ok {
		return 0, fmt.Errorf("missing %q property", ClassProperty)
	}
	var v float64
	switch c := raw.(type) {
	case float64:
		v = c
	case int:
		v = float64(c)
	case int64:
		v = float64(c)
	default:
		return 0, fmt.Errorf("%q property must be numeric, got %T", ClassProperty, raw)
	}
	if v != math.Trunc(v) || v < 1 {
		return 0, fmt.Errorf("%q must be a positive integer, got %v", ClassProperty, v)
	}
	return int(v), nil
}
