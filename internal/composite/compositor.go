package composite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/sensor"
)

// DefaultMaxCloudCover is the exclusive upper bound on scene cloud cover.
const DefaultMaxCloudCover = 30.0

// PlaceholderBand names the single band of a placeholder composite.
const PlaceholderBand = sensor.Blue

// SeasonWindow returns the compositing window for year: 1 October of year
// to the end of 31 March of year+1, UTC, both days inclusive.
func SeasonWindow(year int) (start, end time.Time) {
	start = time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(year+1, time.April, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	return start, end
}

// FamiliesFor returns the sensor families whose archives are merged for
// year.
func FamiliesFor(year int) []sensor.Family {
	switch {
	case year < 1999:
		return []sensor.Family{sensor.LandsatTM}
	case year <= 2012:
		return []sensor.Family{sensor.LandsatTM, sensor.LandsatETM}
	case year <= 2016:
		return []sensor.Family{sensor.LandsatOLI}
	default:
		return []sensor.Family{sensor.Sentinel2, sensor.LandsatOLI}
	}
}

// Compositor builds yearly composites over a fixed AOI and study grid.
type Compositor struct {
	source   SceneSource
	aoi      *geo.AOI
	grid     raster.Grid
	maxCloud float64
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithMaxCloudCover overrides DefaultMaxCloudCover.
func WithMaxCloudCover(pct float64) Option {
	return func(c *Compositor) { c.maxCloud = pct }
}

// New returns a compositor reading from source.
func New(source SceneSource, aoi *geo.AOI, grid raster.Grid, opts ...Option) (*Compositor, error) {
	if source == nil {
		return nil, fmt.Errorf("scene source is required")
	}
	if aoi == nil {
		return nil, fmt.Errorf("aoi is required")
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	c := &Compositor{source: source, aoi: aoi, grid: grid, maxCloud: DefaultMaxCloudCover}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Grid returns the study grid.
func (c *Compositor) Grid() raster.Grid { return c.grid }

// AOI returns the study area.
func (c *Compositor) AOI() *geo.AOI { return c.aoi }

// Build returns the median composite for year, clipped to the AOI. When no
// scene survives filtering the result is a placeholder, not an error.
// Errors come only from the source or from cancellation.
func (c *Compositor) Build(ctx context.Context, year int) (*raster.Image, error) {
	start, end := SeasonWindow(year)
	meta := raster.Metadata{Year: year, SeasonStart: start, SeasonEnd: end}

	var adapted []*raster.Image
	for _, fam := range FamiliesFor(year) {
		scenes, err := c.source.Scenes(ctx, fam, start, end)
		if err != nil && !errors.Is(err, ErrNoScenes) {
			return nil, fmt.Errorf("year %d %s scenes: %w", year, fam, err)
		}
		adapter, err := sensor.AdapterFor(fam)
		if err != nil {
			return nil, err
		}
		for _, sc := range scenes {
			if sc.CloudCover >= c.maxCloud {
				monitoring.Tracef("[composite] %s: cloud cover %.1f%% rejected", sc.ID, sc.CloudCover)
				continue
			}
			if sc.Image == nil || !sc.Image.Grid.Equal(c.grid) {
				monitoring.Logf("[composite] %s: scene is not on the study grid, dropped", sc.ID)
				continue
			}
			im, err := adapter.Adapt(sc)
			if err != nil {
				monitoring.Logf("[composite] %s: %v, dropped", sc.ID, err)
				continue
			}
			adapted = append(adapted, im)
		}
	}

	if len(adapted) == 0 {
		monitoring.Logf("[composite] year %d: no usable scenes, using placeholder", year)
		return raster.NewPlaceholder(c.grid, meta, PlaceholderBand), nil
	}

	comp, err := median(ctx, c.grid, adapted)
	if err != nil {
		return nil, err
	}
	if comp.BandCount() == 0 {
		return raster.NewPlaceholder(c.grid, meta, PlaceholderBand), nil
	}
	comp, err = comp.Clip(c.aoi.Mask(c.grid))
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[composite] year %d: median of %d scenes", year, len(adapted))
	return comp.WithMetadata(meta), nil
}

// median reduces the stack band by band. A pixel with no valid
// observation stays masked.
func median(ctx context.Context, grid raster.Grid, stack []*raster.Image) (*raster.Image, error) {
	n := grid.Len()
	scratch := make([]float64, 0, len(stack))
	bands := make([]raster.Band, 0, len(sensor.ReflectanceBands))
	for _, name := range sensor.ReflectanceBands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		layers := make([]raster.Band, 0, len(stack))
		for _, im := range stack {
			if b, ok := im.Band(name); ok {
				layers = append(layers, b)
			}
		}
		if len(layers) == 0 {
			continue
		}
		out := raster.NewBand(name, n)
		for i := 0; i < n; i++ {
			scratch = scratch[:0]
			for _, l := range layers {
				if v, ok := l.At(i); ok {
					scratch = append(scratch, v)
				}
			}
			if len(scratch) == 0 {
				continue
			}
			out.Values[i] = Median(scratch)
			out.Valid[i] = true
		}
		bands = append(bands, out)
	}
	return raster.NewImage(grid, raster.Metadata{}).AddBands(bands...)
}

// Median returns the median of vals, sorting vals in place. An even count
// yields the mean of the two middle values. Median of nothing is 0.
func Median(vals []float64) float64 {
	switch len(vals) {
	case 0:
		return 0
	case 1:
		return vals[0]
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}
