package raster

import (
	"errors"
	"fmt"
	"time"
)

// ErrBandNotFound is returned when a named band is not present on an image.
var ErrBandNotFound = errors.New("band not found")

// Band is one named layer of an image. Valid[i] is false for masked pixels;
// Values[i] is meaningless when Valid[i] is false.
type Band struct {
	Name   string
	Values []float64
	Valid  []bool
}

// NewBand returns a fully masked band of n pixels.
func NewBand(name string, n int) Band {
	return Band{Name: name, Values: make([]float64, n), Valid: make([]bool, n)}
}

// ConstantBand returns a band of n valid pixels all set to v.
func ConstantBand(name string, n int, v float64) Band {
	b := Band{Name: name, Values: make([]float64, n), Valid: make([]bool, n)}
	for i := range b.Values {
		b.Values[i] = v
		b.Valid[i] = true
	}
	return b
}

// At returns the value at pixel i and whether it is valid.
func (b Band) At(i int) (float64, bool) {
	if i < 0 || i >= len(b.Values) || !b.Valid[i] {
		return 0, false
	}
	return b.Values[i], true
}

// ValidCount returns the number of unmasked pixels.
func (b Band) ValidCount() int {
	n := 0
	for _, ok := range b.Valid {
		if ok {
			n++
		}
	}
	return n
}

// Metadata carries the temporal context of an image.
type Metadata struct {
	Year        int       `json:"year"`
	SeasonStart time.Time `json:"season_start"`
	SeasonEnd   time.Time `json:"season_end"`
}

// Image is a multi-band raster on a single grid.
type Image struct {
	Grid     Grid
	Metadata Metadata

	// Placeholder marks the all-zero raster substituted when a year has no
	// usable imagery. Band arithmetic must never run on a placeholder.
	Placeholder bool

	bands []Band
}

// NewImage returns an image with no bands.
func NewImage(grid Grid, meta Metadata) *Image {
	return &Image{Grid: grid, Metadata: meta}
}

// NewPlaceholder returns a single-band all-zero image flagged as a
// placeholder. Every pixel is valid so that downstream guards, not masks,
// decide how it is treated.
func NewPlaceholder(grid Grid, meta Metadata, bandName string) *Image {
	return &Image{
		Grid:        grid,
		Metadata:    meta,
		Placeholder: true,
		bands:       []Band{ConstantBand(bandName, grid.Len(), 0)},
	}
}

// AddBands returns a new image with the given bands appended. Band names
// must be unique and every band must match the grid size.
func (im *Image) AddBands(bands ...Band) (*Image, error) {
	out := im.shallowCopy(len(bands))
	for _, b := range bands {
		if len(b.Values) != im.Grid.Len() || len(b.Valid) != im.Grid.Len() {
			return nil, fmt.Errorf("band %q has %d values, grid has %d pixels", b.Name, len(b.Values), im.Grid.Len())
		}
		if out.indexOf(b.Name) >= 0 {
			return nil, fmt.Errorf("duplicate band %q", b.Name)
		}
		out.bands = append(out.bands, b)
	}
	return out, nil
}

// Band returns the named band.
func (im *Image) Band(name string) (Band, bool) {
	i := im.indexOf(name)
	if i < 0 {
		return Band{}, false
	}
	return im.bands[i], true
}

// Bands returns the bands in order. The slice is a copy; the band data
// is shared and must not be modified.
func (im *Image) Bands() []Band {
	return append([]Band(nil), im.bands...)
}

// BandNames returns the ordered band names.
func (im *Image) BandNames() []string {
	names := make([]string, len(im.bands))
	for i, b := range im.bands {
		names[i] = b.Name
	}
	return names
}

// BandCount returns the number of bands.
func (im *Image) BandCount() int { return len(im.bands) }

// HasBands reports whether every named band is present.
func (im *Image) HasBands(names ...string) bool {
	for _, n := range names {
		if im.indexOf(n) < 0 {
			return false
		}
	}
	return true
}

// Select returns a new image with only the named bands, in the given order.
func (im *Image) Select(names ...string) (*Image, error) {
	out := &Image{Grid: im.Grid, Metadata: im.Metadata, Placeholder: im.Placeholder}
	for _, n := range names {
		i := im.indexOf(n)
		if i < 0 {
			return nil, fmt.Errorf("select %q: %w", n, ErrBandNotFound)
		}
		out.bands = append(out.bands, im.bands[i])
	}
	return out, nil
}

// ValidAt reports whether pixel i is valid on every band.
func (im *Image) ValidAt(i int) bool {
	if len(im.bands) == 0 {
		return false
	}
	for _, b := range im.bands {
		if !b.Valid[i] {
			return false
		}
	}
	return true
}

// Vector fills dst with the values of the named bands at pixel i. It
// returns false if any band is missing or masked at i.
func (im *Image) Vector(i int, names []string, dst []float64) bool {
	if i < 0 || i >= im.Grid.Len() || len(dst) < len(names) {
		return false
	}
	for k, n := range names {
		j := im.indexOf(n)
		if j < 0 || !im.bands[j].Valid[i] {
			return false
		}
		dst[k] = im.bands[j].Values[i]
	}
	return true
}

// Clip returns a new image whose masks are ANDed with keep.
func (im *Image) Clip(keep []bool) (*Image, error) {
	if len(keep) != im.Grid.Len() {
		return nil, fmt.Errorf("clip mask has %d pixels, grid has %d", len(keep), im.Grid.Len())
	}
	out := im.shallowCopy(0)
	for k, b := range out.bands {
		valid := make([]bool, len(b.Valid))
		for i := range valid {
			valid[i] = b.Valid[i] && keep[i]
		}
		out.bands[k] = Band{Name: b.Name, Values: b.Values, Valid: valid}
	}
	return out, nil
}

// WithMetadata returns a copy of the image with new metadata.
func (im *Image) WithMetadata(meta Metadata) *Image {
	out := im.shallowCopy(0)
	out.Metadata = meta
	return out
}

func (im *Image) shallowCopy(extra int) *Image {
	out := &Image{Grid: im.Grid, Metadata: im.Metadata, Placeholder: im.Placeholder}
	out.bands = make([]Band, len(im.bands), len(im.bands)+extra)
	copy(out.bands, im.bands)
	return out
}

func (im *Image) indexOf(name string) int {
	for i, b := range im.bands {
		if b.Name == name {
			return i
		}
	}
	return -1
}
