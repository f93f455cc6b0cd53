package classify

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/banshee-data/landcover.report/internal/raster"
)

// ErrBandMismatch is returned when an image's bands differ, in content or
// order, from the bands a model was trained on.
var ErrBandMismatch = errors.New("image bands do not match model bands")

// BoundModel is a trained model tied to the ordered feature bands it was
// trained on.
type BoundModel struct {
	family Family
	bands  []string
	model  Model
}

// Bind ties m to bands.
func Bind(family Family, bands []string, m Model) *BoundModel {
	return &BoundModel{family: family, bands: slices.Clone(bands), model: m}
}

// Family returns the classifier family.
func (b *BoundModel) Family() Family { return b.family }

// Bands returns a copy of the bound feature bands.
func (b *BoundModel) Bands() []string { return slices.Clone(b.bands) }

// Predict labels one feature vector.
func (b *BoundModel) Predict(features []float64) int { return b.model.Predict(features) }

// Classify labels every pixel valid on all bound bands. Other pixels are
// masked in the LabelBand output. The image must expose exactly the bound
// bands in the bound order.
func (b *BoundModel) Classify(ctx context.Context, im *raster.Image) (*raster.Image, error) {
	if got := im.BandNames(); !slices.Equal(got, b.bands) {
		return nil, fmt.Errorf("year %d has bands %v, model wants %v: %w", im.Metadata.Year, got, b.bands, ErrBandMismatch)
	}
	g := im.Grid
	out := raster.NewBand(LabelBand, g.Len())
	vec := make([]float64, len(b.bands))
	for row := 0; row < g.Height; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for col := 0; col < g.Width; col++ {
			i := row*g.Width + col
			if !im.Vector(i, b.bands, vec) {
				continue
			}
			out.Values[i] = float64(b.model.Predict(vec))
			out.Valid[i] = true
		}
	}
	return raster.NewImage(g, im.Metadata).AddBands(out)
}
