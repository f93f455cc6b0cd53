package classify

import (
	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/raster"
)

// Extract reads the named bands at each sample's pixel. Samples outside the
// grid or on a masked pixel are dropped and counted.
func Extract(im *raster.Image, samples []geo.Sample, bands []string) (features [][]float64, labels []int, dropped int) {
	for _, s := range samples {
		i, ok := im.Grid.Index(s.Point.X(), s.Point.Y())
		if !ok {
			dropped++
			continue
		}
		vec := make([]float64, len(bands))
		if !im.Vector(i, bands, vec) {
			dropped++
			continue
		}
		features = append(features, vec)
		labels = append(labels, s.Class)
	}
	return features, labels, dropped
}
