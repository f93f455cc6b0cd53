package gdalio

import (
	"fmt"
	"math"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/banshee-data/landcover.report/internal/raster"
)

var registerOnce sync.Once

// Register loads the GDAL drivers. It is safe to call repeatedly.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// ReadImage opens a GeoTIFF and returns its bands as an image. names gives
// the band names in file order; when empty the band descriptions are used,
// falling back to B1..Bn. Pixels equal to a band's nodata value, or NaN,
// are masked.
func ReadImage(path string, names []string, meta raster.Metadata) (*raster.Image, error) {
	Register()
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read geotransform: %w", path, err)
	}
	grid, err := raster.GridFromGeoTransform(gt, st.SizeX, st.SizeY)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	gbands := ds.Bands()
	if len(names) > 0 && len(names) != len(gbands) {
		return nil, fmt.Errorf("%s has %d bands, %d names given", path, len(gbands), len(names))
	}

	n := grid.Len()
	out := make([]raster.Band, len(gbands))
	for k, gb := range gbands {
		name := bandName(gb, names, k)
		buf := make([]float64, n)
		if err := gb.Read(0, 0, buf, st.SizeX, st.SizeY); err != nil {
			return nil, fmt.Errorf("%s band %s: %w", path, name, err)
		}
		nodata, hasNoData := gb.NoData()
		b := raster.NewBand(name, n)
		for i, v := range buf {
			if math.IsNaN(v) || (hasNoData && v == nodata) {
				continue
			}
			b.Values[i] = v
			b.Valid[i] = true
		}
		out[k] = b
	}
	return raster.NewImage(grid, meta).AddBands(out...)
}

func bandName(gb godal.Band, names []string, k int) string {
	if len(names) > 0 {
		return names[k]
	}
	if d := gb.Description(); d != "" {
		return d
	}
	return fmt.Sprintf("B%d", k+1)
}

// WriteImage writes every band of im to a tiled, compressed GeoTIFF. Masked
// pixels are written as nodata and each band carries its name as
// description.
func WriteImage(path string, im *raster.Image, dtype godal.DataType, nodata float64) error {
	if im == nil || im.BandCount() == 0 {
		return fmt.Errorf("nothing to write to %s", path)
	}
	Register()
	g := im.Grid
	ds, err := godal.Create(godal.GTiff, path, im.BandCount(), dtype, g.Width, g.Height,
		godal.CreationOption("TILED=YES", "COMPRESS=DEFLATE"))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := ds.SetGeoTransform(g.GeoTransform()); err != nil {
		ds.Close()
		return fmt.Errorf("%s: failed to set geotransform: %w", path, err)
	}

	buf := make([]float64, g.Len())
	for k, gb := range ds.Bands() {
		b := im.Bands()[k]
		for i := range buf {
			if v, ok := b.At(i); ok {
				buf[i] = v
			} else {
				buf[i] = nodata
			}
		}
		if err := gb.Write(0, 0, buf, g.Width, g.Height); err != nil {
			ds.Close()
			return fmt.Errorf("%s band %s: %w", path, b.Name, err)
		}
		if err := gb.SetNoData(nodata); err != nil {
			ds.Close()
			return fmt.Errorf("%s band %s: failed to set nodata: %w", path, b.Name, err)
		}
		if err := gb.SetDescription(b.Name); err != nil {
			ds.Close()
			return fmt.Errorf("%s band %s: failed to set description: %w", path, b.Name, err)
		}
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}
