package raster

import (
	"fmt"
	"math"
)

// Grid describes the pixel lattice of an image in a projected CRS.
// OriginX/OriginY is the top-left corner of pixel (0, 0); rows grow
// southwards. All coordinates are metres.
type Grid struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	OriginX   float64 `json:"origin_x"`
	OriginY   float64 `json:"origin_y"`
	PixelSize float64 `json:"pixel_size"`
}

// NewGridForBounds returns the smallest grid at pixelSize that covers the
// bounding box [minX,maxX] x [minY,maxY].
func NewGridForBounds(minX, minY, maxX, maxY, pixelSize float64) (Grid, error) {
	if pixelSize <= 0 {
		return Grid{}, fmt.Errorf("pixel size must be positive, got %f", pixelSize)
	}
	if maxX <= minX || maxY <= minY {
		return Grid{}, fmt.Errorf("degenerate bounds [%f,%f]x[%f,%f]", minX, maxX, minY, maxY)
	}
	g := Grid{
		Width:     int(math.Ceil((maxX - minX) / pixelSize)),
		Height:    int(math.Ceil((maxY - minY) / pixelSize)),
		OriginX:   minX,
		OriginY:   maxY,
		PixelSize: pixelSize,
	}
	return g, nil
}

// Validate checks the grid has a positive size.
func (g Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("grid must have positive dimensions, got %dx%d", g.Width, g.Height)
	}
	if g.PixelSize <= 0 {
		return fmt.Errorf("grid pixel size must be positive, got %f", g.PixelSize)
	}
	return nil
}

// Len returns the number of pixels.
func (g Grid) Len() int { return g.Width * g.Height }

// Equal reports whether two grids describe the same lattice.
func (g Grid) Equal(o Grid) bool {
	const eps = 1e-6
	return g.Width == o.Width && g.Height == o.Height &&
		math.Abs(g.OriginX-o.OriginX) < eps &&
		math.Abs(g.OriginY-o.OriginY) < eps &&
		math.Abs(g.PixelSize-o.PixelSize) < eps
}

// Centre returns the projected coordinate of the centre of pixel i.
func (g Grid) Centre(i int) (x, y float64) {
	col := i % g.Width
	row := i / g.Width
	x = g.OriginX + (float64(col)+0.5)*g.PixelSize
	y = g.OriginY - (float64(row)+0.5)*g.PixelSize
	return x, y
}

// Index returns the pixel containing (x, y). ok is false when the
// coordinate falls outside the grid.
func (g Grid) Index(x, y float64) (i int, ok bool) {
	col := int(math.Floor((x - g.OriginX) / g.PixelSize))
	row := int(math.Floor((g.OriginY - y) / g.PixelSize))
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return 0, false
	}
	return row*g.Width + col, true
}

// Bounds returns the extent covered by the grid.
func (g Grid) Bounds() (minX, minY, maxX, maxY float64) {
	minX = g.OriginX
	maxY = g.OriginY
	maxX = g.OriginX + float64(g.Width)*g.PixelSize
	minY = g.OriginY - float64(g.Height)*g.PixelSize
	return minX, minY, maxX, maxY
}

// Rescale returns a grid covering the same extent at a different pixel size.
func (g Grid) Rescale(pixelSize float64) Grid {
	if math.Abs(pixelSize-g.PixelSize) < 1e-9 {
		return g
	}
	minX, minY, maxX, maxY := g.Bounds()
	out, err := NewGridForBounds(minX, minY, maxX, maxY, pixelSize)
	if err != nil {
		return g
	}
	return out
}

// PixelAreaHa returns the area of one pixel in hectares.
func (g Grid) PixelAreaHa() float64 {
	return g.PixelSize * g.PixelSize / 10000.0
}

// GeoTransform returns the GDAL-style affine transform for the grid.
func (g Grid) GeoTransform() [6]float64 {
	return [6]float64{g.OriginX, g.PixelSize, 0, g.OriginY, 0, -g.PixelSize}
}

// GridFromGeoTransform builds a grid from a north-up GDAL transform.
func GridFromGeoTransform(gt [6]float64, width, height int) (Grid, error) {
	if gt[2] != 0 || gt[4] != 0 {
		return Grid{}, fmt.Errorf("rotated geotransforms are not supported")
	}
	if math.Abs(gt[1]+gt[5]) > 1e-6 {
		return Grid{}, fmt.Errorf("non-square pixels are not supported: %f x %f", gt[1], -gt[5])
	}
	g := Grid{Width: width, Height: height, OriginX: gt[0], OriginY: gt[3], PixelSize: gt[1]}
	return g, g.Validate()
}
