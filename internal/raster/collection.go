package raster

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateYear is returned when a collection already holds an image for
// the year being added.
var ErrDuplicateYear = errors.New("duplicate year in collection")

// Collection is an ordered set of images keyed by year. At most one image
// exists per year and iteration is always in ascending year order.
type Collection struct {
	images []*Image
}

// NewCollection builds a collection from images, rejecting duplicate years.
func NewCollection(images ...*Image) (*Collection, error) {
	c := &Collection{}
	for _, im := range images {
		if err := c.Add(im); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add inserts an image keeping ascending year order.
func (c *Collection) Add(im *Image) error {
	if im == nil {
		return fmt.Errorf("nil image")
	}
	year := im.Metadata.Year
	i := sort.Search(len(c.images), func(i int) bool {
		return c.images[i].Metadata.Year >= year
	})
	if i < len(c.images) && c.images[i].Metadata.Year == year {
		return fmt.Errorf("year %d: %w", year, ErrDuplicateYear)
	}
	c.images = append(c.images, nil)
	copy(c.images[i+1:], c.images[i:])
	c.images[i] = im
	return nil
}

// Get returns the image for year.
func (c *Collection) Get(year int) (*Image, bool) {
	if c == nil {
		return nil, false
	}
	i := sort.Search(len(c.images), func(i int) bool {
		return c.images[i].Metadata.Year >= year
	})
	if i < len(c.images) && c.images[i].Metadata.Year == year {
		return c.images[i], true
	}
	return nil, false
}

// Years returns the years present, ascending.
func (c *Collection) Years() []int {
	if c == nil {
		return nil
	}
	years := make([]int, len(c.images))
	for i, im := range c.images {
		years[i] = im.Metadata.Year
	}
	return years
}

// Images returns the images in ascending year order.
func (c *Collection) Images() []*Image {
	if c == nil {
		return nil
	}
	return append([]*Image(nil), c.images...)
}

// Len returns the number of images.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.images)
}
