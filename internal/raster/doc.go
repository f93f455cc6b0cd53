// Package raster holds the in-memory raster model shared by every stage of
// the land-cover workflow.
//
// Responsibilities: the study grid, named bands with per-pixel validity,
// image metadata and the year-keyed collection of labelled images.
// Key types: Grid, Band, Image, Collection.
//
// Images are immutable once built. Every transform returns a new Image;
// band slices may be shared between images but are never written after
// construction. No sensor, index or classifier logic belongs here.
package raster
