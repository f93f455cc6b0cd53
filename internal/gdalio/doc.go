// Package gdalio moves rasters between GeoTIFF files and in-memory images
// using GDAL through godal.
//
// Responsibilities:
//   - Reading multi-band GeoTIFFs into raster.Image, with nodata pixels
//     masked.
//   - A scene manifest (JSON) that lists raw acquisitions on disk and serves
//     them as a composite.SceneSource.
//   - Writing images (labels, class masks, composites) as GeoTIFF.
//
// Dependency rule: gdalio knows file formats only. Scaling, masking and
// compositing stay in sensor and composite.
package gdalio
