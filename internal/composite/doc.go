// Package composite builds the seasonal per-pixel median composite for one
// year.
//
// Responsibilities: season window, sensor availability by year, scene
// cloud filter, adaptation through the sensor package, temporal median,
// AOI clip and the placeholder raster for years with no usable imagery.
// Key types: SceneSource, Compositor, MemorySource.
//
// Dependency rule: composite may depend on raster, geo and sensor. It never
// computes indices or touches a classifier.
package composite
