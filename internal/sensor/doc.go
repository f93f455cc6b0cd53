// Package sensor normalises raw scenes from each sensor family into the
// common six-band surface reflectance schema.
//
// Responsibilities: band remapping, scale/offset to physical reflectance,
// quality-band masking. Key types: Family, Scene, Adapter.
//
// Dependency rule: sensor may depend on raster only. Compositing and
// scene selection live in the composite package.
package sensor
