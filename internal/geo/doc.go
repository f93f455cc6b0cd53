// Package geo owns the study-area geometry and the labelled training
// points.
//
// Geometries are planar: the AOI, the sample points and every scene grid
// share one projected CRS in metres. Reprojection is the scene source's
// job, not this package's.
package geo
