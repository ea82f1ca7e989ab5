package sampler

import "image"

// Frame is a decoded raster image together with the presentation time it
// was sampled at. Frames are owned by the pipeline stage currently holding
// them and are dropped as soon as they are written or rejected.
type Frame struct {
	Image     image.Image
	Timestamp float64 // seconds from the start of the stream
}

// Record describes one written output file. Seq is the position of the
// frame's timestamp within the grid, so sorting records by Seq (or their
// paths lexically) recovers chronological order.
type Record struct {
	Seq       int
	Timestamp float64
	Path      string
}
