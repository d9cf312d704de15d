// Package mp reads mass-photometry movie recordings (.mp files).
//
// A .mp file is an HDF5 container holding a stack of camera frames plus
// per-acquisition metadata. Frames may be stored as wraparound deltas; the
// reader detects this, reconstructs the absolute frames, and verifies the
// result against an embedded keyframe. Metadata layouts differ between
// acquisition software versions and can be normalized into one canonical
// record.
package mp

import "errors"

// Common errors
var (
	ErrNoFrameData   = errors.New("no frame data found")
	ErrDecompression = errors.New("decompression verification failed")
	ErrNotMovie      = errors.New("dataset is not a movie stack")
)
