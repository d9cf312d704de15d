package mp

import (
	"fmt"

	"github.com/robert-malhotra/go-massphotometry/hdf5"
)

// Recording is the result of reading a .mp file.
type Recording struct {
	// Movie is the frame stack, decoded if the file stored it as
	// wraparound deltas.
	Movie *Movie

	// Raw is the flattened container contents with the frame stack removed
	// (and the keyframe entry removed after a verified decode).
	Raw RecordSet

	// Meta is the normalized metadata; nil unless WithConvertedMetadata
	// was passed.
	Meta *Metadata
}

// Read opens a .mp recording, extracts the movie (decoding it when the
// compression discriminator fires) and the raw metadata, and optionally
// normalizes the metadata.
//
// Open/IO failures, a container without frame data, and decode verification
// failures are returned as errors; everything else degrades gracefully (see
// WithLogger).
func Read(path string, opts ...Option) (*Recording, error) {
	o := applyOptions(opts)

	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	rs := Flatten(f, o.log)

	movie, err := popMovie(rs)
	if err != nil {
		return nil, err
	}

	movie, err = maybeDecode(movie, rs, o.log)
	if err != nil {
		return nil, err
	}

	rec := &Recording{Movie: movie, Raw: rs}
	if o.convertMetadata {
		md := ConvertMetadata(rs, opts...)
		rec.Meta = &md
	}
	return rec, nil
}

// popMovie removes the frame stack from the record set, trying the
// version-3 location first, then the version-2 one.
func popMovie(rs RecordSet) (*Movie, error) {
	for _, key := range []string{keyFramesV3, keyFramesV2} {
		e, ok := rs[key]
		if !ok {
			continue
		}
		arr, err := e.Arr()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrNoFrameData, key, err)
		}
		m, err := NewMovie(arr)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		delete(rs, key)
		return m, nil
	}
	return nil, ErrNoFrameData
}
