package mp

import (
	"fmt"

	"go.uber.org/zap"
)

// Metadata is the canonical acquisition record, independent of the layout
// variant that produced it. Framerate, PixelSize and ExposureTime are the
// pre-binning hardware values; the Effective fields are adjusted for the
// binning applied during acquisition.
type Metadata struct {
	Framerate        float64 `json:"framerate"`
	FramerateUnit    string  `json:"framerate_unit"`
	FrameBinning     int     `json:"framebinning"`
	PixelSize        float64 `json:"pixelsize"`
	PixelSizeUnit    string  `json:"pixelsize_unit"`
	PixelBinning     int     `json:"pixelbinning"`
	ExposureTime     float64 `json:"exposuretime"`
	ExposureTimeUnit string  `json:"exposuretime_unit"`
	Instrument       string  `json:"instrument"`
	Camera           string  `json:"camera,omitempty"`

	// ImageShape is (height, width) in pixels; nil when the source layout
	// did not provide it.
	ImageShape []int `json:"image_shape,omitempty"`

	// FieldOfView is ImageShape scaled by the pre-binning pixel size, in
	// FieldOfViewUnit.
	FieldOfView     []float64 `json:"field_of_view,omitempty"`
	FieldOfViewUnit string    `json:"field_of_view_unit,omitempty"`

	FramerateEffective    float64 `json:"framerate_effective,omitempty"`
	PixelSizeEffective    float64 `json:"pixelsize_effective,omitempty"`
	ExposureTimeEffective float64 `json:"exposuretime_effective,omitempty"`

	// Native is the original record set; only set when requested with
	// WithNativeMetadata.
	Native RecordSet `json:"-"`
}

// Pixel sizes in micrometers for instruments with a known calibration.
// Unknown instruments keep the layout default of 1.0 "px". The list is
// intentionally closed.
var instrumentPixelSize = map[string]float64{
	"Refeyn OneMP": 0.0193,
	"Refeyn TwoMP": 0.0118,
}

// EmptyMetadata returns the minimal canonical record: unit framerate and
// exposure expressed per frame, unit pixel size in pixels, no binning, and
// an unknown instrument.
func EmptyMetadata() Metadata {
	return Metadata{
		Framerate:        1,
		FramerateUnit:    "1/frame",
		FrameBinning:     1,
		PixelSize:        1.0,
		PixelSizeUnit:    "px",
		PixelBinning:     1,
		ExposureTime:     1.0,
		ExposureTimeUnit: "frame",
		Instrument:       "unknown",
	}
}

// ConvertMetadata normalizes a raw record set into the canonical Metadata
// record. It never fails: an empty record set, a missing entry, or a
// mistyped value degrades to EmptyMetadata so callers never observe a
// partially populated record.
func ConvertMetadata(rs RecordSet, opts ...Option) Metadata {
	o := applyOptions(opts)
	if len(rs) == 0 {
		return EmptyMetadata()
	}

	md, err := convertMetadata(rs)
	if err != nil {
		o.log.Warn("metadata conversion failed, returning defaults",
			zap.Error(err))
		return EmptyMetadata()
	}
	if o.includeNative {
		md.Native = rs
	}
	return md
}

// convertMetadata maps one layout's entries onto the canonical record and
// derives the binning-adjusted quantities.
func convertMetadata(rs RecordSet) (Metadata, error) {
	variant := DetectVariant(rs)
	keys := keysByVariant[variant]

	md := Metadata{
		FramerateUnit:    "Hz",
		PixelSize:        1.0,
		PixelSizeUnit:    "px",
		ExposureTimeUnit: "ms",
	}

	var err error
	if md.Framerate, err = rs.float(keys.frameRate); err != nil {
		return Metadata{}, err
	}
	if md.FrameBinning, err = rs.intval(keys.frameBinning); err != nil {
		return Metadata{}, err
	}
	if md.PixelBinning, err = rs.intval(keys.pixelBinning); err != nil {
		return Metadata{}, err
	}
	if md.ExposureTime, err = rs.float(keys.exposureTime); err != nil {
		return Metadata{}, err
	}
	if md.Instrument, err = rs.strval(keys.instrument); err != nil {
		return Metadata{}, err
	}
	if md.Camera, err = rs.strval(keys.camera); err != nil {
		return Metadata{}, err
	}
	if md.ImageShape, err = imageShape(rs, keys); err != nil {
		return Metadata{}, err
	}
	if md.FrameBinning < 1 || md.PixelBinning < 1 {
		return Metadata{}, fmt.Errorf("invalid binning %d/%d",
			md.FrameBinning, md.PixelBinning)
	}

	// Instrument calibration overrides the layout default pixel size.
	if size, ok := instrumentPixelSize[md.Instrument]; ok {
		md.PixelSize = size
		md.PixelSizeUnit = "um"
	}

	md.FramerateEffective = md.Framerate / float64(md.FrameBinning)
	md.PixelSizeEffective = md.PixelSize * float64(md.PixelBinning)
	md.ExposureTimeEffective = md.ExposureTime * float64(md.FrameBinning)

	// Field of view uses the pre-binning pixel size.
	md.FieldOfView = []float64{
		float64(md.ImageShape[0]) * md.PixelSize,
		float64(md.ImageShape[1]) * md.PixelSize,
	}
	md.FieldOfViewUnit = md.PixelSizeUnit

	return md, nil
}

// imageShape returns (height, width), either from explicit entries or from
// the spatial dimensions of the keyframe stack.
func imageShape(rs RecordSet, keys fieldKeys) ([]int, error) {
	if keys.height != "" {
		h, err := rs.intval(keys.height)
		if err != nil {
			return nil, err
		}
		w, err := rs.intval(keys.width)
		if err != nil {
			return nil, err
		}
		return []int{h, w}, nil
	}

	kf, err := rs.array(keyKeyframe)
	if err != nil {
		return nil, err
	}
	if len(kf.Shape) < 2 {
		return nil, fmt.Errorf("keyframe stack has rank %d", len(kf.Shape))
	}
	return append([]int(nil), kf.Shape[1:]...), nil
}
