package mp

// Variant identifies the metadata key layout written by a particular
// generation of acquisition software.
type Variant int

const (
	// VariantV2 is the version-2 layout (configuration/Devices/AcqCam keys
	// at the container root).
	VariantV2 Variant = iota

	// VariantV3AcqCam is the first version-3 layout
	// (movie/configuration/Devices/AcqCam keys).
	VariantV3AcqCam

	// VariantV3AcqCamera is the second version-3 layout
	// (movie/configuration/acq_camera keys); image dimensions come from the
	// keyframe stack instead of explicit Height/Width entries.
	VariantV3AcqCamera
)

func (v Variant) String() string {
	switch v {
	case VariantV3AcqCam:
		return "v3-acqcam"
	case VariantV3AcqCamera:
		return "v3-acqcamera"
	default:
		return "v2"
	}
}

const (
	keyFormatVersion = "format_version_number"
	keyKeyframe      = "movie/keyframe"

	keyFramesV3 = "movie/frame"
	keyFramesV2 = "frame"
)

// fieldKeys maps the canonical metadata fields onto one layout's entry
// paths. height/width are empty for layouts that derive the image shape
// from the keyframe stack.
type fieldKeys struct {
	frameRate    string
	frameBinning string
	pixelBinning string
	exposureTime string
	instrument   string
	camera       string
	height       string
	width        string
}

var keysByVariant = map[Variant]fieldKeys{
	VariantV3AcqCam: {
		frameRate:    "movie/configuration/Devices/AcqCam/FrameRate",
		frameBinning: "movie/configuration/Devices/AcqCam/SoftwareFrameBinning",
		pixelBinning: "movie/configuration/Devices/AcqCam/SoftwarePixelBinning",
		exposureTime: "movie/configuration/Devices/AcqCam/ExposureTime",
		instrument:   "movie/device_info/InstrumentName",
		camera:       "movie/configuration/Devices/AcqCam/CameraName",
		height:       "movie/configuration/Devices/AcqCam/Height",
		width:        "movie/configuration/Devices/AcqCam/Width",
	},
	VariantV3AcqCamera: {
		frameRate:    "movie/configuration/acq_camera/frame_rate",
		frameBinning: "movie/configuration/acq_camera/frame_binning",
		pixelBinning: "movie/configuration/acq_camera/pixel_binning",
		exposureTime: "movie/configuration/acq_camera/exposure_time",
		instrument:   "movie/device_serials/InstrumentName",
		camera:       "movie/configuration/acq_camera/model",
	},
	VariantV2: {
		frameRate:    "configuration/Devices/AcqCam/FrameRate",
		frameBinning: "configuration/Engines/AcqMovieEngine/FrameBinning",
		pixelBinning: "configuration/Engines/AcqMovieEngine/PixelBinning",
		exposureTime: "configuration/Devices/AcqCam/ExposureTime",
		instrument:   "device_info/InstrumentName",
		camera:       "configuration/Devices/AcqCam/CameraName",
		height:       "configuration/Devices/AcqCam/Height",
		width:        "configuration/Devices/AcqCam/Width",
	},
}

// DetectVariant classifies a record set by key presence alone. It is total:
// anything that does not identify itself as version 3 is treated as
// version 2.
func DetectVariant(rs RecordSet) Variant {
	ver, err := rs.intval(keyFormatVersion)
	if err != nil || ver != 3 {
		return VariantV2
	}
	if _, ok := rs[keysByVariant[VariantV3AcqCam].height]; ok {
		return VariantV3AcqCam
	}
	return VariantV3AcqCamera
}
