package mp

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// All-close tolerances for the decode verification gate.
const (
	verifyAbsTol = 1e-8
	verifyRelTol = 1e-5
)

// compressedStdRatio is the discriminator threshold: a still-encoded second
// frame carries unsigned-overflow noise, so its spatial standard deviation
// dwarfs that of the absolute first frame.
const compressedStdRatio = 0.5

// DecodeMovie reverses the wraparound-delta encoding of a frame stack and
// verifies the reconstruction against reference, the last plane of the
// embedded keyframe stack widened to float64.
//
// Frame 0 is taken as absolute. Every later sample d is interpreted modulo
// M+1 (M the sample-type maximum): d > M/2 decodes to d-(M+1), otherwise to
// d. Absolute frames are the inclusive cumulative sum of the decoded deltas
// along the frame axis. If the reconstructed last frame differs from
// reference beyond tolerance, ErrDecompression is returned and the input is
// left untouched.
//
// DecodeMovie is pure: it neither consumes nor mutates record-set entries.
func DecodeMovie(m *Movie, reference []float64) (*Movie, error) {
	if len(reference) != m.FrameLen() {
		return nil, fmt.Errorf("%w: reference has %d samples, frame has %d",
			ErrDecompression, len(reference), m.FrameLen())
	}

	out := &Array{Shape: append([]int(nil), m.Shape...)}
	var err error
	switch {
	case m.U8 != nil:
		out.U8, err = decodeDelta(m.U8, m.FrameLen(), reference)
	case m.U16 != nil:
		out.U16, err = decodeDelta(m.U16, m.FrameLen(), reference)
	default:
		out.U32, err = decodeDelta(m.U32, m.FrameLen(), reference)
	}
	if err != nil {
		return nil, err
	}
	return &Movie{Array: out}, nil
}

type sample interface {
	~uint8 | ~uint16 | ~uint32
}

// decodeDelta unwraps, accumulates, verifies and narrows one flat sample
// slice. frameLen is the number of samples per frame.
func decodeDelta[T sample](pix []T, frameLen int, reference []float64) ([]T, error) {
	maxInt := float64(^T(0))
	half := float64(^T(0) / 2)

	buf := make([]float64, len(pix))
	for i, v := range pix {
		f := float64(v)
		// Frame 0 is absolute, not a delta: no unwrap correction.
		if i >= frameLen && f > half {
			f -= maxInt + 1
		}
		buf[i] = f
	}

	// Inclusive cumulative sum along the frame axis.
	for base := frameLen; base < len(buf); base += frameLen {
		prev := base - frameLen
		for j := 0; j < frameLen; j++ {
			buf[base+j] += buf[prev+j]
		}
	}

	last := buf[len(buf)-frameLen:]
	for j, got := range last {
		if !scalar.EqualWithinAbsOrRel(got, reference[j], verifyAbsTol, verifyRelTol) {
			return nil, fmt.Errorf("%w: sample %d is %g, keyframe has %g",
				ErrDecompression, j, got, reference[j])
		}
	}

	out := make([]T, len(buf))
	for i, f := range buf {
		// Values re-enter the unsigned range after reconstruction; route
		// through int64 so any residue wraps instead of being undefined.
		out[i] = T(int64(math.Round(f)))
	}
	return out, nil
}

// looksCompressed reports whether the stack still carries delta-encoded
// frames, by comparing the spatial standard deviations of the first two
// frames. Errors here are advisory: callers log and treat the stack as
// already decoded.
func looksCompressed(m *Movie) (bool, error) {
	if m.NumFrames() < 2 {
		return false, fmt.Errorf("stack has %d frames, need 2", m.NumFrames())
	}
	std0 := stat.StdDev(m.FrameFloat64(0), nil)
	std1 := stat.StdDev(m.FrameFloat64(1), nil)
	ratio := std0 / std1
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return false, fmt.Errorf("degenerate frame variance: std0=%g std1=%g", std0, std1)
	}
	return ratio < compressedStdRatio, nil
}

// maybeDecode applies the compression discriminator and, when it fires,
// decodes the stack against the keyframe entry of rs. The keyframe entry is
// consumed (removed from rs) only after a verified decode. Heuristic
// failures are logged and leave the stack unchanged; verification failures
// are fatal.
func maybeDecode(m *Movie, rs RecordSet, log *zap.Logger) (*Movie, error) {
	compressed, err := looksCompressed(m)
	if err != nil {
		log.Warn("compression check failed", zap.Error(err))
		return m, nil
	}
	if !compressed {
		return m, nil
	}

	reference, err := keyframeReference(rs)
	if err != nil {
		log.Warn("compression check failed", zap.Error(err))
		return m, nil
	}

	decoded, err := DecodeMovie(m, reference)
	if err != nil {
		return nil, err
	}
	delete(rs, keyKeyframe)
	return decoded, nil
}

// keyframeReference returns the last plane of the keyframe stack as
// float64.
func keyframeReference(rs RecordSet) ([]float64, error) {
	kf, err := rs.array(keyKeyframe)
	if err != nil {
		return nil, err
	}
	if len(kf.Shape) < 2 {
		return nil, fmt.Errorf("keyframe stack has rank %d", len(kf.Shape))
	}
	planeLen := 1
	for _, d := range kf.Shape[1:] {
		planeLen *= d
	}
	all := kf.Float64()
	if planeLen <= 0 || planeLen > len(all) {
		return nil, fmt.Errorf("keyframe stack has invalid shape %v", kf.Shape)
	}
	return all[len(all)-planeLen:], nil
}
