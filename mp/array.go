package mp

import "fmt"

// Array is an n-dimensional numeric dataset stored as a flat row-major
// slice. Exactly one of the sample slices is set: unsigned data keeps its
// source width (U8/U16/U32), everything else is widened to F64.
type Array struct {
	Shape []int

	U8  []uint8
	U16 []uint16
	U32 []uint32
	F64 []float64
}

// Len returns the total number of samples.
func (a *Array) Len() int {
	switch {
	case a.U8 != nil:
		return len(a.U8)
	case a.U16 != nil:
		return len(a.U16)
	case a.U32 != nil:
		return len(a.U32)
	default:
		return len(a.F64)
	}
}

// SampleBits returns the unsigned sample width in bits, or 0 for
// floating-point data.
func (a *Array) SampleBits() int {
	switch {
	case a.U8 != nil:
		return 8
	case a.U16 != nil:
		return 16
	case a.U32 != nil:
		return 32
	default:
		return 0
	}
}

// Float64 returns the samples widened to float64. The F64 slice is returned
// directly; unsigned data is copied.
func (a *Array) Float64() []float64 {
	if a.F64 != nil {
		return a.F64
	}
	out := make([]float64, a.Len())
	switch {
	case a.U8 != nil:
		for i, v := range a.U8 {
			out[i] = float64(v)
		}
	case a.U16 != nil:
		for i, v := range a.U16 {
			out[i] = float64(v)
		}
	case a.U32 != nil:
		for i, v := range a.U32 {
			out[i] = float64(v)
		}
	}
	return out
}

// checkShape verifies that the sample count matches the shape.
func (a *Array) checkShape() error {
	n := 1
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("negative dimension %d", d)
		}
		n *= d
	}
	if n != a.Len() {
		return fmt.Errorf("shape %v does not match %d samples", a.Shape, a.Len())
	}
	return nil
}

// Movie is a stack of camera frames with shape (frames, height, width).
// Samples are unsigned integers in their source width; frame 0 is always an
// absolute frame.
type Movie struct {
	*Array
}

// NewMovie validates an array as a frame stack.
func NewMovie(a *Array) (*Movie, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: no data", ErrNotMovie)
	}
	if len(a.Shape) != 3 {
		return nil, fmt.Errorf("%w: rank %d, want 3", ErrNotMovie, len(a.Shape))
	}
	if a.SampleBits() == 0 {
		return nil, fmt.Errorf("%w: samples are not unsigned integers", ErrNotMovie)
	}
	if err := a.checkShape(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMovie, err)
	}
	return &Movie{Array: a}, nil
}

// NumFrames returns the number of frames in the stack.
func (m *Movie) NumFrames() int { return m.Shape[0] }

// Height returns the frame height in pixels.
func (m *Movie) Height() int { return m.Shape[1] }

// Width returns the frame width in pixels.
func (m *Movie) Width() int { return m.Shape[2] }

// FrameLen returns the number of samples per frame.
func (m *Movie) FrameLen() int { return m.Shape[1] * m.Shape[2] }

// At returns the sample at frame f, row y, column x.
func (m *Movie) At(f, y, x int) uint32 {
	i := (f*m.Shape[1]+y)*m.Shape[2] + x
	switch {
	case m.U8 != nil:
		return uint32(m.U8[i])
	case m.U16 != nil:
		return uint32(m.U16[i])
	default:
		return m.U32[i]
	}
}

// FrameFloat64 returns frame f widened to float64.
func (m *Movie) FrameFloat64(f int) []float64 {
	n := m.FrameLen()
	out := make([]float64, n)
	base := f * n
	switch {
	case m.U8 != nil:
		for i := 0; i < n; i++ {
			out[i] = float64(m.U8[base+i])
		}
	case m.U16 != nil:
		for i := 0; i < n; i++ {
			out[i] = float64(m.U16[base+i])
		}
	default:
		for i := 0; i < n; i++ {
			out[i] = float64(m.U32[base+i])
		}
	}
	return out
}
