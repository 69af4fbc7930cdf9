package measurement

// PixelDepth identifies the native storage width of a PixelBuffer.
type PixelDepth int

const (
	// DepthU8 is 8-bit unsigned integer pixels (1 byte/pixel)
	DepthU8 PixelDepth = iota
	// DepthU16 is 16-bit unsigned integer pixels (2 bytes/pixel)
	DepthU16
	// DepthF64 is 64-bit floating point pixels (8 bytes/pixel)
	DepthF64
)

// String returns the string representation of PixelDepth
func (d PixelDepth) String() string {
	switch d {
	case DepthU8:
		return "u8"
	case DepthU16:
		return "u16"
	case DepthF64:
		return "f64"
	default:
		return "unknown"
	}
}

// PixelBuffer holds pixel samples in their native acquisition width.
// Exactly one of the backing slices is non-nil. Keeping 16-bit sensor data
// as uint16 instead of upconverting at capture time avoids a 4x memory and
// copy-bandwidth penalty; the one consumer that needs floats pays for the
// conversion via Float64.
type PixelBuffer struct {
	depth PixelDepth
	u8    []uint8
	u16   []uint16
	f64   []float64
}

// PixelsU8 wraps 8-bit pixel data without copying.
func PixelsU8(data []uint8) PixelBuffer {
	return PixelBuffer{depth: DepthU8, u8: data}
}

// PixelsU16 wraps 16-bit pixel data without copying.
func PixelsU16(data []uint16) PixelBuffer {
	return PixelBuffer{depth: DepthU16, u16: data}
}

// PixelsF64 wraps floating-point pixel data without copying.
func PixelsF64(data []float64) PixelBuffer {
	return PixelBuffer{depth: DepthF64, f64: data}
}

// Depth returns the native storage width.
func (b PixelBuffer) Depth() PixelDepth { return b.depth }

// Len returns the number of pixels.
func (b PixelBuffer) Len() int {
	switch b.depth {
	case DepthU8:
		return len(b.u8)
	case DepthU16:
		return len(b.u16)
	default:
		return len(b.f64)
	}
}

// MemoryBytes returns the backing storage size in bytes.
func (b PixelBuffer) MemoryBytes() int {
	switch b.depth {
	case DepthU8:
		return len(b.u8)
	case DepthU16:
		return len(b.u16) * 2
	default:
		return len(b.f64) * 8
	}
}

// Float64 returns the pixels as a float64 slice.
//
// For the F64 variant this returns the backing slice itself: zero copy,
// zero allocation. For U8 and U16 it allocates and converts. Callers must
// not mutate the result when the buffer is natively float.
func (b PixelBuffer) Float64() []float64 {
	switch b.depth {
	case DepthU8:
		out := make([]float64, len(b.u8))
		for i, v := range b.u8 {
			out[i] = float64(v)
		}
		return out
	case DepthU16:
		out := make([]float64, len(b.u16))
		for i, v := range b.u16 {
			out[i] = float64(v)
		}
		return out
	default:
		return b.f64
	}
}

// U8 returns the native 8-bit slice, or false when the depth differs.
func (b PixelBuffer) U8() ([]uint8, bool) {
	return b.u8, b.depth == DepthU8
}

// U16 returns the native 16-bit slice, or false when the depth differs.
func (b PixelBuffer) U16() ([]uint16, bool) {
	return b.u16, b.depth == DepthU16
}
