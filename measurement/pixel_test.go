package measurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelBufferU16RoundTrip(t *testing.T) {
	native := []uint16{0, 1, 255, 256, 4095, 65535}
	buf := PixelsU16(native)

	floats := buf.Float64()
	require.Len(t, floats, len(native))

	back := make([]uint16, len(floats))
	for i, v := range floats {
		back[i] = uint16(v)
	}
	assert.Equal(t, native, back, "u16 -> f64 -> u16 must be lossless")
}

func TestPixelBufferF64ViewIsZeroCopy(t *testing.T) {
	data := []float64{1.5, 2.5, 3.5}
	buf := PixelsF64(data)

	allocs := testing.AllocsPerRun(100, func() {
		_ = buf.Float64()
	})
	assert.Zero(t, allocs, "f64 view of native f64 buffer must not allocate")

	view := buf.Float64()
	assert.Equal(t, &data[0], &view[0], "f64 view must share backing storage")
}

func TestPixelBufferDepthAndSize(t *testing.T) {
	cases := []struct {
		buf   PixelBuffer
		depth PixelDepth
		n     int
		bytes int
	}{
		{PixelsU8(make([]uint8, 10)), DepthU8, 10, 10},
		{PixelsU16(make([]uint16, 10)), DepthU16, 10, 20},
		{PixelsF64(make([]float64, 10)), DepthF64, 10, 80},
	}
	for _, c := range cases {
		assert.Equal(t, c.depth, c.buf.Depth())
		assert.Equal(t, c.n, c.buf.Len())
		assert.Equal(t, c.bytes, c.buf.MemoryBytes())
	}
}

func TestPixelBufferNativeAccessors(t *testing.T) {
	u16 := PixelsU16([]uint16{7})
	got, ok := u16.U16()
	require.True(t, ok)
	assert.Equal(t, []uint16{7}, got)

	_, ok = u16.U8()
	assert.False(t, ok)
}

func TestImageValidate(t *testing.T) {
	img := &Image{
		Name:      "cam1_frame",
		Pixels:    PixelsU16(make([]uint16, 4)),
		Width:     2,
		Height:    2,
		Timestamp: time.Now(),
	}
	assert.NoError(t, img.Validate())

	img.Width = 3
	assert.Error(t, img.Validate())
}

func TestSpectrumValidate(t *testing.T) {
	s := &Spectrum{
		Name:        "fft",
		Frequencies: []float64{0, 100, 200},
		Magnitudes:  []float64{-3, -6, -9},
	}
	assert.NoError(t, s.Validate())

	s.Magnitudes = s.Magnitudes[:2]
	assert.Error(t, s.Validate())
}
