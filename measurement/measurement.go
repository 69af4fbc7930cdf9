package measurement

import (
	"fmt"
	"time"
)

// Measurement is the closed set of values instruments produce. The concrete
// types are *Scalar, *Spectrum and *Image; they are published by pointer so
// fan-out shares one immutable value instead of copying pixel data.
type Measurement interface {
	// Channel returns the name of the originating channel, conventionally
	// "<instrument id>_<quantity>" (e.g. "pm1_power").
	Channel() string

	// Time returns the acquisition timestamp.
	Time() time.Time
}

// Scalar is a single reading with a unit.
type Scalar struct {
	Name      string
	Value     float64
	Unit      string
	Timestamp time.Time
}

// Channel implements Measurement
func (s *Scalar) Channel() string { return s.Name }

// Time implements Measurement
func (s *Scalar) Time() time.Time { return s.Timestamp }

// Spectrum holds frequency/magnitude pairs as parallel slices.
// Invariant: len(Frequencies) == len(Magnitudes), frequencies ascending.
type Spectrum struct {
	Name        string
	Frequencies []float64
	Magnitudes  []float64
	Unit        string
	Timestamp   time.Time
}

// Channel implements Measurement
func (s *Spectrum) Channel() string { return s.Name }

// Time implements Measurement
func (s *Spectrum) Time() time.Time { return s.Timestamp }

// Validate checks the parallel-slice invariant.
func (s *Spectrum) Validate() error {
	if len(s.Frequencies) != len(s.Magnitudes) {
		return fmt.Errorf("spectrum %q: %d frequencies vs %d magnitudes",
			s.Name, len(s.Frequencies), len(s.Magnitudes))
	}
	return nil
}

// ImageMetadata carries acquisition settings alongside a frame. Zero values
// mean the setting was not reported by the device.
type ImageMetadata struct {
	ExposureMs   float64
	Gain         float64
	BinningH     int
	BinningV     int
	TemperatureC float64
}

// Image is a 2D frame. Pixels stay in their native acquisition width; see
// PixelBuffer for the float conversion rules.
type Image struct {
	Name      string
	Pixels    PixelBuffer
	Width     int
	Height    int
	Meta      ImageMetadata
	Timestamp time.Time
}

// Channel implements Measurement
func (im *Image) Channel() string { return im.Name }

// Time implements Measurement
func (im *Image) Time() time.Time { return im.Timestamp }

// Validate checks that the pixel count matches the frame geometry.
func (im *Image) Validate() error {
	if im.Width < 0 || im.Height < 0 {
		return fmt.Errorf("image %q: negative dimensions %dx%d", im.Name, im.Width, im.Height)
	}
	if got, want := im.Pixels.Len(), im.Width*im.Height; got != want {
		return fmt.Errorf("image %q: %d pixels for %dx%d frame (want %d)",
			im.Name, got, im.Width, im.Height, want)
	}
	return nil
}
