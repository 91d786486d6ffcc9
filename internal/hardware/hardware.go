// Package hardware is the boundary to the toy's physical parts: the
// NeoPixel ring, the sensor cluster and the speaker. The scheduler and the
// routines only ever see these interfaces; real boards, the serial bridge
// and the test simulator all plug in behind them.
package hardware

import "github.com/pkg/errors"

// RGB is one pixel color, channel order R, G, B.
type RGB [3]uint8

// Frame is a full ring's worth of pixels. It is a preallocated slice that
// routines render into in place.
type Frame []RGB

// NewFrame creates a frame with every pixel off.
func NewFrame(pixels int) Frame {
	return make(Frame, pixels)
}

// Fill sets every pixel to c.
func (f Frame) Fill(c RGB) {
	for i := range f {
		f[i] = c
	}
}

// Scale multiplies every channel by brightness (0.0–1.0).
func (f Frame) Scale(brightness float64) {
	if brightness < 0 {
		brightness = 0
	}
	if brightness >= 1 {
		return
	}
	for i := range f {
		for c := 0; c < 3; c++ {
			f[i][c] = uint8(float64(f[i][c]) * brightness)
		}
	}
}

// Bytes returns the frame as a flat R,G,B byte sequence for wire output.
func (f Frame) Bytes() []uint8 {
	out := make([]uint8, 0, 3*len(f))
	for _, c := range f {
		out = append(out, c[0], c[1], c[2])
	}
	return out
}

// Ring drives the LED ring. Render must be cheap enough to call from a
// scheduler task step at frame rate.
type Ring interface {
	Size() int
	Render(f Frame) error
	Clear() error
	Close() error
}

// MotionSample is one accelerometer read.
type MotionSample struct {
	Tapped bool
	Shaken bool
	// Magnitude is total acceleration in g, gravity included.
	Magnitude float64
}

// ButtonState is one poll of the board's inputs.
type ButtonState struct {
	A      bool
	B      bool
	Switch bool // slide switch position
}

// Sensors exposes the board's inputs. Reads are non-blocking samples of the
// latest value; they never wait for an event.
type Sensors interface {
	Buttons() (ButtonState, error)
	Motion() (MotionSample, error)
	// Light returns ambient light, normalized 0.0–1.0.
	Light() (float64, error)
	// SoundLevel returns the microphone envelope, normalized 0.0–1.0.
	SoundLevel() (float64, error)
}

// Speaker plays simple tones. Start returns immediately; the tone sounds
// until Stop.
type Speaker interface {
	StartTone(freqHz float64, volume float64) error
	StopTone() error
}

// ErrClosed is returned by drivers after Close.
var ErrClosed = errors.New("hardware: device closed")
