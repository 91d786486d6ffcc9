package hardware

import "sync"

// Sim is an in-memory device used by tests and by --sim runs on machines
// without the toy plugged in. It implements Ring, Sensors and Speaker.
// Sensor values are whatever the test (or nobody) last injected, so reads
// are fully deterministic.
type Sim struct {
	mu     sync.Mutex
	closed bool

	pixels  int
	frame   Frame
	renders int
	clears  int

	buttons ButtonState
	motion  MotionSample
	light   float64
	sound   float64

	toneHz  float64
	toneVol float64
	tones   []float64
}

// NewSim creates a simulator with a dark ring of the given size.
func NewSim(pixels int) *Sim {
	return &Sim{pixels: pixels, frame: NewFrame(pixels)}
}

func (s *Sim) Size() int { return s.pixels }

func (s *Sim) Render(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	copy(s.frame, f)
	s.renders++
	return nil
}

func (s *Sim) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.frame.Fill(RGB{})
	s.clears++
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Sim) Buttons() (ButtonState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ButtonState{}, ErrClosed
	}
	return s.buttons, nil
}

func (s *Sim) Motion() (MotionSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return MotionSample{}, ErrClosed
	}
	m := s.motion
	// Tap and shake are edge events, consumed on read.
	s.motion.Tapped = false
	s.motion.Shaken = false
	return m, nil
}

func (s *Sim) Light() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.light, nil
}

func (s *Sim) SoundLevel() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.sound, nil
}

func (s *Sim) StartTone(freqHz, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.toneHz = freqHz
	s.toneVol = volume
	s.tones = append(s.tones, freqHz)
	return nil
}

func (s *Sim) StopTone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.toneHz = 0
	s.toneVol = 0
	return nil
}

// Injection and inspection hooks for tests.

func (s *Sim) SetButtons(b ButtonState) {
	s.mu.Lock()
	s.buttons = b
	s.mu.Unlock()
}

func (s *Sim) InjectTap() {
	s.mu.Lock()
	s.motion.Tapped = true
	s.mu.Unlock()
}

func (s *Sim) InjectShake() {
	s.mu.Lock()
	s.motion.Shaken = true
	s.mu.Unlock()
}

func (s *Sim) SetMagnitude(g float64) {
	s.mu.Lock()
	s.motion.Magnitude = g
	s.mu.Unlock()
}

func (s *Sim) SetLight(v float64) {
	s.mu.Lock()
	s.light = v
	s.mu.Unlock()
}

func (s *Sim) SetSoundLevel(v float64) {
	s.mu.Lock()
	s.sound = v
	s.mu.Unlock()
}

// LastFrame returns a copy of the frame from the most recent Render.
func (s *Sim) LastFrame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := NewFrame(len(s.frame))
	copy(out, s.frame)
	return out
}

// Renders reports how many frames have been shown.
func (s *Sim) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

// Tone reports the currently sounding frequency, 0 when silent.
func (s *Sim) Tone() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toneHz
}

// ToneVolume reports the level of the currently sounding tone, 0 when
// silent.
func (s *Sim) ToneVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toneVol
}

// Tones returns every frequency StartTone has been called with.
func (s *Sim) Tones() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.tones))
	copy(out, s.tones)
	return out
}
