package routine

import (
	"time"

	"illo/internal/hardware"
)

// meditate renders a slow breathing pattern: inhale expands light from the
// ring's center pair outward, hold keeps it steady, exhale contracts it.
// Soft tones mark the phase boundaries when sound is on.
type meditate struct {
	s         *shared
	epoch     time.Time
	lastPhase string
	toneUntil time.Time
}

const (
	breathCycle = 12 * time.Second
	// Fractions of the cycle: inhale 0–0.4, hold 0.4–0.6, exhale 0.6–1.
	inhaleEnd = 0.4
	holdEnd   = 0.6

	inhaleToneHz = 220
	holdToneHz   = 200
	exhaleToneHz = 180
)

func (m *meditate) Start(now time.Time) error {
	m.epoch = now
	m.s.frame.Fill(hardware.RGB{})
	return m.s.show()
}

func (m *meditate) Stop(now time.Time) error {
	if !m.toneUntil.IsZero() {
		m.s.deps.Speaker.StopTone()
	}
	return m.s.deps.Ring.Clear()
}

func (m *meditate) Step(now time.Time) error {
	m.s.adaptBrightness()
	m.stopToneIfDone(now)

	cycle := float64(now.Sub(m.epoch)%breathCycle) / float64(breathCycle)

	var phase string
	var intensity int
	switch {
	case cycle < inhaleEnd:
		phase = "inhale"
		intensity = int(255 * cycle / inhaleEnd)
	case cycle < holdEnd:
		phase = "hold"
		intensity = 255
	default:
		phase = "exhale"
		intensity = int(255 * (1 - (cycle-holdEnd)/(1-holdEnd)))
	}

	if phase != m.lastPhase {
		m.lastPhase = phase
		m.phaseTone(now, phase)
	}

	m.render(intensity)
	return m.s.show()
}

// render lights center-out pixel pairs in proportion to intensity. A ten
// pixel ring at full breath has all five pairs lit.
func (m *meditate) render(intensity int) {
	m.s.frame.Fill(hardware.RGB{})
	n := len(m.s.frame)
	pairs := n / 2
	level := float64(intensity) / 255 * float64(pairs)

	color := hardware.Wheel(m.s.mode, 40+intensity*215/255)
	for i := 0; i < pairs; i++ {
		reach := level - float64(i)
		if reach <= 0 {
			break
		}
		if reach > 1 {
			reach = 1
		}
		c := color
		for ch := 0; ch < 3; ch++ {
			c[ch] = uint8(float64(c[ch]) * reach)
		}
		m.s.frame[pairs-1-i] = c
		m.s.frame[pairs+i] = c
	}
}

func (m *meditate) phaseTone(now time.Time, phase string) {
	if !m.s.soundOn() {
		return
	}
	var freq float64
	var dur time.Duration
	switch phase {
	case "inhale":
		freq, dur = inhaleToneHz, time.Second
	case "hold":
		freq, dur = holdToneHz, 200*time.Millisecond
	case "exhale":
		freq, dur = exhaleToneHz, 1200*time.Millisecond
	}
	if err := m.s.deps.Speaker.StartTone(freq, m.s.volume()); err == nil {
		m.toneUntil = now.Add(dur)
	}
}

func (m *meditate) stopToneIfDone(now time.Time) {
	if !m.toneUntil.IsZero() && now.After(m.toneUntil) {
		m.toneUntil = time.Time{}
		m.s.deps.Speaker.StopTone()
	}
}
