package routine

import (
	"time"

	"illo/internal/hardware"
)

// cruise is a rotating comet that speeds up with sound. Quiet rooms get a
// slow ambient drift; music spins the ring.
type cruise struct {
	s      *shared
	offset float64
	last   time.Time
}

const (
	cruiseBaseSpeed  = 1.2 // pixels per second when silent
	cruiseSoundSpeed = 12  // extra pixels per second at full level
	cruiseFade       = 0.8
)

func (c *cruise) Start(now time.Time) error {
	c.last = now
	c.s.frame.Fill(hardware.RGB{})
	return c.s.show()
}

func (c *cruise) Stop(now time.Time) error {
	return c.s.deps.Ring.Clear()
}

func (c *cruise) Step(now time.Time) error {
	c.s.adaptBrightness()

	level, err := c.s.deps.Sensors.SoundLevel()
	if err != nil {
		return err
	}

	dt := now.Sub(c.last).Seconds()
	c.last = now
	n := len(c.s.frame)
	c.offset += (cruiseBaseSpeed + level*cruiseSoundSpeed) * dt
	for c.offset >= float64(n) {
		c.offset -= float64(n)
	}

	// Persistence: fade what's there, then repaint the comet on top.
	for i := range c.s.frame {
		for ch := 0; ch < 3; ch++ {
			c.s.frame[i][ch] = uint8(float64(c.s.frame[i][ch]) * cruiseFade)
		}
	}

	head := int(c.offset) % n
	c.s.frame[head] = hardware.Wheel(c.s.mode, 120)
	c.s.frame[(head-1+n)%n] = hardware.Wheel(c.s.mode, 80)
	c.s.frame[(head-2+n)%n] = hardware.Wheel(c.s.mode, 50)

	return c.s.show()
}
