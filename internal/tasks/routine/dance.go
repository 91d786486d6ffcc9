package routine

import (
	"time"

	"illo/internal/hardware"
)

// dance is a stepping baton with a beat detector: a head pixel with a
// dimmer trail advances around the ring, and a loud moment flips its
// direction and throws a spark ahead of it.
type dance struct {
	s          *shared
	pos        int
	dir        int
	lastStep   time.Time
	lastBeat   time.Time
	sparkUntil time.Time
	sparkPos   int
}

const (
	danceStep      = 260 * time.Millisecond
	danceBeatLevel = 0.6
	danceBeatHold  = 400 * time.Millisecond
	danceSparkLife = 300 * time.Millisecond
)

func (d *dance) Start(now time.Time) error {
	d.dir = 1
	d.lastStep = now
	d.s.frame.Fill(hardware.RGB{})
	return d.s.show()
}

func (d *dance) Stop(now time.Time) error {
	return d.s.deps.Ring.Clear()
}

func (d *dance) Step(now time.Time) error {
	d.s.adaptBrightness()

	level, err := d.s.deps.Sensors.SoundLevel()
	if err != nil {
		return err
	}
	n := len(d.s.frame)

	if level > danceBeatLevel && now.Sub(d.lastBeat) > danceBeatHold {
		d.lastBeat = now
		d.dir = -d.dir
		d.sparkPos = ((d.pos+2*d.dir)%n + n) % n
		d.sparkUntil = now.Add(danceSparkLife)
	}

	if now.Sub(d.lastStep) >= danceStep {
		d.lastStep = now
		d.pos = ((d.pos+d.dir)%n + n) % n
	}

	d.s.frame.Fill(hardware.RGB{})
	head := hardware.Wheel(d.s.mode, 200)
	d.s.frame[d.pos] = head

	trail := head
	for ch := 0; ch < 3; ch++ {
		trail[ch] = uint8(float64(trail[ch]) * 0.55)
	}
	d.s.frame[((d.pos-d.dir)%n+n)%n] = trail

	if now.Before(d.sparkUntil) {
		spark := hardware.Wheel(d.s.mode, 250)
		for ch := 0; ch < 3; ch++ {
			spark[ch] = uint8(float64(spark[ch]) * 0.75)
		}
		d.s.frame[d.sparkPos] = spark
	}

	return d.s.show()
}
