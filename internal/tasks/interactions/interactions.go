// Package interactions watches the motion and light sensors and turns raw
// readings into debounced events on the bus: taps, shakes and sudden ambient
// light changes. Which kinds are live depends on the active routine; a
// meditation session should not jump because somebody bumped the table.
package interactions

import (
	"context"
	"time"

	"illo/internal/eventbus"
	"illo/internal/hardware"
	"illo/internal/sched"
	"illo/internal/storage"
	logx "illo/pkg/logx"
)

// Policy says which interaction kinds a routine listens to.
type Policy struct {
	Tap   bool
	Shake bool
	Light bool
}

// policies maps routine name to its interaction policy. Unknown routines get
// the zero Policy, which ignores everything.
var policies = map[string]Policy{
	"aware":    {Tap: true, Shake: true, Light: true},
	"cruise":   {},
	"meditate": {},
	"dance":    {Tap: true, Shake: true, Light: true},
}

// PolicyFor returns the interaction policy for a routine.
func PolicyFor(routine string) Policy { return policies[routine] }

const (
	defaultTapDebounce   = 500 * time.Millisecond
	defaultShakeDebounce = time.Second

	// Ambient light sampling for the interaction detector.
	lightSampleEvery = 100 * time.Millisecond
	lightHistorySize = 5
	lightThreshold   = 0.2 // normalized delta from the rolling average

	// Feedback tones.
	tapToneHz    = 880
	shakeToneHz  = 440
	toneDuration = 60 * time.Millisecond
)

var DefaultOptions = sched.Options{
	Name:     "interactions",
	Priority: 1,
	Period:   50 * time.Millisecond,
	Budget:   10 * time.Millisecond,
}

type Task struct {
	sensors hardware.Sensors
	speaker hardware.Speaker
	bus     eventbus.Bus
	store   storage.Store
	log     logx.Logger

	routine func() string // current routine name
	soundOn func() bool

	tapDebounce   time.Duration
	shakeDebounce time.Duration
	volume        float64
	lastTap       time.Time
	lastShake     time.Time

	lightHistory [lightHistorySize]float64
	lightCount   int
	lightIndex   int
	lastSample   time.Time

	toneUntil time.Time
}

// New builds the interaction task. routine and soundOn are sampled each
// step; they are expected to be calls into state owned by other tasks on the
// same scheduler goroutine.
func New(sensors hardware.Sensors, speaker hardware.Speaker, bus eventbus.Bus,
	store storage.Store, log logx.Logger, routine func() string, soundOn func() bool) *Task {
	return &Task{
		sensors:       sensors,
		speaker:       speaker,
		bus:           bus,
		store:         store,
		log:           log,
		routine:       routine,
		soundOn:       soundOn,
		tapDebounce:   defaultTapDebounce,
		shakeDebounce: defaultShakeDebounce,
		volume:        1,
	}
}

// SetDebounce overrides the tap and shake debounce windows. Zero keeps the
// default.
func (t *Task) SetDebounce(tap, shake time.Duration) {
	if tap > 0 {
		t.tapDebounce = tap
	}
	if shake > 0 {
		t.shakeDebounce = shake
	}
}

// SetVolume overrides the feedback tone level. Values outside (0, 1] keep
// full volume.
func (t *Task) SetVolume(v float64) {
	if v > 0 && v <= 1 {
		t.volume = v
	}
}

func (t *Task) Step(now time.Time) error {
	if t.toneUntil != (time.Time{}) && now.After(t.toneUntil) {
		t.toneUntil = time.Time{}
		if err := t.speaker.StopTone(); err != nil {
			t.log.Warn("failed to stop tone", logx.Err(err))
		}
	}

	active := t.routine()
	policy := PolicyFor(active)

	m, err := t.sensors.Motion()
	if err != nil {
		return err
	}
	if policy.Tap && m.Tapped && now.Sub(t.lastTap) > t.tapDebounce {
		t.lastTap = now
		t.emit(now, eventbus.TypeTap, active, 0)
		t.feedback(now, tapToneHz)
	}
	if policy.Shake && m.Shaken && now.Sub(t.lastShake) > t.shakeDebounce {
		t.lastShake = now
		t.emit(now, eventbus.TypeShake, active, m.Magnitude)
		t.feedback(now, shakeToneHz)
	}

	if policy.Light && now.Sub(t.lastSample) > lightSampleEvery {
		t.lastSample = now
		level, err := t.sensors.Light()
		if err != nil {
			return err
		}
		t.sampleLight(now, active, level)
	}
	return nil
}

func (t *Task) Stop(now time.Time) error {
	if t.toneUntil != (time.Time{}) {
		t.toneUntil = time.Time{}
		return t.speaker.StopTone()
	}
	return nil
}

// sampleLight keeps a short rolling history of ambient light and flags a
// reading far from the average: a hand waved over the sensor.
func (t *Task) sampleLight(now time.Time, active string, level float64) {
	t.lightHistory[t.lightIndex] = level
	t.lightIndex = (t.lightIndex + 1) % lightHistorySize
	if t.lightCount < lightHistorySize {
		t.lightCount++
	}
	if t.lightCount < 3 {
		return
	}

	var sum float64
	for i := 0; i < t.lightCount; i++ {
		sum += t.lightHistory[i]
	}
	avg := sum / float64(t.lightCount)
	delta := level - avg
	if delta < 0 {
		delta = -delta
	}
	if delta > lightThreshold {
		t.emit(now, eventbus.TypeLightTrigger, active, level)
	}
}

func (t *Task) emit(now time.Time, kind, routine string, level float64) {
	t.log.Debug("interaction", logx.String("kind", kind), logx.String("routine", routine))
	t.bus.Publish(eventbus.Event{Type: kind, Time: now, Data: level})
	if t.store == nil {
		return
	}
	err := t.store.AppendInteraction(context.Background(), storage.InteractionEvent{
		At: now, Kind: kind, Routine: routine, Level: level,
	})
	if err != nil {
		t.log.Warn("failed to record interaction", logx.Err(err))
	}
}

func (t *Task) feedback(now time.Time, freq float64) {
	if t.soundOn == nil || !t.soundOn() {
		return
	}
	if err := t.speaker.StartTone(freq, t.volume); err != nil {
		t.log.Warn("failed to start tone", logx.Err(err))
		return
	}
	t.toneUntil = now.Add(toneDuration)
}
