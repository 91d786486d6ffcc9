// Package buttons polls the board's two push buttons and the slide switch.
// Button A cycles the active routine, button B cycles the color mode, the
// switch gates sound. Selections are written back to the config file after a
// short quiet period so a burst of presses costs one write.
package buttons

import (
	"context"
	"time"

	"illo/internal/config"
	"illo/internal/eventbus"
	"illo/internal/hardware"
	"illo/internal/sched"
	"illo/internal/storage"
	logx "illo/pkg/logx"
)

// Routines is the cycle order for button A.
var Routines = []string{"aware", "cruise", "meditate", "dance"}

const (
	colorModes = 3

	debounceDelay = 300 * time.Millisecond
	saveDelay     = 2 * time.Second
)

// DefaultOptions is the scheduling slot this task is built for. Button polls
// run first: a missed press is the most visible failure the toy has.
var DefaultOptions = sched.Options{
	Name:     "buttons",
	Priority: 0,
	Period:   20 * time.Millisecond,
	Budget:   5 * time.Millisecond,
}

type Task struct {
	sensors hardware.Sensors
	bus     eventbus.Bus
	cfg     *config.Manager
	store   storage.Store
	log     logx.Logger

	prevA, prevB bool
	lastA, lastB time.Time

	soundOn bool

	dirty     bool
	lastPress time.Time
}

func New(sensors hardware.Sensors, bus eventbus.Bus, cfg *config.Manager, store storage.Store, log logx.Logger) *Task {
	return &Task{sensors: sensors, bus: bus, cfg: cfg, store: store, log: log}
}

// SoundOn reports the slide switch position from the latest poll.
func (t *Task) SoundOn() bool { return t.soundOn }

func (t *Task) Step(now time.Time) error {
	st, err := t.sensors.Buttons()
	if err != nil {
		return err
	}
	t.soundOn = st.Switch

	// Rising edges only, with a per-button debounce window.
	if st.A && !t.prevA && now.Sub(t.lastA) > debounceDelay {
		t.lastA = now
		t.cycleRoutine(now)
	}
	if st.B && !t.prevB && now.Sub(t.lastB) > debounceDelay {
		t.lastB = now
		t.cycleMode(now)
	}
	t.prevA, t.prevB = st.A, st.B

	if t.dirty && now.Sub(t.lastPress) > saveDelay {
		t.dirty = false
		if err := t.persist(); err != nil {
			t.log.Error("failed to persist selection", logx.Err(err))
		}
	}
	return nil
}

// Stop flushes a pending selection save so a press right before shutdown is
// not lost.
func (t *Task) Stop(now time.Time) error {
	if !t.dirty {
		return nil
	}
	t.dirty = false
	return t.persist()
}

func (t *Task) cycleRoutine(now time.Time) {
	cfg := *t.cfg.Get()
	next := Routines[(routineIndex(cfg.Routine.Active)+1)%len(Routines)]

	t.log.Info("routine selected", logx.String("routine", next))
	t.bus.Publish(eventbus.Event{Type: eventbus.TypeButtonA, Time: now})
	t.bus.Publish(eventbus.Event{Type: eventbus.TypeRoutineChange, Time: now, Data: next})
	t.record(now, "button_a", next)

	cfg.Routine.Active = next
	t.cfg.Commit(&cfg)
	t.dirty = true
	t.lastPress = now
}

func (t *Task) cycleMode(now time.Time) {
	cfg := *t.cfg.Get()
	mode := cfg.Routine.ColorMode%colorModes + 1

	t.log.Info("color mode selected",
		logx.Int("mode", mode),
		logx.String("name", hardware.ModeDescription(hardware.ColorMode(mode))))
	t.bus.Publish(eventbus.Event{Type: eventbus.TypeButtonB, Time: now})
	t.bus.Publish(eventbus.Event{Type: eventbus.TypeModeChange, Time: now, Data: mode})
	t.record(now, "button_b", cfg.Routine.Active)

	cfg.Routine.ColorMode = mode
	t.cfg.Commit(&cfg)
	t.dirty = true
	t.lastPress = now
}

func (t *Task) persist() error {
	return t.cfg.Save(t.cfg.Get())
}

func (t *Task) record(at time.Time, kind, routine string) {
	if t.store == nil {
		return
	}
	err := t.store.AppendInteraction(context.Background(), storage.InteractionEvent{
		At: at, Kind: kind, Routine: routine,
	})
	if err != nil {
		t.log.Warn("failed to record interaction", logx.Err(err))
	}
}

func routineIndex(name string) int {
	for i, r := range Routines {
		if r == name {
			return i
		}
	}
	return 0
}
