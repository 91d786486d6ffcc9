// Package routine renders the ring. One renderer is active at a time
// (aware, cruise, meditate, dance); a small supervisor task listens to the
// bus and swaps renderers through the scheduler's deferred add/remove, so a
// switch never interrupts a frame in flight.
package routine

import (
	"time"

	"illo/internal/eventbus"
	"illo/internal/hardware"
	"illo/internal/sched"
	"illo/internal/storage"
	logx "illo/pkg/logx"
)

// Deps wires a Supervisor to the rest of the program.
type Deps struct {
	Ring    hardware.Ring
	Speaker hardware.Speaker
	Sensors hardware.Sensors
	Bus     eventbus.Bus
	Store   storage.Store
	Log     logx.Logger
	Sched   *sched.Scheduler

	// SoundOn gates feedback tones, nil means always off.
	SoundOn func() bool
	// Volume is the tone level in (0, 1]; out-of-range means full.
	Volume float64

	// FramePeriod is the renderer cadence; 0 means ~30 fps.
	FramePeriod time.Duration
	// Brightness caps the ring output, 0 means full.
	Brightness float64
}

// SupervisorOptions is the scheduling slot for the supervisor itself.
// Renderers run separately at frame rate under renderOptions.
var SupervisorOptions = sched.Options{
	Name:     "routines",
	Priority: 2,
	Period:   50 * time.Millisecond,
	Budget:   10 * time.Millisecond,
}

const defaultFramePeriod = 33 * time.Millisecond

func (d Deps) renderOptions(name string) sched.Options {
	period := d.FramePeriod
	if period <= 0 {
		period = defaultFramePeriod
	}
	return sched.Options{
		Name:     "routine/" + name,
		Priority: 3,
		Period:   period,
		Budget:   15 * time.Millisecond,
	}
}

// shared is the state every renderer draws against. Everything here is
// touched only from the scheduler goroutine.
type shared struct {
	deps  Deps
	frame hardware.Frame
	out   hardware.Frame
	mode  hardware.ColorMode

	brightness float64 // smoothed ambient-adapted level

	// Interaction energy, fed by the supervisor, consumed by aware.
	energy    float64
	taps      uint64
	shakes    uint64
	lastTouch time.Time
}

func (s *shared) soundOn() bool {
	return s.deps.SoundOn != nil && s.deps.SoundOn()
}

func (s *shared) volume() float64 {
	if v := s.deps.Volume; v > 0 && v <= 1 {
		return v
	}
	return 1
}

// show pushes the working frame to the ring, scaled by the current
// brightness. The working frame is left untouched so renderers can fade it.
func (s *shared) show() error {
	copy(s.out, s.frame)
	s.out.Scale(s.brightness)
	return s.deps.Ring.Render(s.out)
}

// adaptBrightness nudges the output level toward a target chosen from
// ambient light, 1% per frame so transitions breathe instead of snapping.
func (s *shared) adaptBrightness() {
	light, err := s.deps.Sensors.Light()
	if err != nil {
		return
	}
	limit := s.deps.Brightness
	if limit <= 0 || limit > 1 {
		limit = 1
	}
	var target float64
	switch {
	case light < 0.05: // near dark
		target = 0.15
	case light < 0.2: // dim room
		target = 0.3
	case light < 0.5: // indoor
		target = 0.6
	default:
		target = 1
	}
	target *= limit
	switch {
	case s.brightness < target-0.01:
		s.brightness += 0.01
	case s.brightness > target+0.01:
		s.brightness -= 0.01
	default:
		s.brightness = target
	}
}

// Supervisor owns renderer selection. It is itself a scheduler task.
type Supervisor struct {
	deps  Deps
	state *shared

	active  string
	current sched.Task

	events <-chan eventbus.Event
	cancel func()
}

// NewSupervisor builds a supervisor that starts with the named routine and
// color mode.
func NewSupervisor(deps Deps, active string, mode int) *Supervisor {
	st := &shared{
		deps:       deps,
		frame:      hardware.NewFrame(deps.Ring.Size()),
		out:        hardware.NewFrame(deps.Ring.Size()),
		mode:       hardware.ColorMode(mode),
		brightness: 0.5,
	}
	if st.mode < hardware.ModeRainbow || st.mode > hardware.ModeBlue {
		st.mode = hardware.ModeRainbow
	}
	return &Supervisor{deps: deps, state: st, active: active}
}

// Active reports the current routine name. Safe to call from other tasks on
// the same scheduler.
func (sup *Supervisor) Active() string { return sup.active }

func (sup *Supervisor) Start(now time.Time) error {
	sup.events, sup.cancel = sup.deps.Bus.Subscribe(64)
	sup.install(sup.active)
	return nil
}

func (sup *Supervisor) Step(now time.Time) error {
	for {
		select {
		case e := <-sup.events:
			sup.handle(now, e)
		default:
			return nil
		}
	}
}

func (sup *Supervisor) Stop(now time.Time) error {
	if sup.cancel != nil {
		sup.cancel()
		sup.cancel = nil
	}
	if sup.current != nil {
		sup.deps.Sched.Remove(sup.current)
		sup.current = nil
	}
	return nil
}

func (sup *Supervisor) handle(now time.Time, e eventbus.Event) {
	switch e.Type {
	case eventbus.TypeRoutineChange:
		name, ok := e.Data.(string)
		if !ok || name == sup.active {
			return
		}
		sup.swap(name)
	case eventbus.TypeModeChange:
		mode, ok := e.Data.(int)
		if !ok {
			return
		}
		sup.state.mode = hardware.ColorMode(mode)
	case eventbus.TypeTap:
		sup.state.taps++
		sup.boost(now, 0.15)
	case eventbus.TypeShake:
		sup.state.shakes++
		sup.boost(now, 0.3)
	case eventbus.TypeLightTrigger:
		sup.boost(now, 0.1)
	}
}

func (sup *Supervisor) boost(now time.Time, amount float64) {
	sup.state.energy += amount
	if sup.state.energy > 1 {
		sup.state.energy = 1
	}
	sup.state.lastTouch = now
}

func (sup *Supervisor) swap(name string) {
	sup.deps.Log.Info("switching routine",
		logx.String("from", sup.active), logx.String("to", name))
	if sup.current != nil {
		sup.deps.Sched.Remove(sup.current)
	}
	sup.active = name
	sup.install(name)
}

func (sup *Supervisor) install(name string) {
	r := sup.makeRenderer(name)
	sup.current = sup.deps.Sched.Add(r, sup.deps.renderOptions(name))
}

func (sup *Supervisor) makeRenderer(name string) sched.Task {
	switch name {
	case "cruise":
		return &cruise{s: sup.state}
	case "meditate":
		return &meditate{s: sup.state}
	case "dance":
		return &dance{s: sup.state}
	default:
		return &aware{s: sup.state, store: sup.deps.Store, log: sup.deps.Log}
	}
}
