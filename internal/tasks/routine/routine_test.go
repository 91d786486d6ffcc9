package routine

import (
	"path/filepath"
	"testing"
	"time"

	"illo/internal/eventbus"
	"illo/internal/hardware"
	"illo/internal/sched"
	"illo/internal/storage"
	logx "illo/pkg/logx"
)

func testShared(t *testing.T, sim *hardware.Sim) *shared {
	t.Helper()
	return &shared{
		deps: Deps{
			Ring:    sim,
			Speaker: sim,
			Sensors: sim,
			Bus:     eventbus.New(),
			Log:     logx.Nop(),
			Sched:   sched.New(),
		},
		frame:      hardware.NewFrame(sim.Size()),
		out:        hardware.NewFrame(sim.Size()),
		mode:       hardware.ModeRainbow,
		brightness: 0.5,
	}
}

func litPixels(f hardware.Frame) int {
	n := 0
	for _, c := range f {
		if c != (hardware.RGB{}) {
			n++
		}
	}
	return n
}

func TestMeditateBreathingPhases(t *testing.T) {
	sim := hardware.NewSim(10)
	m := &meditate{s: testShared(t, sim)}
	now := time.Unix(100, 0)
	if err := m.Start(now); err != nil {
		t.Fatal(err)
	}

	// Early inhale: only the center pair is lit.
	if err := m.Step(now.Add(600 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	f := sim.LastFrame()
	if got := litPixels(f); got != 2 {
		t.Fatalf("early inhale lit %d pixels, want 2", got)
	}
	if f[4] == (hardware.RGB{}) || f[5] == (hardware.RGB{}) {
		t.Fatal("inhale should light the center pair first")
	}

	// Hold: the whole ring.
	if err := m.Step(now.Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if got := litPixels(sim.LastFrame()); got != 10 {
		t.Fatalf("hold lit %d pixels, want 10", got)
	}

	// Late exhale: back down to the center.
	if err := m.Step(now.Add(11800 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if got := litPixels(sim.LastFrame()); got > 2 {
		t.Fatalf("late exhale lit %d pixels, want at most 2", got)
	}
}

func TestMeditatePhaseTones(t *testing.T) {
	sim := hardware.NewSim(10)
	s := testShared(t, sim)
	s.deps.SoundOn = func() bool { return true }
	s.deps.Volume = 0.25
	m := &meditate{s: s}
	now := time.Unix(100, 0)
	if err := m.Start(now); err != nil {
		t.Fatal(err)
	}

	for _, at := range []time.Duration{
		100 * time.Millisecond, // inhale
		5 * time.Second,        // hold
		8 * time.Second,        // exhale
	} {
		if err := m.Step(now.Add(at)); err != nil {
			t.Fatal(err)
		}
	}
	want := []float64{inhaleToneHz, holdToneHz, exhaleToneHz}
	got := sim.Tones()
	if len(got) != len(want) {
		t.Fatalf("tones = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tones = %v, want %v", got, want)
		}
	}
	if sim.ToneVolume() != 0.25 {
		t.Fatalf("tone volume = %v, want 0.25", sim.ToneVolume())
	}
}

func TestDanceBatonAdvancesAndFlipsOnBeat(t *testing.T) {
	sim := hardware.NewSim(10)
	d := &dance{s: testShared(t, sim)}
	now := time.Unix(100, 0)
	if err := d.Start(now); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		if err := d.Step(now.Add(time.Duration(i) * danceStep)); err != nil {
			t.Fatal(err)
		}
	}
	if d.pos != 3 || d.dir != 1 {
		t.Fatalf("pos=%d dir=%d after 3 steps, want pos=3 dir=1", d.pos, d.dir)
	}

	sim.SetSoundLevel(0.9)
	beatAt := now.Add(4 * danceStep)
	if err := d.Step(beatAt); err != nil {
		t.Fatal(err)
	}
	if d.dir != -1 {
		t.Fatal("beat should flip direction")
	}
	if litPixels(sim.LastFrame()) < 3 {
		t.Fatal("beat should add a spark pixel")
	}

	// Spark dies out, baton walks backwards.
	sim.SetSoundLevel(0)
	if err := d.Step(beatAt.Add(2 * danceStep)); err != nil {
		t.Fatal(err)
	}
	if litPixels(sim.LastFrame()) != 2 {
		t.Fatalf("lit=%d after spark expiry, want 2", litPixels(sim.LastFrame()))
	}
	if d.pos != 1 {
		t.Fatalf("pos=%d, want baton walking backwards to 1", d.pos)
	}
}

func TestCruiseSpinsFasterWithSound(t *testing.T) {
	sim := hardware.NewSim(10)
	c := &cruise{s: testShared(t, sim)}
	now := time.Unix(100, 0)
	if err := c.Start(now); err != nil {
		t.Fatal(err)
	}

	if err := c.Step(now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	quiet := c.offset

	sim.SetSoundLevel(1)
	if err := c.Step(now.Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	loud := c.offset - quiet
	if loud <= quiet {
		t.Fatalf("loud advance %.2f not faster than quiet %.2f", loud, quiet)
	}
	if litPixels(sim.LastFrame()) < 3 {
		t.Fatal("comet should light head and trail")
	}
}

func TestAwareMoodFollowsEnergy(t *testing.T) {
	sim := hardware.NewSim(10)
	s := testShared(t, sim)
	a := &aware{s: s, log: logx.Nop()}
	now := time.Unix(100, 0)
	if err := a.Start(now); err != nil {
		t.Fatal(err)
	}

	s.energy = 1
	if err := a.Step(now.Add(33 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if a.mood != "excited" {
		t.Fatalf("mood = %q, want excited", a.mood)
	}

	// A minute of neglect calms it down.
	for i := 0; i < 60; i++ {
		if err := a.Step(now.Add(time.Duration(i+2) * time.Second)); err != nil {
			t.Fatal(err)
		}
	}
	if a.mood != "calm" {
		t.Fatalf("mood = %q after decay, want calm", a.mood)
	}
}

func TestAwareStatePersistsAcrossRestart(t *testing.T) {
	store, err := storage.Open(storage.Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "illo"),
	}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	sim := hardware.NewSim(10)
	s := testShared(t, sim)
	s.taps, s.shakes, s.energy = 7, 3, 0.9
	a := &aware{s: s, store: store, log: logx.Nop()}
	now := time.Unix(100, 0)
	a.mood = "excited"
	if err := a.Stop(now); err != nil {
		t.Fatal(err)
	}

	s2 := testShared(t, hardware.NewSim(10))
	a2 := &aware{s: s2, store: store, log: logx.Nop()}
	if err := a2.Start(now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if s2.taps != 7 || s2.shakes != 3 {
		t.Fatalf("restored taps=%d shakes=%d, want 7/3", s2.taps, s2.shakes)
	}
	if a2.mood != "excited" {
		t.Fatalf("restored mood = %q", a2.mood)
	}
}

func TestSupervisorSwapsRenderers(t *testing.T) {
	sim := hardware.NewSim(10)
	bus := eventbus.New()
	sup := NewSupervisor(Deps{
		Ring:    sim,
		Speaker: sim,
		Sensors: sim,
		Bus:     bus,
		Log:     logx.Nop(),
		Sched:   sched.New(),
	}, "aware", 1)

	now := time.Unix(100, 0)
	if err := sup.Start(now); err != nil {
		t.Fatal(err)
	}
	defer sup.Stop(now)

	if _, ok := sup.current.(*aware); !ok {
		t.Fatalf("initial renderer = %T, want *aware", sup.current)
	}

	bus.Publish(eventbus.Event{Type: eventbus.TypeRoutineChange, Data: "dance"})
	bus.Publish(eventbus.Event{Type: eventbus.TypeModeChange, Data: 3})
	if err := sup.Step(now.Add(50 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if sup.Active() != "dance" {
		t.Fatalf("active = %q, want dance", sup.Active())
	}
	if _, ok := sup.current.(*dance); !ok {
		t.Fatalf("renderer = %T, want *dance", sup.current)
	}
	if sup.state.mode != hardware.ModeBlue {
		t.Fatalf("mode = %d, want blue", sup.state.mode)
	}
}

func TestSupervisorAccumulatesEnergyFromInteractions(t *testing.T) {
	sim := hardware.NewSim(10)
	bus := eventbus.New()
	sup := NewSupervisor(Deps{
		Ring: sim, Speaker: sim, Sensors: sim,
		Bus: bus, Log: logx.Nop(), Sched: sched.New(),
	}, "aware", 1)

	now := time.Unix(100, 0)
	if err := sup.Start(now); err != nil {
		t.Fatal(err)
	}
	defer sup.Stop(now)

	bus.Publish(eventbus.Event{Type: eventbus.TypeTap})
	bus.Publish(eventbus.Event{Type: eventbus.TypeShake})
	if err := sup.Step(now); err != nil {
		t.Fatal(err)
	}
	if sup.state.taps != 1 || sup.state.shakes != 1 {
		t.Fatalf("taps=%d shakes=%d", sup.state.taps, sup.state.shakes)
	}
	if got := sup.state.energy; got < 0.44 || got > 0.46 {
		t.Fatalf("energy = %v, want 0.45", got)
	}
}
