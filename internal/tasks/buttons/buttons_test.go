package buttons

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"illo/internal/config"
	"illo/internal/eventbus"
	"illo/internal/hardware"
	logx "illo/pkg/logx"
)

func testManager(t *testing.T) *config.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"device": {"name": "illo", "pixels": 10, "driver": "sim"},
		"routine": {"active": "aware", "color_mode": 1},
		"audio": {"enabled": false},
		"logging": {"level": "info", "console": false, "file": {"enabled": false, "path": ""}}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	m := config.NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	return m
}

func drain(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestButtonACyclesRoutine(t *testing.T) {
	sim := hardware.NewSim(10)
	bus := eventbus.New()
	mgr := testManager(t)
	events, cancel := bus.Subscribe(16)
	defer cancel()

	task := New(sim, bus, mgr, nil, logx.Nop())
	now := time.Unix(100, 0)

	sim.SetButtons(hardware.ButtonState{A: true})
	if err := task.Step(now); err != nil {
		t.Fatal(err)
	}
	if got := mgr.Get().Routine.Active; got != "cruise" {
		t.Fatalf("active = %q, want cruise", got)
	}

	var sawChange bool
	for _, e := range drain(events) {
		if e.Type == eventbus.TypeRoutineChange {
			sawChange = true
			if e.Data != "cruise" {
				t.Fatalf("change data = %v", e.Data)
			}
		}
	}
	if !sawChange {
		t.Fatal("no routine_change event published")
	}
}

func TestButtonHeldDownFiresOnce(t *testing.T) {
	sim := hardware.NewSim(10)
	mgr := testManager(t)
	task := New(sim, eventbus.New(), mgr, nil, logx.Nop())
	now := time.Unix(100, 0)

	sim.SetButtons(hardware.ButtonState{A: true})
	for i := 0; i < 10; i++ {
		if err := task.Step(now.Add(time.Duration(i) * 20 * time.Millisecond)); err != nil {
			t.Fatal(err)
		}
	}
	if got := mgr.Get().Routine.Active; got != "cruise" {
		t.Fatalf("held button advanced to %q, want single step to cruise", got)
	}
}

func TestButtonDebounceWindow(t *testing.T) {
	sim := hardware.NewSim(10)
	mgr := testManager(t)
	task := New(sim, eventbus.New(), mgr, nil, logx.Nop())
	now := time.Unix(100, 0)

	press := func(at time.Time) {
		sim.SetButtons(hardware.ButtonState{B: true})
		if err := task.Step(at); err != nil {
			t.Fatal(err)
		}
		sim.SetButtons(hardware.ButtonState{})
		if err := task.Step(at.Add(20 * time.Millisecond)); err != nil {
			t.Fatal(err)
		}
	}

	press(now)                               // 1 -> 2
	press(now.Add(100 * time.Millisecond))   // inside debounce, ignored
	press(now.Add(1 * time.Second))          // 2 -> 3
	press(now.Add(2 * time.Second))          // 3 -> 1, wraps
	if got := mgr.Get().Routine.ColorMode; got != 1 {
		t.Fatalf("mode = %d, want wrap back to 1", got)
	}
}

func TestSelectionSavedAfterQuietPeriod(t *testing.T) {
	sim := hardware.NewSim(10)
	mgr := testManager(t)
	task := New(sim, eventbus.New(), mgr, nil, logx.Nop())
	now := time.Unix(100, 0)

	sim.SetButtons(hardware.ButtonState{A: true})
	if err := task.Step(now); err != nil {
		t.Fatal(err)
	}
	sim.SetButtons(hardware.ButtonState{})

	// Still inside the quiet window: file untouched.
	if err := task.Step(now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if onDisk(t, mgr.Path()).Routine.Active != "aware" {
		t.Fatal("config written before quiet period elapsed")
	}

	if err := task.Step(now.Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if got := onDisk(t, mgr.Path()).Routine.Active; got != "cruise" {
		t.Fatalf("saved active = %q, want cruise", got)
	}
}

func TestStopFlushesPendingSave(t *testing.T) {
	sim := hardware.NewSim(10)
	mgr := testManager(t)
	task := New(sim, eventbus.New(), mgr, nil, logx.Nop())
	now := time.Unix(100, 0)

	sim.SetButtons(hardware.ButtonState{B: true})
	if err := task.Step(now); err != nil {
		t.Fatal(err)
	}
	if err := task.Stop(now.Add(50 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if got := onDisk(t, mgr.Path()).Routine.ColorMode; got != 2 {
		t.Fatalf("saved mode = %d, want 2", got)
	}
}

func onDisk(t *testing.T, path string) config.Config {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		t.Fatal(err)
	}
	return cfg
}
