// Package app assembles the program: config, logging, storage, bus,
// hardware, scheduler and tasks, in that order. Run drives the scheduler
// and the config watcher until the context is canceled.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"illo/internal/config"
	"illo/internal/eventbus"
	"illo/internal/hardware"
	"illo/internal/sched"
	"illo/internal/storage"
	"illo/internal/tasks/buttons"
	"illo/internal/tasks/interactions"
	"illo/internal/tasks/maintenance"
	"illo/internal/tasks/report"
	"illo/internal/tasks/routine"
	logx "illo/pkg/logx"
)

// Options are the command-line level knobs.
type Options struct {
	ConfigPath string
	// ForceSim runs against the in-memory device even if the config names a
	// serial port.
	ForceSim bool
	// LogLevel overrides logging.level from the config when non-empty.
	LogLevel string
}

type App struct {
	opts Options

	cfgm  *config.Manager
	logs  *logx.Service
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	ring    hardware.Ring
	sensors hardware.Sensors
	speaker hardware.Speaker

	scheduler *sched.Scheduler
	btn       *buttons.Task
	sup       *routine.Supervisor

	watchdog bool
}

func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logCfg(cfg, opts.LogLevel))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(validate)

	a := &App{
		opts: opts,
		cfgm: cfgm,
		logs: logSvc,
		log:  log,
		bus:  eventbus.New(),
	}

	if cfg.Storage != nil {
		sc, err := mapStorageConfig(cfg.Storage)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		if st != nil {
			a.store = st
			log.Info("storage enabled", logx.String("driver", sc.Driver))
		}
	}

	if err := a.openHardware(cfg); err != nil {
		return nil, err
	}
	if err := a.buildScheduler(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

func logCfg(cfg *config.Config, override string) logx.Config {
	level := cfg.Logging.Level
	if override != "" {
		level = override
	}
	return logx.Config{
		Level:   level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(sc *config.StorageConfig) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: sc.Driver, Path: sc.Path, BusyTimeout: busy}, nil
}

func (a *App) openHardware(cfg *config.Config) error {
	pixels := cfg.Device.Pixels
	if pixels <= 0 {
		pixels = 10
	}
	sim := hardware.NewSim(pixels)
	a.ring, a.sensors, a.speaker = sim, sim, sim

	if a.opts.ForceSim || cfg.Device.Driver != "serial" {
		a.log.Info("using simulated hardware", logx.Int("pixels", pixels))
		return nil
	}

	baud := cfg.Device.Serial.Baud
	if baud <= 0 {
		baud = 115200
	}
	ring, err := hardware.OpenSerialRing(cfg.Device.Serial.Port, baud, pixels)
	if err != nil {
		return fmt.Errorf("device.serial: %w", err)
	}
	// The bridge only drives pixels; inputs stay simulated.
	a.ring = ring
	a.log.Info("serial ring opened",
		logx.String("port", cfg.Device.Serial.Port),
		logx.Int("baud", baud),
		logx.Int("pixels", pixels))
	return nil
}

func (a *App) buildScheduler(cfg *config.Config) error {
	idle, err := config.ParseDurationOrDefault("scheduler.min_idle_sleep",
		cfg.Scheduler.MinIdleSleep, 2*time.Millisecond)
	if err != nil {
		return err
	}
	housekeep, err := config.ParseDurationOrDefault("scheduler.housekeeping_interval",
		cfg.Scheduler.HousekeepingInterval, time.Second)
	if err != nil {
		return err
	}

	s := sched.New(
		sched.WithLogger(a.log.With(logx.String("comp", "sched"))),
		sched.WithIdleSleep(idle),
		sched.WithHousekeeping(housekeep, a.housekeep),
	)
	a.scheduler = s

	a.btn = buttons.New(a.sensors, a.bus, a.cfgm, a.store,
		a.log.With(logx.String("comp", "buttons")))

	a.sup = routine.NewSupervisor(routine.Deps{
		Ring:        a.ring,
		Speaker:     a.speaker,
		Sensors:     a.sensors,
		Bus:         a.bus,
		Store:       a.store,
		Log:         a.log.With(logx.String("comp", "routine")),
		Sched:       s,
		SoundOn:     a.soundOn(cfg),
		Volume:      cfg.Audio.Volume,
		FramePeriod: tuningDuration(cfg.Tasks.Routine.Period),
		Brightness:  cfg.Device.Brightness,
	}, cfg.Routine.Active, cfg.Routine.ColorMode)

	inter := interactions.New(a.sensors, a.speaker, a.bus, a.store,
		a.log.With(logx.String("comp", "interactions")),
		a.sup.Active, a.btn.SoundOn)
	tap, err := config.ParseDurationOrDefault("tasks.interactions.tap_debounce",
		cfg.Tasks.Interactions.TapDebounce, 0)
	if err != nil {
		return err
	}
	shake, err := config.ParseDurationOrDefault("tasks.interactions.shake_debounce",
		cfg.Tasks.Interactions.ShakeDebounce, 0)
	if err != nil {
		return err
	}
	inter.SetDebounce(tap, shake)
	inter.SetVolume(cfg.Audio.Volume)

	maint, err := maintenance.New(a.store,
		a.log.With(logx.String("comp", "maintenance")),
		cfg.Tasks.Maintenance.DeepClean,
		cfg.Tasks.Maintenance.LowMemory,
		cfg.Tasks.Maintenance.CriticalMemory)
	if err != nil {
		return fmt.Errorf("tasks.maintenance: %w", err)
	}

	rep := report.New(s.Stats, a.log.With(logx.String("comp", "report")))

	s.Add(a.btn, tuned(buttons.DefaultOptions, cfg.Tasks.Buttons))
	s.Add(inter, tuned(interactions.DefaultOptions, cfg.Tasks.Interactions.TaskTuning))
	s.Add(a.sup, tuned(routine.SupervisorOptions, cfg.Tasks.Routine))
	s.Add(maint, tuned(maintenance.DefaultOptions, cfg.Tasks.Maintenance.TaskTuning))
	s.Add(rep, tuned(report.DefaultOptions, cfg.Tasks.Report))
	return nil
}

// soundOn gates tones on both the config switch and the live slide switch.
func (a *App) soundOn(cfg *config.Config) func() bool {
	enabled := cfg.Audio.Enabled
	return func() bool { return enabled && a.btn.SoundOn() }
}

// tuned applies config overrides on top of a task's default slot. Bad
// durations were already rejected by the validator; here they just keep the
// default.
func tuned(base sched.Options, t config.TaskTuning) sched.Options {
	if t.Enabled != nil && !*t.Enabled {
		base.Disabled = true
	}
	if d := tuningDuration(t.Period); d > 0 {
		base.Period = d
	}
	if d := tuningDuration(t.Budget); d > 0 {
		base.Budget = d
	}
	return base
}

func tuningDuration(raw string) time.Duration {
	d, err := config.ParseDurationOrDefault("", raw, 0)
	if err != nil {
		return 0
	}
	return d
}

// Run blocks until ctx is canceled or a component fails. It owns the
// shutdown order: scheduler first (stops every task), then hardware and
// storage, then logging.
func (a *App) Run(ctx context.Context) error {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready")
	}
	if every, err := daemon.SdWatchdogEnabled(false); err == nil && every > 0 {
		a.watchdog = true
	}

	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		err := a.cfgm.Watch(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case cfg := <-sub:
				a.applyReload(cfg)
			}
		}
	})

	err := g.Wait()
	a.close()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// Ordinary signal-driven shutdown.
		return nil
	}
	return err
}

// applyReload carries over the hot-reloadable parts of a new config:
// logging and per-task enablement. Everything else (hardware, storage,
// scheduler timing) needs a restart and is deliberately left alone.
func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.log.Info("applying reloaded config")
	a.logs.Apply(logCfg(cfg, a.opts.LogLevel))

	for name, t := range map[string]config.TaskTuning{
		"buttons":      cfg.Tasks.Buttons,
		"interactions": cfg.Tasks.Interactions.TaskTuning,
		"routines":     cfg.Tasks.Routine,
		"maintenance":  cfg.Tasks.Maintenance.TaskTuning,
		"report":       cfg.Tasks.Report,
	} {
		if t.Enabled != nil {
			a.scheduler.SetEnabled(name, *t.Enabled)
		}
	}
}

// housekeep runs on the scheduler's housekeeping interval, inside the
// runloop goroutine.
func (a *App) housekeep() {
	if a.watchdog {
		daemon.SdNotify(false, daemon.SdNotifyWatchdog)
	}
}

func (a *App) close() {
	if err := a.ring.Close(); err != nil {
		a.log.Warn("failed to close ring", logx.Err(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close storage", logx.Err(err))
		}
	}
	a.log.Info("shutdown complete")
	a.logs.Close()
}

// validate rejects configs that would break a hot reload.
func validate(ctx context.Context, cfg *config.Config) error {
	if cfg.Device.Pixels < 0 {
		return fmt.Errorf("device.pixels must be >= 0")
	}
	if cfg.Routine.ColorMode < 1 || cfg.Routine.ColorMode > 3 {
		return fmt.Errorf("routine.color_mode must be 1-3")
	}
	if _, err := config.ParseDurationField("scheduler.min_idle_sleep", cfg.Scheduler.MinIdleSleep); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("scheduler.housekeeping_interval", cfg.Scheduler.HousekeepingInterval); err != nil {
		return err
	}
	for path, raw := range map[string]string{
		"tasks.buttons.period":              cfg.Tasks.Buttons.Period,
		"tasks.buttons.budget":              cfg.Tasks.Buttons.Budget,
		"tasks.interactions.period":         cfg.Tasks.Interactions.Period,
		"tasks.interactions.budget":         cfg.Tasks.Interactions.Budget,
		"tasks.interactions.tap_debounce":   cfg.Tasks.Interactions.TapDebounce,
		"tasks.interactions.shake_debounce": cfg.Tasks.Interactions.ShakeDebounce,
		"tasks.routine.period":              cfg.Tasks.Routine.Period,
		"tasks.routine.budget":              cfg.Tasks.Routine.Budget,
		"tasks.maintenance.period":          cfg.Tasks.Maintenance.Period,
		"tasks.maintenance.budget":          cfg.Tasks.Maintenance.Budget,
		"tasks.report.period":               cfg.Tasks.Report.Period,
		"tasks.report.budget":               cfg.Tasks.Report.Budget,
	} {
		if _, err := config.ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	if cfg.Storage != nil {
		if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
