// Package maintenance is the background janitor: it watches heap usage,
// nudges the garbage collector when memory runs high, and compacts storage
// on a nightly cron schedule.
package maintenance

import (
	"context"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"

	"illo/internal/sched"
	"illo/internal/storage"
	logx "illo/pkg/logx"
)

var DefaultOptions = sched.Options{
	Name:     "maintenance",
	Priority: 8,
	Period:   10 * time.Second,
	Budget:   time.Second,
}

const (
	defaultLowMemory      = 64 << 20  // bytes of heap before we start warning
	defaultCriticalMemory = 128 << 20 // bytes of heap before we force a collect
	defaultDeepClean      = "30 3 * * *"
)

type Task struct {
	store storage.Store
	log   logx.Logger

	lowMemory      uint64
	criticalMemory uint64

	schedule  cron.Schedule
	nextClean time.Time
}

// New builds the maintenance task. deepClean is a standard 5-field cron
// expression; empty selects the default nightly slot. Thresholds of zero
// select defaults.
func New(store storage.Store, log logx.Logger, deepClean string, lowMemory, criticalMemory uint64) (*Task, error) {
	if deepClean == "" {
		deepClean = defaultDeepClean
	}
	schedule, err := cron.ParseStandard(deepClean)
	if err != nil {
		return nil, err
	}
	if lowMemory == 0 {
		lowMemory = defaultLowMemory
	}
	if criticalMemory == 0 {
		criticalMemory = defaultCriticalMemory
	}
	return &Task{
		store:          store,
		log:            log,
		lowMemory:      lowMemory,
		criticalMemory: criticalMemory,
		schedule:       schedule,
	}, nil
}

func (t *Task) Start(now time.Time) error {
	t.nextClean = t.schedule.Next(now)
	t.log.Info("maintenance started",
		logx.Time("next_deep_clean", t.nextClean))
	return nil
}

func (t *Task) Step(now time.Time) error {
	t.checkMemory()
	if !t.nextClean.IsZero() && !now.Before(t.nextClean) {
		t.nextClean = t.schedule.Next(now)
		t.deepClean(now)
	}
	return nil
}

func (t *Task) checkMemory() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	switch {
	case m.HeapAlloc >= t.criticalMemory:
		t.log.Warn("critical memory pressure, forcing collect",
			logx.Uint64("heap_alloc", m.HeapAlloc),
			logx.Uint64("heap_sys", m.HeapSys))
		runtime.GC()
	case m.HeapAlloc >= t.lowMemory:
		t.log.Warn("memory running high",
			logx.Uint64("heap_alloc", m.HeapAlloc),
			logx.Uint64("heap_sys", m.HeapSys))
	default:
		t.log.Debug("memory ok",
			logx.Uint64("heap_alloc", m.HeapAlloc),
			logx.Uint64("goroutines", uint64(runtime.NumGoroutine())))
	}
}

func (t *Task) deepClean(now time.Time) {
	if t.store == nil {
		return
	}
	started := time.Now()
	if err := t.store.Compact(context.Background()); err != nil {
		t.log.Error("deep clean failed", logx.Err(err))
		return
	}
	t.log.Info("deep clean complete",
		logx.Duration("took", time.Since(started)),
		logx.Time("next", t.nextClean))
}
