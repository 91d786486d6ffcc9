package sched

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"illo/pkg/logx"
)

const (
	defaultIdleSleep = 2 * time.Millisecond

	// Cap on per-task failure log lines. One line per second with a small
	// burst is plenty to notice a sick task without drowning everything else.
	faultLogRate  = rate.Limit(1)
	faultLogBurst = 3
)

type entry struct {
	task Task
	opts Options

	enabled   bool
	started   bool
	nextDue   time.Time
	lastStart time.Time
	runs      uint64
	overruns  uint64
	faults    uint64
	maxJitter time.Duration

	faultLimit *rate.Limiter
}

type enableReq struct {
	name    string
	enabled bool
}

// Scheduler drives a fixed-priority, single-goroutine cooperative runloop.
//
// The live task list is owned exclusively by the Run goroutine. Add, Remove
// and SetEnabled only touch the mutation queues (mutex-guarded, so they may
// also be called from other goroutines, e.g. a config-reload subscriber);
// the queues are drained between passes.
type Scheduler struct {
	log   logx.Logger
	clock Clock

	idleSleep      time.Duration
	housekeepEvery time.Duration
	housekeep      func()

	mu            sync.Mutex
	pendingAdd    []*entry
	pendingRemove []Task
	pendingEnable []enableReq

	// Run-goroutine state.
	entries       []*entry
	nextHousekeep time.Time
	running       bool
}

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithIdleSleep sets the minimum sleep after a pass in which no task ran.
func WithIdleSleep(d time.Duration) Option {
	return func(s *Scheduler) { s.idleSleep = d }
}

// WithHousekeeping installs a periodic scheduler-level hook (e.g. memory
// reclamation) that runs on its own interval, independent of any task.
func WithHousekeeping(every time.Duration, fn func()) Option {
	return func(s *Scheduler) {
		s.housekeepEvery = every
		s.housekeep = fn
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:       logx.Nop(),
		clock:     wallClock{},
		idleSleep: defaultIdleSleep,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add queues task for activation under opts and returns it for chaining.
// The task joins the live list between passes; its Start hook runs at that
// point. Re-adding the same task without removing it first yields two
// independent scheduling entries, which is on the caller.
func (s *Scheduler) Add(task Task, opts Options) Task {
	e := &entry{
		task:       task,
		opts:       opts.normalized(),
		enabled:    !opts.Disabled,
		faultLimit: rate.NewLimiter(faultLogRate, faultLogBurst),
	}
	s.mu.Lock()
	s.pendingAdd = append(s.pendingAdd, e)
	s.mu.Unlock()
	return task
}

// Remove queues task for deactivation. Its Stop hook runs when the removal
// is applied. Removing a task that is not registered is a no-op.
func (s *Scheduler) Remove(task Task) {
	s.mu.Lock()
	s.pendingRemove = append(s.pendingRemove, task)
	s.mu.Unlock()
}

// SetEnabled toggles every entry registered under name. Disabled tasks keep
// their slot but are skipped entirely: no due-check, no stats movement, no
// hook calls. Applied between passes like Add/Remove.
func (s *Scheduler) SetEnabled(name string, enabled bool) {
	s.mu.Lock()
	s.pendingEnable = append(s.pendingEnable, enableReq{name: name, enabled: enabled})
	s.mu.Unlock()
}

// Run drives the loop until ctx is canceled or Stop is called from a task.
// It always runs Stop hooks on exit, including when a pass panics.
func (s *Scheduler) Run(ctx context.Context) error {
	s.begin()
	defer s.shutdown()

	for s.running {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !s.pass(s.clock.Now()) {
			if err := s.clock.Sleep(ctx, s.idleSleep); err != nil {
				return err
			}
		}
	}
	return nil
}

// pass runs one scan: housekeeping, every due task in order, then the queued
// mutations. It reports whether any task ran, which gates the idle sleep.
func (s *Scheduler) pass(now time.Time) bool {
	if s.housekeep != nil && s.housekeepEvery > 0 && !now.Before(s.nextHousekeep) {
		s.housekeep()
		s.nextHousekeep = now.Add(s.housekeepEvery)
	}

	ran := false
	for _, e := range s.entries {
		if !e.enabled {
			continue
		}
		if now.Before(e.nextDue) {
			continue
		}
		s.runEntry(e, now)
		ran = true
	}

	s.applyMutations()
	return ran
}

// Stop ends the loop after the current pass. It is intended for use from
// within a task's Step; external callers should cancel the Run context
// instead.
func (s *Scheduler) Stop() { s.running = false }

// Stats returns a snapshot of every registered task's counters in execution
// order. It is safe to call from task steps and while the scheduler is not
// running; it never resets anything.
func (s *Scheduler) Stats() []TaskStats {
	out := make([]TaskStats, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, TaskStats{
			Name:      e.opts.Name,
			Priority:  e.opts.Priority,
			Period:    e.opts.Period,
			Budget:    e.opts.Budget,
			Enabled:   e.enabled,
			Runs:      e.runs,
			Overruns:  e.overruns,
			Faults:    e.faults,
			MaxJitter: e.maxJitter,
		})
	}
	return out
}

func (s *Scheduler) begin() {
	s.running = true
	s.applyMutations()
	if s.housekeep != nil && s.housekeepEvery > 0 {
		s.nextHousekeep = s.clock.Now().Add(s.housekeepEvery)
	}
}

func (s *Scheduler) shutdown() {
	now := s.clock.Now()
	for _, e := range s.entries {
		s.stopEntry(e, now)
	}
	s.running = false
}

// runEntry executes one due task with full accounting. now is the pass time
// used for the due-check; the completion clock read anchors rescheduling so
// step duration never accumulates as drift.
func (s *Scheduler) runEntry(e *entry, now time.Time) {
	// Lateness against the ideal start of this cycle, clamped at zero.
	ideal := e.nextDue.Add(-e.opts.Period)
	if late := now.Sub(ideal); late > 0 && late > e.maxJitter {
		e.maxJitter = late
	}

	e.lastStart = now
	s.stepEntry(e, now)
	done := s.clock.Now()

	e.runs++
	if e.opts.Budget > 0 && done.Sub(e.lastStart) > e.opts.Budget {
		e.overruns++
	}
	e.nextDue = done.Add(e.opts.Period)
}

func (s *Scheduler) stepEntry(e *entry, now time.Time) {
	defer s.recoverFault(e, "step")
	if err := e.task.Step(now); err != nil {
		s.fault(e, "step", err, "")
	}
}

// startEntry fires the Start hook at most once per activation. Disabled
// entries are not started; enabling one later starts it then.
func (s *Scheduler) startEntry(e *entry, now time.Time) {
	if e.started {
		return
	}
	e.started = true
	defer s.recoverFault(e, "start")
	if st, ok := e.task.(Starter); ok {
		if err := st.Start(now); err != nil {
			s.fault(e, "start", err, "")
		}
	}
}

func (s *Scheduler) stopEntry(e *entry, now time.Time) {
	if !e.started {
		return
	}
	e.started = false
	defer s.recoverFault(e, "stop")
	if st, ok := e.task.(Stopper); ok {
		if err := st.Stop(now); err != nil {
			s.fault(e, "stop", err, "")
		}
	}
}

func (s *Scheduler) recoverFault(e *entry, hook string) {
	if r := recover(); r != nil {
		s.fault(e, hook, fmt.Errorf("panic: %v", r), string(debug.Stack()))
	}
}

// fault records a contained task failure. The scheduler never escalates:
// the task stays registered and keeps its schedule.
func (s *Scheduler) fault(e *entry, hook string, err error, stack string) {
	e.faults++
	if !e.faultLimit.Allow() {
		return
	}
	s.log.Warn("task "+hook+" failed",
		logx.String("task", e.opts.Name),
		logx.Err(err),
		logx.Stack(stack))
}

// taskEqual reports whether two registered tasks are the same. Tasks backed
// by non-comparable types such as StepFunc would make == panic, so funcs are
// matched by code pointer and other non-comparable types never match.
func taskEqual(a, b Task) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if !ta.Comparable() {
		if ta.Kind() == reflect.Func {
			return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
		}
		return false
	}
	return a == b
}

// applyMutations drains the queued removes, enables and adds, in that order,
// then restores the (priority, name) execution order. Never called while a
// pass is scanning the list.
func (s *Scheduler) applyMutations() {
	s.mu.Lock()
	removes := s.pendingRemove
	enables := s.pendingEnable
	adds := s.pendingAdd
	s.pendingRemove = nil
	s.pendingEnable = nil
	s.pendingAdd = nil
	s.mu.Unlock()

	if len(removes) == 0 && len(enables) == 0 && len(adds) == 0 {
		return
	}

	for _, t := range removes {
		for i, e := range s.entries {
			if taskEqual(e.task, t) {
				s.stopEntry(e, s.clock.Now())
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				break
			}
		}
	}

	for _, req := range enables {
		for _, e := range s.entries {
			if e.opts.Name != req.name || e.enabled == req.enabled {
				continue
			}
			e.enabled = req.enabled
			if req.enabled {
				// Fresh schedule: time sat out while disabled is not lateness.
				now := s.clock.Now()
				e.nextDue = now.Add(e.opts.Period)
				s.startEntry(e, now)
			}
		}
	}

	if len(adds) > 0 {
		now := s.clock.Now()
		for _, e := range adds {
			e.nextDue = now.Add(e.opts.Period)
			if e.enabled {
				s.startEntry(e, now)
			}
			s.entries = append(s.entries, e)
		}
	}

	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if a.opts.Priority != b.opts.Priority {
			return a.opts.Priority < b.opts.Priority
		}
		return a.opts.Name < b.opts.Name
	})
}
