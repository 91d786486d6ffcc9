package sched

import "time"

// Task is a unit of periodic work. Step performs one tick of work and must
// return promptly; the runloop is cooperative and nothing reclaims the CPU
// from a blocked step.
//
// Tasks may additionally implement Starter and/or Stopper for lifecycle
// hooks. Hooks and steps are never invoked concurrently with themselves or
// with each other: everything runs on the scheduler goroutine.
type Task interface {
	Step(now time.Time) error
}

// Starter is an optional hook invoked exactly once when the task is
// activated, before its first due-check.
type Starter interface {
	Start(now time.Time) error
}

// Stopper is an optional hook invoked exactly once when the task is removed
// or the scheduler shuts down.
type Stopper interface {
	Stop(now time.Time) error
}

// StepFunc adapts a plain function to the Task interface.
type StepFunc func(now time.Time) error

func (f StepFunc) Step(now time.Time) error { return f(now) }

// Options describes a task's static scheduling properties.
//
// Name is used for the (priority, name) ordering tie-break and for
// diagnostics; registering two tasks under the same name is allowed but the
// caller gets two independent scheduling entries.
type Options struct {
	Name     string
	Priority int           // lower value runs first
	Period   time.Duration // <= 0 means "every pass"
	Budget   time.Duration // expected max step duration; 0 disables overrun accounting
	Disabled bool          // registered but skipped until enabled
}

func (o Options) normalized() Options {
	if o.Name == "" {
		o.Name = "task"
	}
	return o
}

// TaskStats is a point-in-time snapshot of one task's scheduling counters.
// Counters are cumulative for the task's lifetime and are never reset by
// reading them.
type TaskStats struct {
	Name      string
	Priority  int
	Period    time.Duration
	Budget    time.Duration
	Enabled   bool
	Runs      uint64
	Overruns  uint64
	Faults    uint64
	MaxJitter time.Duration
}
