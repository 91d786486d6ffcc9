// Package sched implements illo's cooperative task runloop.
//
// # Overview
//
// The scheduler owns an ordered set of periodic tasks and drives them from a
// single goroutine. Tasks are sorted by (priority, name), lower priority
// value first, and every pass runs each enabled task whose period has
// elapsed. There is no preemption: a task keeps the loop until its Step
// returns, so steps must stay short.
//
// # Registration
//
// Add and Remove never touch the live task list. They enqueue mutations that
// are applied between passes, which makes them safe to call from inside a
// running task's Step (e.g. a routine swapping itself out). Removing a task
// that is not registered is a no-op. SetEnabled follows the same deferred
// discipline.
//
// # Timing accounting
//
// Each task carries a period and a time budget. After a step completes, the
// next due time is recomputed from the completion clock read, so execution
// overhead does not accumulate drift. A step that takes longer than its
// budget increments the task's overrun counter; lateness relative to the
// ideal due time feeds a max-jitter watermark. Both are purely observational
// and surface through Stats().
//
// # Failure containment
//
// An error or panic escaping a task's Start, Step or Stop is logged with the
// task's name and otherwise swallowed: a persistently failing task keeps its
// slot and its schedule. Dropping periodic work (button polling, sensor
// sampling) would destabilize the device far more than a logged failure.
// Per-task error logging is rate limited so a failing 20ms task cannot
// flood the sinks.
package sched
