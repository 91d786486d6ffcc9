// Package report periodically logs scheduler statistics: per-task run
// counts, overruns, faults and the worst observed jitter. It is the only
// consumer of the scheduler's stats snapshot.
package report

import (
	"time"

	"illo/internal/sched"
	logx "illo/pkg/logx"
)

var DefaultOptions = sched.Options{
	Name:     "report",
	Priority: 9,
	Period:   15 * time.Second,
	Budget:   100 * time.Millisecond,
}

type Task struct {
	stats func() []sched.TaskStats
	log   logx.Logger

	// Previous run counters, to report deltas instead of lifetime totals.
	prevRuns map[string]uint64
}

func New(stats func() []sched.TaskStats, log logx.Logger) *Task {
	return &Task{stats: stats, log: log, prevRuns: map[string]uint64{}}
}

func (t *Task) Step(now time.Time) error {
	for _, st := range t.stats() {
		delta := st.Runs - t.prevRuns[st.Name]
		t.prevRuns[st.Name] = st.Runs

		log := t.log.Info
		if st.Overruns > 0 || st.Faults > 0 {
			log = t.log.Warn
		}
		log("task stats",
			logx.String("task", st.Name),
			logx.Int("priority", st.Priority),
			logx.Bool("enabled", st.Enabled),
			logx.Uint64("runs", st.Runs),
			logx.Uint64("runs_delta", delta),
			logx.Uint64("overruns", st.Overruns),
			logx.Uint64("faults", st.Faults),
			logx.Duration("max_jitter", st.MaxJitter))
	}
	return nil
}
