package report

import (
	"testing"
	"time"

	"illo/internal/sched"
	logx "illo/pkg/logx"
)

func TestReportTracksRunDeltas(t *testing.T) {
	stats := []sched.TaskStats{{Name: "buttons", Runs: 100}}
	task := New(func() []sched.TaskStats { return stats }, logx.Nop())

	now := time.Unix(100, 0)
	if err := task.Step(now); err != nil {
		t.Fatal(err)
	}
	if got := task.prevRuns["buttons"]; got != 100 {
		t.Fatalf("prevRuns = %d, want 100", got)
	}

	stats = []sched.TaskStats{{Name: "buttons", Runs: 175}}
	if err := task.Step(now.Add(15 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if got := task.prevRuns["buttons"]; got != 175 {
		t.Fatalf("prevRuns = %d, want 175", got)
	}
}
