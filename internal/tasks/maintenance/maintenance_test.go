package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"illo/internal/storage"
	logx "illo/pkg/logx"
)

type countingStore struct {
	storage.Store
	compacts atomic.Int64
}

func (c *countingStore) Compact(ctx context.Context) error {
	c.compacts.Add(1)
	return nil
}

func TestRejectsBadCronExpression(t *testing.T) {
	if _, err := New(nil, logx.Nop(), "not a cron line", 0, 0); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDeepCleanFiresOnSchedule(t *testing.T) {
	store := &countingStore{}
	// Every day at 03:30.
	task, err := New(store, logx.Nop(), "30 3 * * *", 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	day1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := task.Start(day1); err != nil {
		t.Fatal(err)
	}

	// Steps before the slot do nothing.
	for i := 0; i < 5; i++ {
		if err := task.Step(day1.Add(time.Duration(i) * 10 * time.Second)); err != nil {
			t.Fatal(err)
		}
	}
	if got := store.compacts.Load(); got != 0 {
		t.Fatalf("compacts = %d before schedule", got)
	}

	// First step past 03:30 the next day fires exactly once.
	day2 := time.Date(2026, 8, 2, 3, 30, 5, 0, time.UTC)
	if err := task.Step(day2); err != nil {
		t.Fatal(err)
	}
	if err := task.Step(day2.Add(10 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if got := store.compacts.Load(); got != 1 {
		t.Fatalf("compacts = %d, want 1", got)
	}

	// And again the following night.
	day3 := time.Date(2026, 8, 3, 3, 31, 0, 0, time.UTC)
	if err := task.Step(day3); err != nil {
		t.Fatal(err)
	}
	if got := store.compacts.Load(); got != 2 {
		t.Fatalf("compacts = %d, want 2", got)
	}
}

func TestNilStoreSkipsDeepClean(t *testing.T) {
	task, err := New(nil, logx.Nop(), "* * * * *", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 8, 1, 12, 0, 30, 0, time.UTC)
	if err := task.Start(now); err != nil {
		t.Fatal(err)
	}
	if err := task.Step(now.Add(2 * time.Minute)); err != nil {
		t.Fatal(err)
	}
}
