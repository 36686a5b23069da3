package batch_test

import (
	"errors"
	"testing"

	"easel/internal/batch"
)

func startRunning(t *testing.T, total int) *batch.Tracker {
	t.Helper()
	tracker := batch.NewTracker()
	if err := tracker.Start(total, batch.ModeBatch); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tracker.MarkReady(); err != nil {
		t.Fatalf("mark_ready: %v", err)
	}
	return tracker
}

func TestStartRejectsNonPositiveTotal(t *testing.T) {
	for _, total := range []int{0, -5} {
		tracker := batch.NewTracker()
		err := tracker.Start(total, batch.ModeBatch)
		if err == nil {
			t.Fatalf("expected start(%d) to fail", total)
		}
		var validation *batch.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected ValidationError, got %T", err)
		}
		if tracker.State() != batch.StateInactive {
			t.Fatalf("expected tracker to stay inactive, got %s", tracker.State())
		}
	}
}

func TestStartRequiresInactive(t *testing.T) {
	tracker := startRunning(t, 3)
	err := tracker.Start(3, batch.ModeBatch)
	var invalid *batch.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestTickAutoCompletesOnFinalItem(t *testing.T) {
	total := 4
	tracker := startRunning(t, total)

	for i := 1; i <= total; i++ {
		if err := tracker.Tick(true); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		counters := tracker.Snapshot()
		if counters.CurrentIndex != i {
			t.Fatalf("tick %d: expected index %d, got %d", i, i, counters.CurrentIndex)
		}
		if i < total && tracker.State() != batch.StateRunning {
			t.Fatalf("tick %d: expected running, got %s", i, tracker.State())
		}
	}
	if tracker.State() != batch.StateCompleted {
		t.Fatalf("expected completed after final tick, got %s", tracker.State())
	}
	if err := tracker.Tick(true); err == nil {
		t.Fatal("expected tick after completion to fail")
	}
}

func TestTickFailsOutsideRunning(t *testing.T) {
	tracker := batch.NewTracker()
	if err := tracker.Tick(true); err == nil {
		t.Fatal("expected tick from inactive to fail")
	}

	tracker = startRunning(t, 2)
	if err := tracker.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := tracker.Tick(true); err == nil {
		t.Fatal("expected tick while cancelling to fail")
	}
}

func TestTickWhilePausedFails(t *testing.T) {
	tracker := startRunning(t, 2)
	if err := tracker.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := tracker.Tick(true); err == nil {
		t.Fatal("expected tick while paused to fail")
	}
	snapshot := tracker.Snapshot()
	if snapshot.CurrentIndex != 0 || snapshot.Accepted != 0 {
		t.Fatalf("expected counters untouched, got %+v", snapshot)
	}
	if tracker.State() != batch.StatePaused {
		t.Fatalf("expected tracker still paused, got %s", tracker.State())
	}
}

func TestCountersTrackOutcomes(t *testing.T) {
	tracker := startRunning(t, 3)
	tracker.RecordRetry()
	tracker.RecordRetry()
	if err := tracker.Tick(true); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := tracker.Tick(false); err != nil {
		t.Fatalf("tick: %v", err)
	}

	counters := tracker.Snapshot()
	if counters.Accepted != 1 || counters.Rejected != 1 || counters.Retries != 2 {
		t.Fatalf("unexpected counters: %+v", counters)
	}
	if counters.Accepted+counters.Rejected > counters.CurrentIndex {
		t.Fatalf("outcome counters exceed index: %+v", counters)
	}
	if counters.CurrentIndex > counters.Total {
		t.Fatalf("index exceeds total: %+v", counters)
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	tracker := startRunning(t, 2)
	if err := tracker.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !tracker.Snapshot().Paused {
		t.Fatal("expected paused flag set")
	}
	if err := tracker.Pause(); err == nil {
		t.Fatal("expected double pause to fail")
	}
	if err := tracker.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if tracker.Snapshot().Paused {
		t.Fatal("expected paused flag cleared")
	}
	if err := tracker.Resume(); err == nil {
		t.Fatal("expected resume while running to fail")
	}
}

func TestTwoPhaseCancel(t *testing.T) {
	tracker := startRunning(t, 5)
	if err := tracker.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if tracker.State() != batch.StateCancelling {
		t.Fatalf("expected cancelling, got %s", tracker.State())
	}
	if err := tracker.CancelCompleted(); err != nil {
		t.Fatalf("cancel_completed: %v", err)
	}
	if tracker.State() != batch.StateCompleted {
		t.Fatalf("expected completed, got %s", tracker.State())
	}
}

func TestCancelCompletedRequiresCancelling(t *testing.T) {
	tracker := startRunning(t, 2)
	if err := tracker.CancelCompleted(); err == nil {
		t.Fatal("expected cancel_completed outside cancelling to fail")
	}
}

func TestCancelLegalWhilePaused(t *testing.T) {
	tracker := startRunning(t, 2)
	if err := tracker.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := tracker.Cancel(); err != nil {
		t.Fatalf("cancel while paused: %v", err)
	}
}

func TestResetOnlyFromTerminalStates(t *testing.T) {
	tracker := startRunning(t, 1)
	if err := tracker.Reset(); err == nil {
		t.Fatal("expected reset while running to fail")
	}
	if err := tracker.Tick(true); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := tracker.Reset(); err != nil {
		t.Fatalf("reset after completion: %v", err)
	}
	if tracker.State() != batch.StateInactive {
		t.Fatalf("expected inactive after reset, got %s", tracker.State())
	}
	if counters := tracker.Snapshot(); counters.Total != 0 || counters.CurrentIndex != 0 {
		t.Fatalf("expected counters cleared, got %+v", counters)
	}
}

func TestFailFromActiveStates(t *testing.T) {
	tracker := startRunning(t, 2)
	if err := tracker.Fail("device lost"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if tracker.State() != batch.StateError {
		t.Fatalf("expected error state, got %s", tracker.State())
	}
	if tracker.Snapshot().Error != "device lost" {
		t.Fatalf("expected error message recorded, got %+v", tracker.Snapshot())
	}
	if err := tracker.Reset(); err != nil {
		t.Fatalf("reset after error: %v", err)
	}
}

func TestSetTotalOnlyWhilePreparing(t *testing.T) {
	tracker := batch.NewTracker()
	if err := tracker.Start(2, batch.ModeFolder); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tracker.SetTotal(10); err != nil {
		t.Fatalf("set_total: %v", err)
	}
	if err := tracker.MarkReady(); err != nil {
		t.Fatalf("mark_ready: %v", err)
	}
	if err := tracker.SetTotal(20); err == nil {
		t.Fatal("expected set_total while running to fail")
	}
	if tracker.Snapshot().Total != 10 {
		t.Fatalf("unexpected total %d", tracker.Snapshot().Total)
	}
}
