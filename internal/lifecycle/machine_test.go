package lifecycle_test

import (
	"errors"
	"fmt"
	"testing"

	"easel/internal/lifecycle"
)

func TestFullLifecycleSequence(t *testing.T) {
	m := lifecycle.NewMachine()

	steps := []struct {
		name string
		call func() error
		want lifecycle.State
	}{
		{"start", func() error { return m.Start(map[string]string{"prompt": "a lighthouse"}) }, lifecycle.StatePreparing},
		{"mark_ready", m.MarkReady, lifecycle.StateRunning},
		{"pause", m.Pause, lifecycle.StatePaused},
		{"resume", m.Resume, lifecycle.StateRunning},
		{"complete", func() error { return m.Complete(nil) }, lifecycle.StateCompleted},
		{"reset", m.Reset, lifecycle.StateIdle},
	}
	for _, step := range steps {
		if err := step.call(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := m.State(); got != step.want {
			t.Fatalf("%s: expected state %s, got %s", step.name, step.want, got)
		}
	}
}

func TestInvalidTransitionLeavesStateUnchanged(t *testing.T) {
	m := lifecycle.NewMachine()

	err := m.MarkReady()
	if err == nil {
		t.Fatal("expected mark_ready from idle to fail")
	}
	var invalid *lifecycle.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
	if invalid.From != lifecycle.StateIdle || invalid.To != lifecycle.StateRunning {
		t.Fatalf("unexpected error detail: %+v", invalid)
	}
	if m.State() != lifecycle.StateIdle {
		t.Fatalf("state mutated on failed transition: %s", m.State())
	}
	if len(m.History()) != 0 {
		t.Fatal("history recorded a failed transition")
	}
	if len(m.Metadata()) != 0 {
		t.Fatal("metadata mutated on failed transition")
	}
}

func TestCancelOnlyFromRunningOrPaused(t *testing.T) {
	m := lifecycle.NewMachine()
	if err := m.Cancel(); err == nil {
		t.Fatal("expected cancel from idle to fail")
	}

	mustStart(t, m)
	if err := m.Cancel(); err == nil {
		t.Fatal("expected cancel from preparing to fail")
	}
	if err := m.MarkReady(); err != nil {
		t.Fatalf("mark_ready: %v", err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel from running: %v", err)
	}
	if m.State() != lifecycle.StateCancelling {
		t.Fatalf("expected cancelling, got %s", m.State())
	}
}

func TestFailStoresAndResetClearsError(t *testing.T) {
	m := lifecycle.NewMachine()
	mustStart(t, m)

	if err := m.Fail("engine exploded", nil); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if m.State() != lifecycle.StateError {
		t.Fatalf("expected error state, got %s", m.State())
	}
	if m.ErrorMessage() != "engine exploded" {
		t.Fatalf("unexpected error message %q", m.ErrorMessage())
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if m.ErrorMessage() != "" {
		t.Fatal("expected error message cleared after reset")
	}
	if len(m.Metadata()) != 0 {
		t.Fatal("expected metadata cleared after reset")
	}
}

func TestHistoryBounded(t *testing.T) {
	m := lifecycle.NewMachine()

	// Each loop produces three transitions: start, fail, reset.
	for i := 0; i < 60; i++ {
		if err := m.Start(map[string]string{"run": fmt.Sprintf("%d", i)}); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		if err := m.Fail("boom", nil); err != nil {
			t.Fatalf("fail %d: %v", i, err)
		}
		if err := m.Reset(); err != nil {
			t.Fatalf("reset %d: %v", i, err)
		}
	}

	history := m.History()
	if len(history) != 100 {
		t.Fatalf("expected history capped at 100, got %d", len(history))
	}
	last := history[len(history)-1]
	if last.To != lifecycle.StateIdle {
		t.Fatalf("expected last recorded transition into idle, got %s", last.To)
	}
}

func TestPersistenceHookFiresOnEveryTransition(t *testing.T) {
	var states []lifecycle.State
	m := lifecycle.NewMachine(lifecycle.WithPersistenceHook(func(state lifecycle.State, _ map[string]string) {
		states = append(states, state)
	}))

	mustStart(t, m)
	if err := m.MarkReady(); err != nil {
		t.Fatalf("mark_ready: %v", err)
	}
	if err := m.Complete(nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	want := []lifecycle.State{lifecycle.StatePreparing, lifecycle.StateRunning, lifecycle.StateCompleted}
	if len(states) != len(want) {
		t.Fatalf("expected %d hook calls, got %d", len(want), len(states))
	}
	for i, state := range want {
		if states[i] != state {
			t.Fatalf("hook call %d: expected %s, got %s", i, state, states[i])
		}
	}
}

func TestInterruptObserverTogglesOnCancelAndReset(t *testing.T) {
	var flags []bool
	m := lifecycle.NewMachine(lifecycle.WithInterruptObserver(func(active bool) {
		flags = append(flags, active)
	}))

	mustStart(t, m)
	if err := m.MarkReady(); err != nil {
		t.Fatalf("mark_ready: %v", err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if len(flags) != 2 || !flags[0] || flags[1] {
		t.Fatalf("expected interrupt [true false], got %v", flags)
	}
}

func TestMetadataIsDefensiveCopy(t *testing.T) {
	m := lifecycle.NewMachine()
	if err := m.Start(map[string]string{"prompt": "original"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	snapshot := m.Metadata()
	snapshot["prompt"] = "mutated"
	if m.Metadata()["prompt"] != "original" {
		t.Fatal("metadata accessor leaked internal map")
	}
}

func mustStart(t *testing.T, m *lifecycle.Machine) {
	t.Helper()
	if err := m.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
}
