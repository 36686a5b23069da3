package main

import (
	"strings"
	"testing"
	"time"

	"easel/internal/events"
)

func TestFormatEventProgress(t *testing.T) {
	line := formatEvent(events.Event{
		Type:     events.TypeProgress,
		BatchID:  "0b1c2d3e-aaaa-bbbb-cccc-000000000000",
		Current:  3,
		Total:    10,
		Accepted: 2,
		Rejected: 1,
		ETA:      90 * time.Second,
		Status:   "generating",
	})
	if !strings.HasPrefix(line, "[0b1c2d3e]") {
		t.Fatalf("expected short batch id prefix, got %q", line)
	}
	for _, want := range []string{"3/10", "accepted=2", "rejected=1", "eta=1m30s", "generating"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestFormatEventFailed(t *testing.T) {
	line := formatEvent(events.Event{
		Type:    events.TypeFailed,
		BatchID: "deadbeef",
		Message: "backend unreachable",
	})
	if !strings.Contains(line, "run failed: backend unreachable") {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("expected short ids unchanged, got %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("expected 8 character prefix, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  short  ", 10); got != "short" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	long := strings.Repeat("x", 60)
	got := truncate(long, 48)
	if len(got) != 48 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected 48 byte truncation with ellipsis, got %q (len %d)", got, len(got))
	}
}
