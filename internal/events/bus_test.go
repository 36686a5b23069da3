package events_test

import (
	"testing"

	"easel/internal/events"
	"easel/internal/logging"
)

func TestPublishAssignsIncreasingSequence(t *testing.T) {
	bus := events.NewBus(10, logging.NewNop())

	first := bus.Publish(events.Event{Type: events.TypeStarted, BatchID: "b1"})
	second := bus.Publish(events.Event{Type: events.TypeProgress, BatchID: "b1"})
	if first.Seq == 0 {
		t.Fatal("expected nonzero sequence")
	}
	if second.Seq <= first.Seq {
		t.Fatalf("expected increasing sequence, got %d then %d", first.Seq, second.Seq)
	}
	if first.Timestamp.IsZero() {
		t.Fatal("expected publish to stamp a timestamp")
	}
}

func TestSinceReturnsOnlyNewerEvents(t *testing.T) {
	bus := events.NewBus(10, logging.NewNop())

	bus.Publish(events.Event{Type: events.TypeStarted})
	marker := bus.Publish(events.Event{Type: events.TypeProgress, Current: 1})
	bus.Publish(events.Event{Type: events.TypeProgress, Current: 2})
	bus.Publish(events.Event{Type: events.TypeCompleted})

	newer := bus.Since(marker.Seq)
	if len(newer) != 2 {
		t.Fatalf("expected 2 events after seq %d, got %d", marker.Seq, len(newer))
	}
	if newer[0].Current != 2 || newer[1].Type != events.TypeCompleted {
		t.Fatalf("unexpected events %+v", newer)
	}

	all := bus.Since(0)
	if len(all) != 4 {
		t.Fatalf("expected full history, got %d events", len(all))
	}
}

func TestBufferDropsOldestWhenFull(t *testing.T) {
	bus := events.NewBus(3, logging.NewNop())

	for i := 1; i <= 5; i++ {
		bus.Publish(events.Event{Type: events.TypeProgress, Current: i})
	}

	retained := bus.Since(0)
	if len(retained) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(retained))
	}
	if retained[0].Current != 3 || retained[2].Current != 5 {
		t.Fatalf("expected oldest events dropped, got %+v", retained)
	}
}

func TestSubscriberReceivesEvents(t *testing.T) {
	bus := events.NewBus(10, logging.NewNop())

	var received []events.Event
	bus.Subscribe(func(e events.Event) {
		received = append(received, e)
	})

	bus.Publish(events.Event{Type: events.TypeStarted})
	bus.Publish(events.Event{Type: events.TypeCompleted})
	if len(received) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(received))
	}
	if received[1].Type != events.TypeCompleted {
		t.Fatalf("unexpected event %+v", received[1])
	}
}

func TestPanickingSubscriberDoesNotStopDelivery(t *testing.T) {
	bus := events.NewBus(10, logging.NewNop())

	bus.Subscribe(func(events.Event) {
		panic("subscriber bug")
	})
	delivered := 0
	bus.Subscribe(func(events.Event) {
		delivered++
	})

	bus.Publish(events.Event{Type: events.TypeProgress})
	bus.Publish(events.Event{Type: events.TypeProgress})
	if delivered != 2 {
		t.Fatalf("expected healthy subscriber to receive both events, got %d", delivered)
	}
}

func TestLatest(t *testing.T) {
	bus := events.NewBus(10, logging.NewNop())

	if _, ok := bus.Latest(); ok {
		t.Fatal("expected no latest event on a fresh bus")
	}
	bus.Publish(events.Event{Type: events.TypeStarted})
	bus.Publish(events.Event{Type: events.TypeProgress, Current: 7})

	latest, ok := bus.Latest()
	if !ok || latest.Current != 7 {
		t.Fatalf("unexpected latest event %+v ok=%v", latest, ok)
	}
}
