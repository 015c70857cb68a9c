package messaging

import (
	"context"
	"testing"
	"time"

	"quorum/internal/shared/events"
)

func TestBusDeliversToEverySubscriberOfTopic(t *testing.T) {
	bus := NewBus(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan events.Envelope, 1)
	second := make(chan events.Envelope, 1)
	other := make(chan events.Envelope, 1)
	subscribe := func(topic string, sink chan events.Envelope) {
		if err := bus.Subscribe(ctx, topic, "test-cg", func(_ context.Context, event events.Envelope) error {
			sink <- event
			return nil
		}); err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
	}
	subscribe("vote.cast", first)
	subscribe("vote.cast", second)
	subscribe("vote.revoked", other)

	if err := bus.Publish(ctx, "vote.cast", events.Envelope{EventID: "evt-1", EventType: "vote.cast"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	for _, sink := range []chan events.Envelope{first, second} {
		select {
		case event := <-sink:
			if event.EventID != "evt-1" {
				t.Fatalf("expected evt-1, got %s", event.EventID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery")
		}
	}
	select {
	case event := <-other:
		t.Fatalf("unexpected delivery on another topic: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusDropsEventsForFullSubscriber(t *testing.T) {
	bus := NewBus(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	received := make(chan string, 8)
	if err := bus.Subscribe(ctx, "vote.cast", "slow-cg", func(_ context.Context, event events.Envelope) error {
		<-release
		received <- event.EventID
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for _, id := range []string{"evt-1", "evt-2", "evt-3", "evt-4"} {
		if err := bus.Publish(ctx, "vote.cast", events.Envelope{EventID: id}); err != nil {
			t.Fatalf("publish %s failed: %v", id, err)
		}
	}
	close(release)

	count := 0
	timeout := time.After(200 * time.Millisecond)
loop:
	for {
		select {
		case <-received:
			count++
		case <-timeout:
			break loop
		}
	}
	if count == 0 || count > 2 {
		t.Fatalf("expected the slow subscriber to get at most two events, got %d", count)
	}
}

func TestBusRemovesSubscriberOnCancel(t *testing.T) {
	bus := NewBus(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := bus.Subscribe(ctx, "vote.cast", "cg", func(context.Context, events.Envelope) error { return nil }); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.mu.RLock()
		remaining := len(bus.subscribers["vote.cast"])
		bus.mu.RUnlock()
		if remaining == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected subscriber to be removed after cancel")
}
